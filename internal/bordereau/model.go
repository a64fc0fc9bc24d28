// Package bordereau regroupe les convocations d'un service en lots numérotés.
package bordereau

import (
	"time"

	"github.com/sante-travail/convocations/internal/convocation"
	"github.com/sante-travail/convocations/internal/personnel"
)

// Statuts d'un bordereau. ENVOYE est réservé, aucune transition n'y mène.
const (
	StatutNouveau = "NOUVEAU"
	StatutGenere  = "GENERE"
	StatutEnvoye  = "ENVOYE"
)

// Bordereau est un lot daté et numéroté de convocations d'un service.
type Bordereau struct {
	ID               string                    `json:"id"`
	SerialNumber     string                    `json:"serialNumber"`
	DateEdition      time.Time                 `json:"dateEdition"`
	ServiceID        string                    `json:"serviceId"`
	Statut           string                    `json:"statut"`
	CreatedAt        time.Time                 `json:"createdAt"`
	UpdatedAt        time.Time                 `json:"updatedAt"`
	Service          *personnel.Unite          `json:"service,omitempty"`
	ConvocationCount int                       `json:"convocationCount"`
	Convocations     []convocation.Convocation `json:"convocations,omitempty"`
}

// ListFilter restreint la liste des bordereaux.
type ListFilter struct {
	ServiceID string
	Statut    string
	Q         string
	DateFrom  *time.Time
	DateTo    *time.Time
}

// AttachResult décrit un rattachement partiel.
type AttachResult struct {
	OK          bool     `json:"ok"`
	Count       int      `json:"count"`
	AttachedIDs []string `json:"attachedIds"`
	SkippedIDs  []string `json:"skippedIds"`
}

// DetachResult décrit un détachement partiel.
type DetachResult struct {
	OK          bool     `json:"ok"`
	Count       int      `json:"count"`
	DetachedIDs []string `json:"detachedIds"`
	SkippedIDs  []string `json:"skippedIds"`
}

// GenerateResult est la réponse de la génération.
type GenerateResult struct {
	OK                  bool `json:"ok"`
	UpdatedConvocations int  `json:"updatedConvocations"`
}

// split sépare ids entre ceux retenus par done et les autres, dans l'ordre de la requête.
func split(ids, done []string) ([]string, []string) {
	set := make(map[string]struct{}, len(done))
	for _, id := range done {
		set[id] = struct{}{}
	}
	kept, skipped := []string{}, []string{}
	for _, id := range ids {
		if _, ok := set[id]; ok {
			kept = append(kept, id)
		} else {
			skipped = append(skipped, id)
		}
	}
	return kept, skipped
}
