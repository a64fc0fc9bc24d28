// Package convocation gère le cycle de vie des convocations aux visites médicales.
package convocation

import (
	"time"

	"github.com/sante-travail/convocations/internal/personnel"
)

// Statuts d'une convocation.
const (
	StatutAConvoquer         = "A_CONVOQUER"
	StatutConvocationGeneree = "CONVOCATION_GENEREE"
	StatutATraiter           = "A_TRAITER"
	StatutARelancer          = "A_RELANCER"
	StatutRelancee           = "RELANCEE"
	StatutRealisee           = "REALISEE"
	StatutAnnulee            = "ANNULEE"
)

// Types de convocation (vague de relance).
const (
	TypeInitiale = "INITIALE"
	TypeRelance1 = "RELANCE_1"
	TypeRelance2 = "RELANCE_2"
	TypeRelance3 = "RELANCE_3"
)

var statuts = map[string]struct{}{
	StatutAConvoquer: {}, StatutConvocationGeneree: {}, StatutATraiter: {}, StatutARelancer: {},
	StatutRelancee: {}, StatutRealisee: {}, StatutAnnulee: {},
}

var types = map[string]struct{}{
	TypeInitiale: {}, TypeRelance1: {}, TypeRelance2: {}, TypeRelance3: {},
}

// ValidStatut indique un statut connu.
func ValidStatut(s string) bool {
	_, ok := statuts[s]
	return ok
}

// ValidType indique un type de convocation connu.
func ValidType(t string) bool {
	_, ok := types[t]
	return ok
}

// Convocation est l'avis de visite médicale d'un agent.
type Convocation struct {
	ID              string               `json:"id"`
	PersonnelID     string               `json:"personnelId"`
	Statut          string               `json:"statut"`
	ConvocationType string               `json:"convocationType"`
	DatePrevue      time.Time            `json:"datePrevue"`
	DateConvocation time.Time            `json:"dateConvocation"`
	Commentaire     *string              `json:"commentaire"`
	BordereauID     *string              `json:"bordereauId"`
	CreatedAt       time.Time            `json:"createdAt"`
	UpdatedAt       time.Time            `json:"updatedAt"`
	Personnel       *personnel.Personnel `json:"personnel,omitempty"`
}

// ListFilter combine le prédicat personnel et les critères propres aux convocations.
type ListFilter struct {
	Personnel       personnel.Filter
	Statut          string
	ConvocationType string
	BordereauID     string
	Unattached      bool
	DateConvocFrom  *time.Time
	DateConvocTo    *time.Time
	DatePrevueFrom  *time.Time
	DatePrevueTo    *time.Time
}
