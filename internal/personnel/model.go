package personnel

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Catégories de surveillance médicale.
const (
	CategorieSMR = "SMR"
	CategorieVP  = "VP"
)

// Ref est une entité de référence (poste, service, formation).
type Ref struct {
	ID      string `json:"id"`
	Libelle string `json:"libelle"`
}

// Unite est une unité organisationnelle (service) rattachée à une formation.
type Unite struct {
	ID          string `json:"id"`
	Libelle     string `json:"libelle"`
	FormationID string `json:"formationId"`
	Formation   *Ref   `json:"formation,omitempty"`
}

// Personnel est un agent suivi par la médecine du travail.
type Personnel struct {
	ID          string    `json:"id"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	PosteID     string    `json:"posteId"`
	ServiceID   string    `json:"serviceId"`
	FormationID string    `json:"formationId"`
	Categorie   *string   `json:"categorie"`
	Tags        []string  `json:"tags"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Poste       *Ref      `json:"poste,omitempty"`
	Service     *Ref      `json:"service,omitempty"`
	Formation   *Ref      `json:"formation,omitempty"`
}

// Tags accepte un tableau JSON ou une chaîne séparée par ';' ou ','.
type Tags []string

// UnmarshalJSON normalise les deux formes acceptées.
func (t *Tags) UnmarshalJSON(data []byte) error {
	var list []any
	if err := json.Unmarshal(data, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return errors.New("tags invalides")
			}
			out = append(out, s)
		}
		*t = NormalizeTags(out)
		return nil
	}
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.New("tags invalides")
	}
	if raw == nil {
		*t = Tags{}
		return nil
	}
	*t = NormalizeTags(strings.FieldsFunc(*raw, func(r rune) bool { return r == ';' || r == ',' }))
	return nil
}

// NormalizeTags supprime les espaces et les entrées vides.
func NormalizeTags(values []string) Tags {
	out := Tags{}
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// ValidCategorie indique une catégorie reconnue.
func ValidCategorie(value string) bool {
	return value == CategorieSMR || value == CategorieVP
}
