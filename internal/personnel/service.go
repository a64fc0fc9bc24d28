package personnel

import (
	"context"
	"errors"
	"strings"

	"github.com/sante-travail/convocations/internal/apperr"
	"github.com/sante-travail/convocations/internal/db"
)

// Service porte les règles de recherche et de modification du personnel.
type Service struct {
	store Store
}

// NewService crée le service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Search renvoie une page du personnel filtré.
func (s *Service) Search(ctx context.Context, f Filter, page, pageSize int) ([]Personnel, int, error) {
	return s.store.Search(ctx, f, page*pageSize, pageSize)
}

// Get renvoie un agent.
func (s *Service) Get(ctx context.Context, id string) (Personnel, error) {
	p, err := s.store.Get(ctx, strings.TrimSpace(id))
	if errors.Is(err, ErrNotFound) {
		return Personnel{}, apperr.NotFound("Personnel introuvable")
	}
	return p, err
}

// UpdateInput est le corps accepté par la modification d'un agent.
type UpdateInput struct {
	FirstName   string  `json:"firstName"`
	LastName    string  `json:"lastName"`
	PosteID     string  `json:"posteId"`
	FormationID string  `json:"formationId"`
	ServiceID   string  `json:"serviceId"`
	IsActive    *bool   `json:"isActive"`
	Categorie   *string `json:"categorie"`
	Tags        *Tags   `json:"tags"`
}

// Update valide puis applique la modification d'un agent.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Personnel, error) {
	params := UpdateParams{
		FirstName:   strings.TrimSpace(in.FirstName),
		LastName:    strings.TrimSpace(in.LastName),
		PosteID:     strings.TrimSpace(in.PosteID),
		FormationID: strings.TrimSpace(in.FormationID),
		ServiceID:   strings.TrimSpace(in.ServiceID),
		IsActive:    in.IsActive,
	}
	if params.FirstName == "" || params.LastName == "" || params.PosteID == "" || params.FormationID == "" || params.ServiceID == "" {
		return Personnel{}, apperr.Validation("Champs obligatoires manquants")
	}
	if in.Categorie != nil {
		categorie := strings.TrimSpace(*in.Categorie)
		if !ValidCategorie(categorie) {
			return Personnel{}, apperr.Validation("categorie invalide (SMR ou VP)")
		}
		params.Categorie = &categorie
	}
	if in.Tags != nil {
		params.Tags = NormalizeTags(*in.Tags)
		params.SetTags = true
	}

	p, err := s.store.Update(ctx, strings.TrimSpace(id), params)
	switch {
	case errors.Is(err, ErrNotFound):
		return Personnel{}, apperr.NotFound("Personnel introuvable")
	case db.IsForeignKeyViolation(err):
		return Personnel{}, apperr.Validation("Poste, service ou formation introuvable")
	}
	return p, err
}

// ServicesOfFormation renvoie les services d'une formation.
func (s *Service) ServicesOfFormation(ctx context.Context, formationID string) ([]Unite, error) {
	formationID = strings.TrimSpace(formationID)
	if formationID == "" {
		return nil, apperr.Validation("Formation id manquant")
	}
	return s.store.ListServices(ctx, formationID)
}
