package convocation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sante-travail/convocations/internal/apperr"
	"github.com/sante-travail/convocations/internal/calendar"
	"github.com/sante-travail/convocations/internal/util"
)

// DateValidator contrôle les dates prévues (week-end, jour férié).
type DateValidator interface {
	Check(ctx context.Context, t time.Time) error
}

// Service porte le cycle de vie des convocations.
type Service struct {
	store     Store
	validator DateValidator
	loc       *time.Location
	now       func() time.Time
}

// NewService crée le service.
func NewService(store Store, validator DateValidator, loc *time.Location) *Service {
	return &Service{store: store, validator: validator, loc: loc, now: util.Now}
}

// CreateInput est le corps de création d'une convocation.
type CreateInput struct {
	PersonnelID     string  `json:"personnelId"`
	DatePrevue      string  `json:"datePrevue"`
	DateConvocation *string `json:"dateConvocation"`
	Statut          *string `json:"statut"`
	ConvocationType *string `json:"convocationType"`
	Commentaire     *string `json:"commentaire"`
}

// Create valide puis enregistre une convocation.
func (s *Service) Create(ctx context.Context, in CreateInput) (Convocation, error) {
	personnelID := strings.TrimSpace(in.PersonnelID)
	if personnelID == "" {
		return Convocation{}, apperr.Validation("personnelId obligatoire")
	}
	datePrevue, err := calendar.ParseDateTime(in.DatePrevue, s.loc)
	if err != nil {
		return Convocation{}, apperr.Validation("datePrevue invalide ou manquante")
	}
	statut, convType, err := enumsOrDefault(in.Statut, in.ConvocationType)
	if err != nil {
		return Convocation{}, err
	}
	now := s.now()
	dateConvocation, err := s.optionalDate(in.DateConvocation, now)
	if err != nil {
		return Convocation{}, err
	}

	exists, err := s.store.PersonnelExists(ctx, personnelID)
	if err != nil {
		return Convocation{}, err
	}
	if !exists {
		return Convocation{}, apperr.NotFound("Personnel introuvable")
	}
	if err := s.validator.Check(ctx, datePrevue); err != nil {
		return Convocation{}, err
	}

	c := Convocation{
		ID:              util.NewID(),
		PersonnelID:     personnelID,
		Statut:          statut,
		ConvocationType: convType,
		DatePrevue:      datePrevue,
		DateConvocation: dateConvocation,
		Commentaire:     util.TrimPtr(in.Commentaire),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.Insert(ctx, c); err != nil {
		return Convocation{}, err
	}
	return s.Get(ctx, c.ID)
}

// Get renvoie une convocation avec son agent.
func (s *Service) Get(ctx context.Context, id string) (Convocation, error) {
	c, err := s.store.Get(ctx, strings.TrimSpace(id))
	if errors.Is(err, ErrNotFound) {
		return Convocation{}, apperr.NotFound("Convocation introuvable")
	}
	return c, err
}

// UpdateInput est le corps de modification; personnelId n'est accepté que pour être refusé.
type UpdateInput struct {
	PersonnelID     util.Optional[json.RawMessage] `json:"personnelId"`
	Statut          util.Optional[string]          `json:"statut"`
	ConvocationType util.Optional[string]          `json:"convocationType"`
	DatePrevue      util.Optional[string]          `json:"datePrevue"`
	DateConvocation util.Optional[string]          `json:"dateConvocation"`
	Commentaire     util.Optional[string]          `json:"commentaire"`
}

// Update modifie une convocation. La date prévue est obligatoire et revalidée à chaque appel.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Convocation, error) {
	id = strings.TrimSpace(id)
	if in.PersonnelID.Set {
		return Convocation{}, apperr.Validation("Modification du personnel interdite sur cette route.")
	}
	if in.DatePrevue.Value == nil || strings.TrimSpace(*in.DatePrevue.Value) == "" {
		return Convocation{}, apperr.Validation("datePrevue obligatoire")
	}
	datePrevue, err := calendar.ParseDateTime(*in.DatePrevue.Value, s.loc)
	if err != nil {
		return Convocation{}, apperr.Validation("datePrevue invalide")
	}
	if err := s.validator.Check(ctx, datePrevue); err != nil {
		return Convocation{}, err
	}
	if in.Statut.Value != nil && !ValidStatut(*in.Statut.Value) {
		return Convocation{}, apperr.Validation("Statut invalide")
	}
	if in.ConvocationType.Value != nil && !ValidType(*in.ConvocationType.Value) {
		return Convocation{}, apperr.Validation("Type convocation invalide")
	}
	var dateConvocation *time.Time
	if in.DateConvocation.Set {
		if in.DateConvocation.Value == nil {
			return Convocation{}, apperr.Validation("dateConvocation invalide")
		}
		t, err := calendar.ParseDateTime(*in.DateConvocation.Value, s.loc)
		if err != nil {
			return Convocation{}, apperr.Validation("dateConvocation invalide")
		}
		dateConvocation = &t
	}

	err = s.store.Mutate(ctx, id, func(c *Convocation) error {
		c.DatePrevue = datePrevue
		if in.Statut.Value != nil {
			c.Statut = *in.Statut.Value
		}
		if in.ConvocationType.Value != nil {
			c.ConvocationType = *in.ConvocationType.Value
		}
		if dateConvocation != nil {
			c.DateConvocation = *dateConvocation
		}
		if in.Commentaire.Set {
			c.Commentaire = util.TrimPtr(in.Commentaire.Value)
		}
		return nil
	})
	if err != nil {
		return Convocation{}, s.mapNotFound(err)
	}
	return s.Get(ctx, id)
}

// Cancel force le statut ANNULEE quel que soit l'état courant; le motif éventuel
// remplace le commentaire.
func (s *Service) Cancel(ctx context.Context, id string, motif *string) (Convocation, error) {
	id = strings.TrimSpace(id)
	motif = util.TrimPtr(motif)
	err := s.store.Mutate(ctx, id, func(c *Convocation) error {
		c.Statut = StatutAnnulee
		if motif != nil {
			c.Commentaire = motif
		}
		return nil
	})
	if err != nil {
		return Convocation{}, s.mapNotFound(err)
	}
	return s.Get(ctx, id)
}

// BulkRow associe un agent à une date prévue.
type BulkRow struct {
	PersonnelID string `json:"personnelId"`
	DatePrevue  string `json:"datePrevue"`
}

// BulkInput accepte des lignes (rows) ou, à défaut, une liste d'agents et une date commune.
type BulkInput struct {
	Rows            []BulkRow `json:"rows"`
	PersonnelIDs    []string  `json:"personnelIds"`
	DatePrevue      *string   `json:"datePrevue"`
	Statut          *string   `json:"statut"`
	ConvocationType *string   `json:"convocationType"`
	DateConvocation *string   `json:"dateConvocation"`
	Commentaire     *string   `json:"commentaire"`
}

type plannedRow struct {
	personnelID string
	datePrevue  time.Time
}

// BulkCreate crée un lot de convocations en une transaction. Les dates prévues
// ne passent pas par le contrôle week-end et jours fériés.
func (s *Service) BulkCreate(ctx context.Context, in BulkInput) (int, error) {
	statut, convType, err := enumsOrDefault(in.Statut, in.ConvocationType)
	if err != nil {
		return 0, err
	}
	now := s.now()
	dateConvocation, err := s.optionalDate(in.DateConvocation, now)
	if err != nil {
		return 0, err
	}

	var rows []plannedRow
	if len(in.Rows) > 0 {
		for _, r := range in.Rows {
			id := strings.TrimSpace(r.PersonnelID)
			t, err := calendar.ParseDateTime(r.DatePrevue, s.loc)
			if id == "" || err != nil {
				continue
			}
			rows = append(rows, plannedRow{personnelID: id, datePrevue: t})
		}
		if len(rows) == 0 {
			return 0, apperr.Validation("rows invalides")
		}
	} else {
		if len(in.PersonnelIDs) == 0 {
			return 0, apperr.Validation("personnelIds obligatoire")
		}
		if in.DatePrevue == nil {
			return 0, apperr.Validation("datePrevue obligatoire / invalide")
		}
		t, err := calendar.ParseDateTime(*in.DatePrevue, s.loc)
		if err != nil {
			return 0, apperr.Validation("datePrevue obligatoire / invalide")
		}
		for _, id := range in.PersonnelIDs {
			id = strings.TrimSpace(id)
			if id == "" {
				return 0, apperr.Validation("personnelIds obligatoire")
			}
			rows = append(rows, plannedRow{personnelID: id, datePrevue: t})
		}
	}

	distinct := distinctIDs(rows)
	found, err := s.store.CountPersonnel(ctx, distinct)
	if err != nil {
		return 0, err
	}
	if found != len(distinct) {
		return 0, apperr.Validation("Un ou plusieurs personnels sont introuvables")
	}

	commentaire := util.TrimPtr(in.Commentaire)
	items := make([]Convocation, 0, len(rows))
	for _, r := range rows {
		items = append(items, Convocation{
			ID:              util.NewID(),
			PersonnelID:     r.personnelID,
			Statut:          statut,
			ConvocationType: convType,
			DatePrevue:      r.datePrevue,
			DateConvocation: dateConvocation,
			Commentaire:     commentaire,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}
	if err := s.store.InsertMany(ctx, items); err != nil {
		return 0, err
	}

	log.Info().Str("component", "convocation").Int("count", len(items)).Msg("convocations créées en masse")
	return len(items), nil
}

// CountOnDay compte les convocations non annulées prévues un jour civil donné.
func (s *Service) CountOnDay(ctx context.Context, day string) (int, error) {
	day = strings.TrimSpace(day)
	if day == "" {
		return 0, apperr.Validation("day obligatoire (YYYY-MM-DD)")
	}
	start, err := calendar.ParseDay(day, s.loc)
	if err != nil {
		return 0, apperr.Validation("day invalide")
	}
	return s.store.CountActiveBetween(ctx, start, start.AddDate(0, 0, 1))
}

// ListQuery regroupe les critères bruts de la liste.
type ListQuery struct {
	Filter         ListFilter
	DateConvocFrom string
	DateConvocTo   string
	DateVisiteFrom string
	DateVisiteTo   string
}

// List renvoie une page de convocations; les bornes de dates sont des jours entiers inclus.
func (s *Service) List(ctx context.Context, q ListQuery, page, pageSize int) ([]Convocation, int, error) {
	f := q.Filter
	var err error
	if f.DateConvocFrom, err = s.dayStart(q.DateConvocFrom, "dateConvocFrom"); err != nil {
		return nil, 0, err
	}
	if f.DateConvocTo, err = s.dayEnd(q.DateConvocTo, "dateConvocTo"); err != nil {
		return nil, 0, err
	}
	if f.DatePrevueFrom, err = s.dayStart(q.DateVisiteFrom, "dateVisiteFrom"); err != nil {
		return nil, 0, err
	}
	if f.DatePrevueTo, err = s.dayEnd(q.DateVisiteTo, "dateVisiteTo"); err != nil {
		return nil, 0, err
	}
	return s.store.List(ctx, f, page*pageSize, pageSize)
}

func (s *Service) dayStart(raw, name string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := calendar.ParseDay(raw, s.loc)
	if err != nil {
		return nil, apperr.Validation(name + " invalide")
	}
	return &t, nil
}

func (s *Service) dayEnd(raw, name string) (*time.Time, error) {
	t, err := s.dayStart(raw, name)
	if t == nil || err != nil {
		return nil, err
	}
	end := t.AddDate(0, 0, 1)
	return &end, nil
}

func (s *Service) optionalDate(raw *string, def time.Time) (time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return def, nil
	}
	t, err := calendar.ParseDateTime(*raw, s.loc)
	if err != nil {
		return time.Time{}, apperr.Validation("dateConvocation invalide")
	}
	return t, nil
}

func (s *Service) mapNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound("Convocation introuvable")
	}
	return err
}

func enumsOrDefault(statut, convType *string) (string, string, error) {
	st, ty := StatutAConvoquer, TypeInitiale
	if statut != nil && *statut != "" {
		if !ValidStatut(*statut) {
			return "", "", apperr.Validation("Statut invalide")
		}
		st = *statut
	}
	if convType != nil && *convType != "" {
		if !ValidType(*convType) {
			return "", "", apperr.Validation("Type convocation invalide")
		}
		ty = *convType
	}
	return st, ty, nil
}

func distinctIDs(rows []plannedRow) []string {
	seen := make(map[string]struct{}, len(rows))
	var out []string
	for _, r := range rows {
		if _, ok := seen[r.personnelID]; ok {
			continue
		}
		seen[r.personnelID] = struct{}{}
		out = append(out, r.personnelID)
	}
	return out
}
