package bordereau

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sante-travail/convocations/internal/apperr"
	"github.com/sante-travail/convocations/internal/calendar"
	"github.com/sante-travail/convocations/internal/db"
	"github.com/sante-travail/convocations/internal/notify"
	"github.com/sante-travail/convocations/internal/util"
)

const (
	serialConstraint = "bordereaux_serial_number_key"
	serialRetries    = 3
)

// Service porte le cycle de vie des bordereaux.
type Service struct {
	store    Store
	notifier notify.Notifier
	loc      *time.Location
	now      func() time.Time
	log      zerolog.Logger
}

// NewService crée le service. notifier peut être nil.
func NewService(store Store, notifier notify.Notifier, loc *time.Location) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{
		store:    store,
		notifier: notifier,
		loc:      loc,
		now:      util.Now,
		log:      log.With().Str("component", "bordereau").Logger(),
	}
}

// CreateInput est le corps de création.
type CreateInput struct {
	ServiceID   string  `json:"serviceId"`
	DateEdition *string `json:"dateEdition"`
}

// Create insère un bordereau numéroté et lui rattache les convocations éligibles du service.
func (s *Service) Create(ctx context.Context, in CreateInput) (Bordereau, error) {
	serviceID := strings.TrimSpace(in.ServiceID)
	if serviceID == "" {
		return Bordereau{}, apperr.Validation("serviceId obligatoire")
	}
	dateEdition := s.now()
	if in.DateEdition != nil && strings.TrimSpace(*in.DateEdition) != "" {
		t, err := calendar.ParseDateTime(*in.DateEdition, s.loc)
		if err != nil {
			return Bordereau{}, apperr.Validation("dateEdition invalide")
		}
		dateEdition = t
	}

	exists, err := s.store.ServiceExists(ctx, serviceID)
	if err != nil {
		return Bordereau{}, err
	}
	if !exists {
		return Bordereau{}, apperr.NotFound("Service introuvable")
	}

	b := Bordereau{
		ID:          util.NewID(),
		DateEdition: dateEdition,
		ServiceID:   serviceID,
		Statut:      StatutNouveau,
		CreatedAt:   s.now(),
	}
	var attached int
	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.LockService(ctx, serviceID); err != nil {
			return err
		}
		serial, err := s.allocateSerial(ctx, tx, serviceID, dateEdition)
		if err != nil {
			return err
		}
		b.SerialNumber = serial
		if err := tx.Insert(ctx, b); err != nil {
			return err
		}
		attached, err = tx.AttachEligible(ctx, b.ID, serviceID)
		return err
	})
	if db.IsUniqueViolation(err, serialConstraint) {
		return Bordereau{}, apperr.Conflict("Conflit (serialNumber déjà utilisé)", err)
	}
	if err != nil {
		return Bordereau{}, err
	}

	s.log.Info().Str("serial", b.SerialNumber).Str("service_id", serviceID).Int("attached", attached).Msg("bordereau créé")
	return s.Get(ctx, b.ID)
}

// allocateSerial calcule le numéro du jour puis, en cas de collision, recalcule
// avec une date décalée de quelques millisecondes. Le dernier candidat est
// conservé; la contrainte UNIQUE tranche les collisions résiduelles.
func (s *Service) allocateSerial(ctx context.Context, tx Tx, serviceID string, dateEdition time.Time) (string, error) {
	candidate := func(at time.Time) (string, error) {
		start, end := calendar.DayBounds(at, s.loc)
		n, err := tx.CountOnDay(ctx, serviceID, start, end)
		if err != nil {
			return "", err
		}
		return FormatSerial(serviceID, at, n+1, s.loc), nil
	}

	serial, err := candidate(dateEdition)
	if err != nil {
		return "", err
	}
	for i := 0; i < serialRetries; i++ {
		taken, err := tx.SerialExists(ctx, serial)
		if err != nil {
			return "", err
		}
		if !taken {
			break
		}
		if serial, err = candidate(dateEdition.Add(time.Duration(i+1) * time.Millisecond)); err != nil {
			return "", err
		}
	}
	return serial, nil
}

// Get renvoie le détail d'un bordereau.
func (s *Service) Get(ctx context.Context, id string) (Bordereau, error) {
	b, err := s.store.Get(ctx, strings.TrimSpace(id))
	if errors.Is(err, ErrNotFound) {
		return Bordereau{}, apperr.NotFound("Bordereau introuvable")
	}
	return b, err
}

// ListQuery regroupe les critères bruts de la liste.
type ListQuery struct {
	ServiceID string
	Statut    string
	Q         string
	DateFrom  string
	DateTo    string
}

// List renvoie une page de bordereaux; les bornes de date d'édition sont des jours entiers inclus.
func (s *Service) List(ctx context.Context, q ListQuery, page, pageSize int) ([]Bordereau, int, error) {
	f := ListFilter{
		ServiceID: strings.TrimSpace(q.ServiceID),
		Statut:    strings.TrimSpace(q.Statut),
		Q:         strings.TrimSpace(q.Q),
	}
	if raw := strings.TrimSpace(q.DateFrom); raw != "" {
		t, err := calendar.ParseDateTime(raw, s.loc)
		if err != nil {
			return nil, 0, apperr.Validation("dateFrom invalide")
		}
		start, _ := calendar.DayBounds(t, s.loc)
		f.DateFrom = &start
	}
	if raw := strings.TrimSpace(q.DateTo); raw != "" {
		t, err := calendar.ParseDateTime(raw, s.loc)
		if err != nil {
			return nil, 0, apperr.Validation("dateTo invalide")
		}
		_, end := calendar.DayBounds(t, s.loc)
		f.DateTo = &end
	}
	return s.store.List(ctx, f, page*pageSize, pageSize)
}

// UpdateInput ne porte que la date d'édition.
type UpdateInput struct {
	DateEdition *string `json:"dateEdition"`
}

// Update modifie les métadonnées d'un bordereau NOUVEAU.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Bordereau, error) {
	id = strings.TrimSpace(id)
	var dateEdition *time.Time
	if in.DateEdition != nil && strings.TrimSpace(*in.DateEdition) != "" {
		t, err := calendar.ParseDateTime(*in.DateEdition, s.loc)
		if err != nil {
			return Bordereau{}, apperr.Validation("dateEdition invalide")
		}
		dateEdition = &t
	}

	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		b, err := tx.Lock(ctx, id)
		if err != nil {
			return err
		}
		if b.Statut != StatutNouveau {
			return apperr.Validation("Modification interdite: bordereau non NOUVEAU")
		}
		if dateEdition == nil {
			return nil
		}
		return tx.UpdateDateEdition(ctx, id, *dateEdition)
	})
	if err != nil {
		return Bordereau{}, mapNotFound(err)
	}
	return s.Get(ctx, id)
}

// Delete détache les convocations puis supprime un bordereau NOUVEAU.
func (s *Service) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		b, err := tx.Lock(ctx, id)
		if err != nil {
			return err
		}
		if b.Statut != StatutNouveau {
			return apperr.Validation("Suppression interdite: bordereau non NOUVEAU")
		}
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return mapNotFound(err)
	}
	s.log.Info().Str("bordereau_id", id).Msg("bordereau supprimé")
	return nil
}

// Attach rattache les convocations éligibles parmi ids; les autres sont ignorées.
func (s *Service) Attach(ctx context.Context, id string, ids []string) (AttachResult, error) {
	id = strings.TrimSpace(id)
	ids = normalizeIDs(ids)
	if len(ids) == 0 {
		return AttachResult{}, apperr.Validation("convocationIds obligatoire")
	}

	var done []string
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		b, err := tx.Lock(ctx, id)
		if err != nil {
			return err
		}
		if b.Statut != StatutNouveau {
			return apperr.Validation("Ajout impossible : bordereau déjà généré")
		}
		done, err = tx.Attach(ctx, id, b.ServiceID, ids)
		return err
	})
	if err != nil {
		return AttachResult{}, mapNotFound(err)
	}

	attached, skipped := split(ids, done)
	return AttachResult{OK: true, Count: len(attached), AttachedIDs: attached, SkippedIDs: skipped}, nil
}

// Detach retire de ce bordereau les convocations listées, quel que soit leur statut.
func (s *Service) Detach(ctx context.Context, id string, ids []string) (DetachResult, error) {
	id = strings.TrimSpace(id)
	ids = normalizeIDs(ids)
	if len(ids) == 0 {
		return DetachResult{}, apperr.Validation("convocationIds obligatoire")
	}

	var done []string
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		b, err := tx.Lock(ctx, id)
		if err != nil {
			return err
		}
		if b.Statut != StatutNouveau {
			return apperr.Validation("Retrait impossible : bordereau déjà généré")
		}
		done, err = tx.Detach(ctx, id, ids)
		return err
	})
	if err != nil {
		return DetachResult{}, mapNotFound(err)
	}

	detached, skipped := split(ids, done)
	return DetachResult{OK: true, Count: len(detached), DetachedIDs: detached, SkippedIDs: skipped}, nil
}

// Generate fige le bordereau et passe ses convocations en CONVOCATION_GENEREE.
func (s *Service) Generate(ctx context.Context, id string) (GenerateResult, error) {
	id = strings.TrimSpace(id)
	at := s.now()

	var (
		serial  string
		updated int
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		b, err := tx.Lock(ctx, id)
		if err != nil {
			return err
		}
		if b.Statut != StatutNouveau {
			return apperr.Validation("Bordereau déjà généré")
		}
		total, other, err := tx.ConvocationStats(ctx, id)
		if err != nil {
			return err
		}
		if total == 0 {
			return apperr.Validation("Bordereau vide : aucune convocation")
		}
		if other > 0 {
			return errNotAllAConvoquer
		}
		serial = b.SerialNumber
		updated, err = tx.Generate(ctx, id, at)
		if err != nil {
			return err
		}
		if updated != total {
			return errNotAllAConvoquer
		}
		return nil
	})
	if err != nil {
		return GenerateResult{}, mapNotFound(err)
	}

	s.log.Info().Str("serial", serial).Int("convocations", updated).Msg("bordereau généré")
	msg := notify.Message{
		Title: "Bordereau généré",
		Text:  fmt.Sprintf("%s : %d convocation(s)", serial, updated),
	}
	if err := s.notifier.Notify(ctx, msg); err != nil {
		s.log.Warn().Err(err).Str("serial", serial).Msg("notification de génération échouée")
	}
	return GenerateResult{OK: true, UpdatedConvocations: updated}, nil
}

var errNotAllAConvoquer = apperr.Validation("Impossible : certaines convocations du bordereau ne sont pas en A_CONVOQUER")

func mapNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound("Bordereau introuvable")
	}
	return err
}

// normalizeIDs supprime espaces, vides et doublons.
func normalizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
