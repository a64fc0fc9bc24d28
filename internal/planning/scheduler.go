package planning

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sante-travail/convocations/internal/apperr"
	"github.com/sante-travail/convocations/internal/calendar"
	"github.com/sante-travail/convocations/internal/convocation"
	"github.com/sante-travail/convocations/internal/personnel"
)

// PersonnelLister liste les agents actifs filtrés dans l'ordre de la recherche.
type PersonnelLister interface {
	ListIDs(ctx context.Context, f personnel.Filter, limit int) ([]string, error)
}

// BulkCreator crée les convocations planifiées.
type BulkCreator interface {
	BulkCreate(ctx context.Context, in convocation.BulkInput) (int, error)
	CountOnDay(ctx context.Context, day string) (int, error)
}

// HolidayFinder renvoie le jour férié d'une date, ou nil.
type HolidayFinder interface {
	FindOnDay(ctx context.Context, t time.Time) (*calendar.JourFerie, error)
}

// Scheduler exécute un plan de convocations en masse.
type Scheduler struct {
	people   PersonnelLister
	convs    BulkCreator
	holidays HolidayFinder
	loc      *time.Location
	log      zerolog.Logger
}

// NewScheduler crée le planificateur.
func NewScheduler(people PersonnelLister, convs BulkCreator, holidays HolidayFinder, loc *time.Location) *Scheduler {
	return &Scheduler{
		people:   people,
		convs:    convs,
		holidays: holidays,
		loc:      loc,
		log:      log.With().Str("component", "planning").Logger(),
	}
}

// PlanRow demande quantity convocations le jour day (YYYY-MM-DD).
type PlanRow struct {
	Day      string `json:"day"`
	Quantity int    `json:"quantity"`
}

// Input est le corps d'une planification.
type Input struct {
	Filters         personnel.Filter `json:"filters"`
	Plan            []PlanRow        `json:"plan"`
	Statut          *string          `json:"statut"`
	ConvocationType *string          `json:"convocationType"`
	DateConvocation *string          `json:"dateConvocation"`
	Commentaire     *string          `json:"commentaire"`
}

// DayResult résume une journée planifiée.
type DayResult struct {
	Day       string `json:"day"`
	Quantity  int    `json:"quantity"`
	FirstSlot string `json:"firstSlot,omitempty"`
	LastSlot  string `json:"lastSlot,omitempty"`
}

// Result résume une planification.
type Result struct {
	Created int         `json:"created"`
	Days    []DayResult `json:"days"`
}

type plannedDay struct {
	key   string
	slots []time.Time
}

// Schedule construit les créneaux de chaque jour et crée une convocation par
// agent, les agents étant pris dans l'ordre de la recherche.
func (s *Scheduler) Schedule(ctx context.Context, in Input) (Result, error) {
	days, total, err := s.buildPlan(in.Plan)
	if err != nil {
		return Result{}, err
	}

	ids, err := s.people.ListIDs(ctx, trimFilter(in.Filters), total)
	if err != nil {
		return Result{}, err
	}
	if len(ids) == 0 {
		return Result{}, apperr.Validation("Aucun personnel trouvé pour ces filtres.")
	}
	if len(ids) < total {
		return Result{}, apperr.Validation("Plan invalide : le total des créneaux ne correspond pas au total à créer.")
	}

	rows := make([]convocation.BulkRow, 0, total)
	res := Result{Days: make([]DayResult, 0, len(days))}
	for _, d := range days {
		dr := DayResult{Day: d.key, Quantity: len(d.slots)}
		for i, slot := range d.slots {
			iso := slot.Format(time.RFC3339)
			if i == 0 {
				dr.FirstSlot = iso
			}
			dr.LastSlot = iso
			rows = append(rows, convocation.BulkRow{PersonnelID: ids[len(rows)], DatePrevue: iso})
		}
		res.Days = append(res.Days, dr)
	}

	created, err := s.convs.BulkCreate(ctx, convocation.BulkInput{
		Rows:            rows,
		Statut:          in.Statut,
		ConvocationType: in.ConvocationType,
		DateConvocation: in.DateConvocation,
		Commentaire:     in.Commentaire,
	})
	if err != nil {
		return Result{}, err
	}
	res.Created = created

	s.log.Info().Int("days", len(days)).Int("created", created).Msg("planification exécutée")
	return res, nil
}

func (s *Scheduler) buildPlan(plan []PlanRow) ([]plannedDay, int, error) {
	if len(plan) == 0 {
		return nil, 0, apperr.Validation("plan obligatoire")
	}
	seen := make(map[string]struct{}, len(plan))
	days := make([]plannedDay, 0, len(plan))
	total := 0
	for _, row := range plan {
		key := strings.TrimSpace(row.Day)
		day, err := calendar.ParseDay(key, s.loc)
		if err != nil {
			return nil, 0, apperr.Validationf("Jour invalide : %q", row.Day)
		}
		if _, dup := seen[key]; dup {
			return nil, 0, apperr.Validationf("Jour en double : %s", key)
		}
		seen[key] = struct{}{}
		if row.Quantity < 0 {
			return nil, 0, apperr.Validationf("Quantité invalide pour %s", key)
		}
		slots, err := BuildSlots(day, row.Quantity, s.loc)
		if err != nil {
			return nil, 0, err
		}
		if len(slots) == 0 {
			continue
		}
		days = append(days, plannedDay{key: key, slots: slots})
		total += len(slots)
	}
	if total == 0 {
		return nil, 0, apperr.Validation("Plan vide : aucune convocation à créer")
	}
	return days, total, nil
}

// DayCapacity est l'indication de charge d'une journée.
type DayCapacity struct {
	Day            string  `json:"day"`
	TotalNonAnnule int     `json:"totalNonAnnule"`
	Weekend        bool    `json:"weekend"`
	JourFerie      *string `json:"jourFerie"`
}

// Capacity renvoie, pour chaque jour, le nombre de convocations non annulées
// déjà prévues et si le jour est chômé. L'information est indicative.
func (s *Scheduler) Capacity(ctx context.Context, days []string) ([]DayCapacity, error) {
	if len(days) == 0 {
		return nil, apperr.Validation("day obligatoire (YYYY-MM-DD)")
	}
	out := make([]DayCapacity, 0, len(days))
	for _, raw := range days {
		key := strings.TrimSpace(raw)
		day, err := calendar.ParseDay(key, s.loc)
		if err != nil {
			return nil, apperr.Validation("day invalide")
		}
		n, err := s.convs.CountOnDay(ctx, key)
		if err != nil {
			return nil, err
		}
		dc := DayCapacity{Day: key, TotalNonAnnule: n, Weekend: calendar.IsWeekend(day, s.loc)}
		jf, err := s.holidays.FindOnDay(ctx, day)
		if err != nil {
			return nil, err
		}
		if jf != nil {
			label := "jour férié"
			if jf.Label != nil && *jf.Label != "" {
				label = *jf.Label
			}
			dc.JourFerie = &label
		}
		out = append(out, dc)
	}
	return out, nil
}

func trimFilter(f personnel.Filter) personnel.Filter {
	f.Nom = strings.TrimSpace(f.Nom)
	f.Prenom = strings.TrimSpace(f.Prenom)
	f.PosteID = strings.TrimSpace(f.PosteID)
	f.ServiceID = strings.TrimSpace(f.ServiceID)
	f.FormationID = strings.TrimSpace(f.FormationID)
	f.Categorie = strings.TrimSpace(f.Categorie)
	f.Tag = strings.TrimSpace(f.Tag)
	return f
}
