package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/sante-travail/convocations/internal/util"
)

// JourFerie est un jour férié (jour civil et libellé optionnel).
type JourFerie struct {
	ID    string  `json:"-"`
	Date  string  `json:"date"`
	Label *string `json:"label"`
}

// HolidayStore lit et écrit la table des jours fériés.
type HolidayStore interface {
	ListBetween(ctx context.Context, from, to string) ([]JourFerie, error)
	Upsert(ctx context.Context, day string, label *string) (bool, error)
}

// Repository implémente HolidayStore sur Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository crée le repository des jours fériés.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListBetween renvoie les jours fériés entre from et to inclus; une borne vide est ignorée.
func (r *Repository) ListBetween(ctx context.Context, from, to string) ([]JourFerie, error) {
	query := `SELECT id, to_char(date, 'YYYY-MM-DD'), label FROM jours_feries WHERE 1=1`
	args := []any{}
	if from != "" {
		args = append(args, from)
		query += fmt.Sprintf(" AND date >= $%d::date", len(args))
	}
	if to != "" {
		args = append(args, to)
		query += fmt.Sprintf(" AND date <= $%d::date", len(args))
	}
	query += " ORDER BY date ASC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []JourFerie
	for rows.Next() {
		var jf JourFerie
		if err := rows.Scan(&jf.ID, &jf.Date, &jf.Label); err != nil {
			return nil, err
		}
		items = append(items, jf)
	}
	return items, rows.Err()
}

// Upsert crée ou renomme le jour férié d'une date; renvoie true à la création.
func (r *Repository) Upsert(ctx context.Context, day string, label *string) (bool, error) {
	var inserted bool
	err := r.pool.QueryRow(ctx, `
		INSERT INTO jours_feries (id, date, label) VALUES ($1, $2::date, $3)
		ON CONFLICT (date) DO UPDATE SET label = EXCLUDED.label
		RETURNING (xmax = 0)`, util.NewID(), day, label).Scan(&inserted)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return inserted, err
}

// Service expose le calendrier avec un cache redis par année.
type Service struct {
	store    HolidayStore
	cache    *redis.Client
	cacheTTL time.Duration
	loc      *time.Location
}

// NewService crée le service; cache peut être nil.
func NewService(store HolidayStore, cache *redis.Client, cacheTTL time.Duration, loc *time.Location) *Service {
	return &Service{store: store, cache: cache, cacheTTL: cacheTTL, loc: loc}
}

// Location renvoie le fuseau civil utilisé pour les calculs de jour.
func (s *Service) Location() *time.Location {
	return s.loc
}

// List renvoie les jours fériés d'un intervalle; from et to sont des jours YYYY-MM-DD optionnels.
func (s *Service) List(ctx context.Context, from, to string) ([]JourFerie, error) {
	if from != "" {
		if _, err := ParseDay(from, s.loc); err != nil {
			return nil, errInvalidBound("from")
		}
	}
	if to != "" {
		if _, err := ParseDay(to, s.loc); err != nil {
			return nil, errInvalidBound("to")
		}
	}
	items, err := s.store.ListBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []JourFerie{}
	}
	return items, nil
}

// FindOnDay renvoie le jour férié tombant le même jour civil que t, ou nil.
func (s *Service) FindOnDay(ctx context.Context, t time.Time) (*JourFerie, error) {
	day := DayKey(t, s.loc)
	items, err := s.year(ctx, t.In(s.loc).Year())
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].Date == day {
			jf := items[i]
			return &jf, nil
		}
	}
	return nil, nil
}

// Import enregistre des jours fériés et invalide le cache des années touchées.
func (s *Service) Import(ctx context.Context, items []JourFerie) (int, error) {
	created := 0
	years := map[int]struct{}{}
	for _, item := range items {
		day, err := ParseDay(item.Date, s.loc)
		if err != nil {
			return created, fmt.Errorf("date invalide: %q", item.Date)
		}
		inserted, err := s.store.Upsert(ctx, day.Format(DayLayout), util.TrimPtr(item.Label))
		if err != nil {
			return created, err
		}
		if inserted {
			created++
		}
		years[day.Year()] = struct{}{}
	}
	for year := range years {
		s.invalidate(ctx, year)
	}
	return created, nil
}

func (s *Service) year(ctx context.Context, year int) ([]JourFerie, error) {
	key := cacheKey(year)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key).Bytes(); err == nil {
			var items []JourFerie
			if json.Unmarshal(data, &items) == nil {
				return items, nil
			}
		}
	}

	items, err := s.store.ListBetween(ctx, fmt.Sprintf("%04d-01-01", year), fmt.Sprintf("%04d-12-31", year))
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if payload, err := json.Marshal(items); err == nil {
			if err := s.cache.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("cache jours fériés indisponible")
			}
		}
	}
	return items, nil
}

func (s *Service) invalidate(ctx context.Context, year int) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cacheKey(year)).Err(); err != nil {
		log.Warn().Err(err).Int("year", year).Msg("invalidation cache jours fériés impossible")
	}
}

func cacheKey(year int) string {
	return "joursferies:" + strconv.Itoa(year)
}
