package convocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sante-travail/convocations/internal/db"
	"github.com/sante-travail/convocations/internal/personnel"
)

// ErrNotFound est renvoyé quand la convocation n'existe pas.
var ErrNotFound = errors.New("convocation introuvable")

// Store décrit la persistance des convocations.
type Store interface {
	Insert(ctx context.Context, c Convocation) error
	InsertMany(ctx context.Context, items []Convocation) error
	Get(ctx context.Context, id string) (Convocation, error)
	// Mutate verrouille la convocation, applique fn puis enregistre le résultat.
	Mutate(ctx context.Context, id string, fn func(*Convocation) error) error
	PersonnelExists(ctx context.Context, id string) (bool, error)
	CountPersonnel(ctx context.Context, ids []string) (int, error)
	CountActiveBetween(ctx context.Context, start, end time.Time) (int, error)
	List(ctx context.Context, f ListFilter, offset, limit int) ([]Convocation, int, error)
}

// Repository implémente Store sur Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository crée le repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Columns liste les colonnes d'une convocation, alias c.
const Columns = `c.id, c.personnel_id, c.statut, c.convocation_type, c.date_prevue, c.date_convocation,
	c.commentaire, c.bordereau_id, c.created_at, c.updated_at`

// Dest renvoie les destinations de Scan correspondant à Columns.
func Dest(c *Convocation) []any {
	return []any{&c.ID, &c.PersonnelID, &c.Statut, &c.ConvocationType, &c.DatePrevue, &c.DateConvocation,
		&c.Commentaire, &c.BordereauID, &c.CreatedAt, &c.UpdatedAt}
}

const insertSQL = `
	INSERT INTO convocations (id, personnel_id, statut, convocation_type, date_prevue, date_convocation, commentaire, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`

// Insert crée une convocation.
func (r *Repository) Insert(ctx context.Context, c Convocation) error {
	_, err := r.pool.Exec(ctx, insertSQL, c.ID, c.PersonnelID, c.Statut, c.ConvocationType, c.DatePrevue, c.DateConvocation, c.Commentaire, c.CreatedAt)
	return err
}

// InsertMany crée toutes les convocations dans une seule transaction.
func (r *Repository) InsertMany(ctx context.Context, items []Convocation) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, c := range items {
			batch.Queue(insertSQL, c.ID, c.PersonnelID, c.Statut, c.ConvocationType, c.DatePrevue, c.DateConvocation, c.Commentaire, c.CreatedAt)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

// Get charge une convocation avec son agent.
func (r *Repository) Get(ctx context.Context, id string) (Convocation, error) {
	var c Convocation
	row := r.pool.QueryRow(ctx, `SELECT `+personnel.SelectColumns+`, `+Columns+`
		FROM convocations c
		JOIN personnel p ON p.id = c.personnel_id`+personnel.Joins+`
		WHERE c.id = $1`, id)
	p, err := personnel.Scan(row, Dest(&c)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return Convocation{}, ErrNotFound
	}
	if err != nil {
		return Convocation{}, err
	}
	c.Personnel = &p
	return c, nil
}

// Mutate verrouille la ligne, applique fn et enregistre les champs modifiables.
func (r *Repository) Mutate(ctx context.Context, id string, fn func(*Convocation) error) error {
	return db.WithLockedTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		var c Convocation
		err := tx.QueryRow(ctx, `SELECT `+Columns+`
			FROM convocations c
			WHERE c.id = $1
			FOR UPDATE`, id).Scan(Dest(&c)...)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		if err := fn(&c); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE convocations SET
				statut = $2,
				convocation_type = $3,
				date_prevue = $4,
				date_convocation = $5,
				commentaire = $6,
				updated_at = now()
			WHERE id = $1`,
			c.ID, c.Statut, c.ConvocationType, c.DatePrevue, c.DateConvocation, c.Commentaire)
		return err
	})
}

// PersonnelExists indique l'existence d'un agent, actif ou non.
func (r *Repository) PersonnelExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM personnel WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// CountPersonnel compte les agents existants parmi ids.
func (r *Repository) CountPersonnel(ctx context.Context, ids []string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM personnel WHERE id = ANY($1)`, ids).Scan(&n)
	return n, err
}

// CountActiveBetween compte les convocations non annulées dont la date prévue tombe dans [start, end).
func (r *Repository) CountActiveBetween(ctx context.Context, start, end time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM convocations
		WHERE date_prevue >= $1 AND date_prevue < $2 AND statut <> $3`,
		start, end, StatutAnnulee).Scan(&n)
	return n, err
}

// List renvoie une page filtrée, triée par date prévue puis création décroissantes.
func (r *Repository) List(ctx context.Context, f ListFilter, offset, limit int) ([]Convocation, int, error) {
	var w db.Where
	applyListFilter(&w, f)

	from := ` FROM convocations c JOIN personnel p ON p.id = c.personnel_id`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*)`+from+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + personnel.SelectColumns + `, ` + Columns + from + personnel.Joins + w.SQL() +
		` ORDER BY c.date_prevue DESC, c.created_at DESC, c.id DESC`
	query += fmt.Sprintf(" OFFSET %s LIMIT %s", w.Arg(offset), w.Arg(limit))

	rows, err := r.pool.Query(ctx, query, w.Args()...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []Convocation{}
	for rows.Next() {
		var c Convocation
		p, err := personnel.Scan(rows, Dest(&c)...)
		if err != nil {
			return nil, 0, err
		}
		c.Personnel = &p
		items = append(items, c)
	}
	return items, total, rows.Err()
}

func applyListFilter(w *db.Where, f ListFilter) {
	if f.Statut != "" {
		w.Add("c.statut = $%d", f.Statut)
	}
	if f.ConvocationType != "" {
		w.Add("c.convocation_type = $%d", f.ConvocationType)
	}
	if f.BordereauID != "" {
		w.Add("c.bordereau_id = $%d", f.BordereauID)
	}
	if f.Unattached {
		w.AddRaw("c.bordereau_id IS NULL")
	}
	if f.DateConvocFrom != nil {
		w.Add("c.date_convocation >= $%d", *f.DateConvocFrom)
	}
	if f.DateConvocTo != nil {
		w.Add("c.date_convocation < $%d", *f.DateConvocTo)
	}
	if f.DatePrevueFrom != nil {
		w.Add("c.date_prevue >= $%d", *f.DatePrevueFrom)
	}
	if f.DatePrevueTo != nil {
		w.Add("c.date_prevue < $%d", *f.DatePrevueTo)
	}
	f.Personnel.Apply(w, "p")
}
