package personnel

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sante-travail/convocations/internal/db"
)

// ErrNotFound est renvoyé quand l'agent n'existe pas.
var ErrNotFound = errors.New("personnel introuvable")

// Store décrit la persistance du personnel.
type Store interface {
	Search(ctx context.Context, f Filter, offset, limit int) ([]Personnel, int, error)
	Get(ctx context.Context, id string) (Personnel, error)
	Update(ctx context.Context, id string, p UpdateParams) (Personnel, error)
	ListServices(ctx context.Context, formationID string) ([]Unite, error)
	ListIDs(ctx context.Context, f Filter, limit int) ([]string, error)
}

// UpdateParams regroupe les champs modifiables; les pointeurs nil ne sont pas modifiés.
type UpdateParams struct {
	FirstName   string
	LastName    string
	PosteID     string
	ServiceID   string
	FormationID string
	IsActive    *bool
	Categorie   *string
	Tags        []string
	SetTags     bool
}

// Repository implémente Store sur Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository crée le repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SelectColumns liste les colonnes lues par Scan, alias p/po/s/f.
const SelectColumns = `p.id, p.first_name, p.last_name, p.poste_id, p.service_id, p.formation_id,
	p.categorie, p.tags, p.is_active, p.created_at, p.updated_at,
	po.libelle, s.libelle, f.libelle`

// Joins relie le personnel p à ses références.
const Joins = ` JOIN postes po ON po.id = p.poste_id
	JOIN services s ON s.id = p.service_id
	JOIN formations f ON f.id = p.formation_id`

// Scan lit une ligne produite par SelectColumns; les colonnes supplémentaires
// sont lues dans extra.
func Scan(row pgx.Row, extra ...any) (Personnel, error) {
	var (
		p                         Personnel
		poste, service, formation string
	)
	dest := []any{&p.ID, &p.FirstName, &p.LastName, &p.PosteID, &p.ServiceID, &p.FormationID,
		&p.Categorie, &p.Tags, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
		&poste, &service, &formation}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return Personnel{}, err
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	p.Poste = &Ref{ID: p.PosteID, Libelle: poste}
	p.Service = &Ref{ID: p.ServiceID, Libelle: service}
	p.Formation = &Ref{ID: p.FormationID, Libelle: formation}
	return p, nil
}

// Search renvoie une page du personnel filtré, triée par nom puis prénom.
func (r *Repository) Search(ctx context.Context, f Filter, offset, limit int) ([]Personnel, int, error) {
	var w db.Where
	f.ApplyActive(&w, "p")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM personnel p`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + SelectColumns + ` FROM personnel p` + Joins + w.SQL() +
		` ORDER BY p.last_name ASC, p.first_name ASC, p.id ASC`
	query += fmt.Sprintf(" OFFSET %s LIMIT %s", w.Arg(offset), w.Arg(limit))

	rows, err := r.pool.Query(ctx, query, w.Args()...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []Personnel{}
	for rows.Next() {
		p, err := Scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

// Get charge un agent avec ses références, actif ou non.
func (r *Repository) Get(ctx context.Context, id string) (Personnel, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+SelectColumns+` FROM personnel p`+Joins+` WHERE p.id = $1`, id)
	p, err := Scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Personnel{}, ErrNotFound
	}
	return p, err
}

// Update applique la modification puis relit l'agent.
func (r *Repository) Update(ctx context.Context, id string, in UpdateParams) (Personnel, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE personnel SET
			first_name = $2,
			last_name = $3,
			poste_id = $4,
			service_id = $5,
			formation_id = $6,
			is_active = COALESCE($7, is_active),
			categorie = CASE WHEN $8::text IS NULL THEN categorie ELSE $8 END,
			tags = CASE WHEN $9 THEN $10::text[] ELSE tags END,
			updated_at = now()
		WHERE id = $1`,
		id, in.FirstName, in.LastName, in.PosteID, in.ServiceID, in.FormationID,
		in.IsActive, in.Categorie, in.SetTags, in.Tags)
	if err != nil {
		return Personnel{}, err
	}
	if tag.RowsAffected() == 0 {
		return Personnel{}, ErrNotFound
	}
	return r.Get(ctx, id)
}

// ListServices renvoie les services d'une formation triés par libellé.
func (r *Repository) ListServices(ctx context.Context, formationID string) ([]Unite, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, libelle, formation_id FROM services
		WHERE formation_id = $1 ORDER BY libelle ASC`, formationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []Unite{}
	for rows.Next() {
		var s Unite
		if err := rows.Scan(&s.ID, &s.Libelle, &s.FormationID); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

// ListIDs renvoie au plus limit identifiants d'agents actifs filtrés, dans l'ordre de la recherche.
func (r *Repository) ListIDs(ctx context.Context, f Filter, limit int) ([]string, error) {
	var w db.Where
	f.ApplyActive(&w, "p")
	query := `SELECT p.id FROM personnel p` + w.SQL() +
		` ORDER BY p.last_name ASC, p.first_name ASC, p.id ASC LIMIT ` + w.Arg(limit)

	rows, err := r.pool.Query(ctx, query, w.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
