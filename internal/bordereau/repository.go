package bordereau

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sante-travail/convocations/internal/convocation"
	"github.com/sante-travail/convocations/internal/db"
	"github.com/sante-travail/convocations/internal/personnel"
)

// ErrNotFound est renvoyé quand le bordereau n'existe pas.
var ErrNotFound = errors.New("bordereau introuvable")

// Store décrit la persistance des bordereaux.
type Store interface {
	// InTx exécute fn dans une transaction; une erreur de fn annule tout.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Get(ctx context.Context, id string) (Bordereau, error)
	List(ctx context.Context, f ListFilter, offset, limit int) ([]Bordereau, int, error)
	ServiceExists(ctx context.Context, id string) (bool, error)
}

// Tx regroupe les opérations faites sous transaction.
type Tx interface {
	// LockService sérialise les créations d'un même service jusqu'à la fin de la transaction.
	LockService(ctx context.Context, serviceID string) error
	CountOnDay(ctx context.Context, serviceID string, start, end time.Time) (int, error)
	SerialExists(ctx context.Context, serial string) (bool, error)
	Insert(ctx context.Context, b Bordereau) error
	// AttachEligible rattache les convocations A_CONVOQUER libres du service.
	AttachEligible(ctx context.Context, bordereauID, serviceID string) (int, error)
	// Lock charge le bordereau en verrouillant sa ligne.
	Lock(ctx context.Context, id string) (Bordereau, error)
	UpdateDateEdition(ctx context.Context, id string, t time.Time) error
	// Delete détache les convocations puis supprime le bordereau.
	Delete(ctx context.Context, id string) error
	Attach(ctx context.Context, id, serviceID string, ids []string) ([]string, error)
	Detach(ctx context.Context, id string, ids []string) ([]string, error)
	// ConvocationStats verrouille les convocations rattachées avant de les compter.
	ConvocationStats(ctx context.Context, id string) (total, notAConvoquer int, err error)
	// Generate fige le bordereau et ne passe en CONVOCATION_GENEREE que les convocations encore A_CONVOQUER.
	Generate(ctx context.Context, id string, at time.Time) (int, error)
}

// Repository implémente Store sur Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository crée le repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const columns = `b.id, b.serial_number, b.date_edition, b.service_id, b.statut, b.created_at, b.updated_at`

func dest(b *Bordereau) []any {
	return []any{&b.ID, &b.SerialNumber, &b.DateEdition, &b.ServiceID, &b.Statut, &b.CreatedAt, &b.UpdatedAt}
}

// InTx ouvre une transaction Postgres aux verrous bornés par db.LockTimeout.
func (r *Repository) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return db.WithLockedTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, pgTx{tx: tx})
	})
}

// Get charge le bordereau, son service et ses convocations.
func (r *Repository) Get(ctx context.Context, id string) (Bordereau, error) {
	var (
		b   Bordereau
		svc personnel.Unite
		f   personnel.Ref
	)
	row := r.pool.QueryRow(ctx, `SELECT `+columns+`, s.id, s.libelle, s.formation_id, f.id, f.libelle,
			(SELECT count(*) FROM convocations c WHERE c.bordereau_id = b.id)
		FROM bordereaux b
		JOIN services s ON s.id = b.service_id
		JOIN formations f ON f.id = s.formation_id
		WHERE b.id = $1`, id)
	err := row.Scan(append(dest(&b), &svc.ID, &svc.Libelle, &svc.FormationID, &f.ID, &f.Libelle, &b.ConvocationCount)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return Bordereau{}, ErrNotFound
	}
	if err != nil {
		return Bordereau{}, err
	}
	svc.Formation = &f
	b.Service = &svc

	rows, err := r.pool.Query(ctx, `SELECT `+personnel.SelectColumns+`, `+convocation.Columns+`
		FROM convocations c
		JOIN personnel p ON p.id = c.personnel_id`+personnel.Joins+`
		WHERE c.bordereau_id = $1
		ORDER BY c.date_prevue ASC, c.created_at ASC, c.id ASC`, id)
	if err != nil {
		return Bordereau{}, err
	}
	defer rows.Close()

	b.Convocations = []convocation.Convocation{}
	for rows.Next() {
		var c convocation.Convocation
		p, err := personnel.Scan(rows, convocation.Dest(&c)...)
		if err != nil {
			return Bordereau{}, err
		}
		c.Personnel = &p
		b.Convocations = append(b.Convocations, c)
	}
	return b, rows.Err()
}

// List renvoie une page triée par date d'édition puis création décroissantes.
func (r *Repository) List(ctx context.Context, f ListFilter, offset, limit int) ([]Bordereau, int, error) {
	var w db.Where
	if f.ServiceID != "" {
		w.Add("b.service_id = $%d", f.ServiceID)
	}
	if f.Statut != "" {
		w.Add("b.statut = $%d", f.Statut)
	}
	if f.Q != "" {
		w.Add("b.serial_number ILIKE $%d", db.Contains(f.Q))
	}
	if f.DateFrom != nil {
		w.Add("b.date_edition >= $%d", *f.DateFrom)
	}
	if f.DateTo != nil {
		w.Add("b.date_edition < $%d", *f.DateTo)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM bordereaux b`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + columns + `, s.id, s.libelle, s.formation_id,
			(SELECT count(*) FROM convocations c WHERE c.bordereau_id = b.id)
		FROM bordereaux b
		JOIN services s ON s.id = b.service_id` + w.SQL() +
		` ORDER BY b.date_edition DESC, b.created_at DESC, b.id DESC`
	query += fmt.Sprintf(" OFFSET %s LIMIT %s", w.Arg(offset), w.Arg(limit))

	rows, err := r.pool.Query(ctx, query, w.Args()...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []Bordereau{}
	for rows.Next() {
		var (
			b   Bordereau
			svc personnel.Unite
		)
		if err := rows.Scan(append(dest(&b), &svc.ID, &svc.Libelle, &svc.FormationID, &b.ConvocationCount)...); err != nil {
			return nil, 0, err
		}
		b.Service = &svc
		items = append(items, b)
	}
	return items, total, rows.Err()
}

// ServiceExists indique l'existence d'un service.
func (r *Repository) ServiceExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM services WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

type pgTx struct {
	tx pgx.Tx
}

func (t pgTx) LockService(ctx context.Context, serviceID string) error {
	_, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('bordereau:' || $1))`, serviceID)
	return err
}

func (t pgTx) CountOnDay(ctx context.Context, serviceID string, start, end time.Time) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `
		SELECT count(*) FROM bordereaux
		WHERE service_id = $1 AND date_edition >= $2 AND date_edition < $3`,
		serviceID, start, end).Scan(&n)
	return n, err
}

func (t pgTx) SerialExists(ctx context.Context, serial string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bordereaux WHERE serial_number = $1)`, serial).Scan(&exists)
	return exists, err
}

func (t pgTx) Insert(ctx context.Context, b Bordereau) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO bordereaux (id, serial_number, date_edition, service_id, statut, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		b.ID, b.SerialNumber, b.DateEdition, b.ServiceID, b.Statut, b.CreatedAt)
	return err
}

func (t pgTx) AttachEligible(ctx context.Context, bordereauID, serviceID string) (int, error) {
	tag, err := t.tx.Exec(ctx, `
		UPDATE convocations c SET bordereau_id = $1, updated_at = now()
		FROM personnel p
		WHERE p.id = c.personnel_id
			AND p.service_id = $2
			AND c.bordereau_id IS NULL
			AND c.statut = $3`,
		bordereauID, serviceID, convocation.StatutAConvoquer)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (t pgTx) Lock(ctx context.Context, id string) (Bordereau, error) {
	var b Bordereau
	err := t.tx.QueryRow(ctx, `SELECT `+columns+` FROM bordereaux b WHERE b.id = $1 FOR UPDATE`, id).Scan(dest(&b)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return Bordereau{}, ErrNotFound
	}
	return b, err
}

func (t pgTx) UpdateDateEdition(ctx context.Context, id string, at time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE bordereaux SET date_edition = $2, updated_at = now() WHERE id = $1`, id, at)
	return err
}

func (t pgTx) Delete(ctx context.Context, id string) error {
	if _, err := t.tx.Exec(ctx, `UPDATE convocations SET bordereau_id = NULL, updated_at = now() WHERE bordereau_id = $1`, id); err != nil {
		return err
	}
	_, err := t.tx.Exec(ctx, `DELETE FROM bordereaux WHERE id = $1`, id)
	return err
}

func (t pgTx) Attach(ctx context.Context, id, serviceID string, ids []string) ([]string, error) {
	rows, err := t.tx.Query(ctx, `
		UPDATE convocations c SET bordereau_id = $1, updated_at = now()
		FROM personnel p
		WHERE c.id = ANY($3)
			AND p.id = c.personnel_id
			AND p.service_id = $2
			AND c.bordereau_id IS NULL
			AND c.statut = $4
		RETURNING c.id`,
		id, serviceID, ids, convocation.StatutAConvoquer)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (t pgTx) Detach(ctx context.Context, id string, ids []string) ([]string, error) {
	rows, err := t.tx.Query(ctx, `
		UPDATE convocations SET bordereau_id = NULL, updated_at = now()
		WHERE bordereau_id = $1 AND id = ANY($2)
		RETURNING id`, id, ids)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (t pgTx) ConvocationStats(ctx context.Context, id string) (int, int, error) {
	var total, other int
	err := t.tx.QueryRow(ctx, `
		SELECT count(*), count(*) FILTER (WHERE statut <> $2)
		FROM (SELECT statut FROM convocations WHERE bordereau_id = $1 FOR UPDATE) c`,
		id, convocation.StatutAConvoquer).Scan(&total, &other)
	return total, other, err
}

func (t pgTx) Generate(ctx context.Context, id string, at time.Time) (int, error) {
	if _, err := t.tx.Exec(ctx, `UPDATE bordereaux SET statut = $2, updated_at = now() WHERE id = $1`, id, StatutGenere); err != nil {
		return 0, err
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE convocations SET statut = $2, date_convocation = $3, updated_at = now()
		WHERE bordereau_id = $1 AND statut = $4`,
		id, convocation.StatutConvocationGeneree, at, convocation.StatutAConvoquer)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
