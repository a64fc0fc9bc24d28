package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sante-travail/convocations/internal/apperr"
)

const lockNotAvailable = "55P03"

// LockTimeout borne l'attente d'un verrou de ligne: une génération de bordereau
// et une mise à jour de convocation se disputent les mêmes lignes.
const LockTimeout = 5 * time.Second

// ErrLocked est renvoyé quand le verrou n'a pas été obtenu à temps.
var ErrLocked = apperr.Conflict("Enregistrement en cours de modification, réessayez", nil)

// Beginner ouvre une transaction; *pgxpool.Pool le satisfait.
type Beginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// WithTx exécute fn dans une transaction explicite; toute erreur annule l'ensemble.
func WithTx(ctx context.Context, b Beginner, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return run(ctx, b, 0, fn)
}

// WithLockedTx est WithTx avec un lock_timeout local: un verrou non obtenu à
// temps devient ErrLocked (409) au lieu d'une attente sans fin.
func WithLockedTx(ctx context.Context, b Beginner, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return run(ctx, b, LockTimeout, fn)
}

func run(ctx context.Context, b Beginner, lockTimeout time.Duration, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := b.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if lockTimeout > 0 {
		// SET n'accepte pas de paramètre lié.
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", lockTimeout.Milliseconds())); err != nil {
			return fmt.Errorf("lock_timeout: %w", err)
		}
	}

	if err := fn(ctx, tx); err != nil {
		if IsLockNotAvailable(err) {
			return ErrLocked
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// IsLockNotAvailable indique un lock_timeout dépassé ou un NOWAIT refusé.
func IsLockNotAvailable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == lockNotAvailable
}
