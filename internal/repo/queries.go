package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sante-travail/convocations/internal/db"
)

// Queries regroupe l'accès aux comptes et aux refresh tokens.
type Queries struct {
	pool *pgxpool.Pool
}

// New crée le repository.
func New(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

const userColumns = `id, email, password_hash, first_name, last_name, role, is_active, created_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Role, &u.IsActive, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

// GetUserByEmail recherche un compte par e-mail (insensible à la casse).
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

// GetUserByID recherche un compte par identifiant.
func (q *Queries) GetUserByID(ctx context.Context, id string) (User, error) {
	row := q.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// CreateUser insère un compte actif.
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name, role)
		VALUES ($1, lower($2), $3, $4, $5, $6)
		RETURNING `+userColumns,
		arg.ID, arg.Email, arg.PasswordHash, arg.FirstName, arg.LastName, arg.Role)
	user, err := scanUser(row)
	if db.IsUniqueViolation(err, "") {
		return User{}, ErrEmailTaken
	}
	return user, err
}

// UpdatePasswordHash remplace le hash (migration bcrypt vers argon2id).
func (q *Queries) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	tag, err := q.pool.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertRefreshToken persiste un refresh token haché.
func (q *Queries) InsertRefreshToken(ctx context.Context, arg InsertRefreshTokenParams) (RefreshToken, error) {
	var t RefreshToken
	err := q.pool.QueryRow(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, user_id, token_hash, expires_at, revoked, created_at`,
		arg.ID, arg.UserID, arg.TokenHash, arg.ExpiresAt, arg.CreatedAt,
	).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.Revoked, &t.CreatedAt)
	return t, err
}

// GetRefreshTokenByHash charge un refresh token par son hash.
func (q *Queries) GetRefreshTokenByHash(ctx context.Context, hash string) (RefreshToken, error) {
	var t RefreshToken
	err := q.pool.QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, revoked, created_at
		FROM refresh_tokens WHERE token_hash = $1`, hash,
	).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.Revoked, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return RefreshToken{}, ErrNotFound
	}
	return t, err
}

// RevokeRefreshToken marque le jeton comme révoqué.
func (q *Queries) RevokeRefreshToken(ctx context.Context, hash string) error {
	tag, err := q.pool.Exec(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE token_hash = $1`, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InvalidateOtherRefreshTokens révoque les sessions de l'utilisateur sauf celle conservée.
func (q *Queries) InvalidateOtherRefreshTokens(ctx context.Context, userID, keepHash string) error {
	_, err := q.pool.Exec(ctx, `
		UPDATE refresh_tokens SET revoked = TRUE
		WHERE user_id = $1 AND token_hash <> $2 AND revoked = FALSE`, userID, keepHash)
	return err
}
