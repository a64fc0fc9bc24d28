package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/sante-travail/convocations/internal/auth"
	"github.com/sante-travail/convocations/internal/repo"
	"github.com/sante-travail/convocations/internal/util"
)

var (
	// ErrInvalidCredentials indique un échec d'authentification.
	ErrInvalidCredentials = errors.New("identifiants invalides")
	// ErrAccountDisabled indique un compte désactivé.
	ErrAccountDisabled = errors.New("compte désactivé")
	// ErrRefreshInvalid indique un refresh token invalide ou expiré.
	ErrRefreshInvalid = errors.New("refresh token invalide")
)

type authRepository interface {
	GetUserByEmail(ctx context.Context, email string) (repo.User, error)
	GetUserByID(ctx context.Context, id string) (repo.User, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	InsertRefreshToken(ctx context.Context, arg repo.InsertRefreshTokenParams) (repo.RefreshToken, error)
	GetRefreshTokenByHash(ctx context.Context, hash string) (repo.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, hash string) error
	InvalidateOtherRefreshTokens(ctx context.Context, userID, keepHash string) error
}

type redisCommander interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// AuthService concentre les règles d'authentification et de session.
type AuthService struct {
	repo       authRepository
	redis      redisCommander
	jwt        *auth.JWTManager
	refreshTTL time.Duration
	now        func() time.Time
}

// NewAuthService crée le service.
func NewAuthService(r *repo.Queries, redisClient *redis.Client, jwtMgr *auth.JWTManager, refreshTTL time.Duration) *AuthService {
	return &AuthService{repo: r, redis: redisClient, jwt: jwtMgr, refreshTTL: refreshTTL, now: util.Now}
}

// JWT expose le gestionnaire de jetons (utilisé par le middleware).
func (s *AuthService) JWT() *auth.JWTManager {
	return s.jwt
}

// Profile décrit l'utilisateur connecté.
type Profile struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Roles     []string `json:"roles"`
}

// LoginResult représente le retour d'une authentification.
type LoginResult struct {
	AccessToken   string
	RefreshToken  string
	Profile       Profile
	RefreshExpiry time.Time
}

// Login authentifie un utilisateur par e-mail et mot de passe.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.repo.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			log.Warn().Msg("login: utilisateur introuvable")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := auth.Verify(password, user.PasswordHash)
	if err != nil {
		log.Warn().Err(err).Msg("login: vérification du mot de passe impossible")
		return nil, ErrInvalidCredentials
	}
	if !ok {
		log.Warn().Str("user_id", user.ID).Msg("login: mot de passe invalide")
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	if auth.NeedsRehash(user.PasswordHash) {
		if hash, err := auth.Hash(password); err == nil {
			if err := s.repo.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
				log.Warn().Err(err).Str("user_id", user.ID).Msg("login: migration du hash impossible")
			}
		}
	}

	return s.issue(ctx, user)
}

// Refresh échange un refresh token contre une nouvelle paire de jetons.
func (s *AuthService) Refresh(ctx context.Context, rawToken string) (*LoginResult, error) {
	if rawToken == "" {
		return nil, ErrRefreshInvalid
	}

	hash := auth.HashRefreshToken(rawToken)
	record, err := s.repo.GetRefreshTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRefreshInvalid
		}
		return nil, err
	}
	if record.Revoked || s.now().After(record.ExpiresAt) {
		return nil, ErrRefreshInvalid
	}

	redisKey := auth.RefreshRedisKey(hash)
	status, err := s.redis.Get(ctx, redisKey).Result()
	if err == redis.Nil {
		return nil, ErrRefreshInvalid
	}
	if err != nil {
		return nil, err
	}
	if status != "active" {
		return nil, ErrRefreshInvalid
	}

	user, err := s.repo.GetUserByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRefreshInvalid
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	result, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}

	if err := s.repo.RevokeRefreshToken(ctx, hash); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	if err := s.redis.Del(ctx, redisKey).Err(); err != nil && err != redis.Nil {
		return nil, err
	}
	return result, nil
}

// Logout révoque le refresh token courant.
func (s *AuthService) Logout(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}
	hash := auth.HashRefreshToken(rawToken)
	if err := s.repo.RevokeRefreshToken(ctx, hash); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return err
	}
	if err := s.redis.Del(ctx, auth.RefreshRedisKey(hash)).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

// GetMe renvoie le profil de l'utilisateur authentifié.
func (s *AuthService) GetMe(ctx context.Context, subject string) (*Profile, error) {
	user, err := s.repo.GetUserByID(ctx, subject)
	if err != nil {
		return nil, err
	}
	profile := buildProfile(user)
	return &profile, nil
}

func (s *AuthService) issue(ctx context.Context, user repo.User) (*LoginResult, error) {
	profile := buildProfile(user)

	token, _, err := s.jwt.GenerateAccessToken(user.ID, profile.Roles)
	if err != nil {
		return nil, err
	}

	rawRefresh, refreshHash, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	expires := s.now().Add(s.refreshTTL)
	if err := s.persistRefresh(ctx, user.ID, refreshHash, expires); err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken:   token,
		RefreshToken:  rawRefresh,
		Profile:       profile,
		RefreshExpiry: expires,
	}, nil
}

func (s *AuthService) persistRefresh(ctx context.Context, userID, hash string, expires time.Time) error {
	_, err := s.repo.InsertRefreshToken(ctx, repo.InsertRefreshTokenParams{
		ID:        util.NewID(),
		UserID:    userID,
		TokenHash: hash,
		ExpiresAt: expires,
		CreatedAt: s.now(),
	})
	if err != nil {
		return err
	}

	if err := s.repo.InvalidateOtherRefreshTokens(ctx, userID, hash); err != nil {
		return err
	}

	return s.redis.Set(ctx, auth.RefreshRedisKey(hash), "active", expires.Sub(s.now())).Err()
}

func buildProfile(user repo.User) Profile {
	return Profile{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Roles:     normalizeRoles([]string{user.Role}),
	}
}

func normalizeRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		role = strings.ToUpper(strings.TrimSpace(role))
		if role == "" || hasRole(out, role) {
			continue
		}
		out = append(out, role)
	}
	return out
}

func hasRole(roles []string, role string) bool {
	for _, r := range roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}
