package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sante-travail/convocations/internal/auth"
)

type contextKey string

const (
	ContextKeySubject contextKey = "subject"
	ContextKeyRoles   contextKey = "roles"
)

// TokenParser valide un jeton d'accès.
type TokenParser interface {
	ParseAndValidate(token string) (*auth.Claims, error)
}

// Auth valide le JWT d'accès et injecte ses claims dans le contexte.
func Auth(parser TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
				writeError(w, http.StatusUnauthorized, "Non authentifié")
				return
			}

			claims, err := parser.ParseAndValidate(strings.TrimSpace(parts[1]))
			if err != nil || claims.Subject == "" {
				writeError(w, http.StatusUnauthorized, "Session invalide ou expirée")
				return
			}

			noteSubject(r.Context(), claims.Subject)
			ctx := WithClaims(r.Context(), claims.Subject, claims.Roles)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithClaims place l'utilisateur authentifié dans ctx.
func WithClaims(ctx context.Context, subject string, roles []string) context.Context {
	ctx = context.WithValue(ctx, ContextKeySubject, subject)
	return context.WithValue(ctx, ContextKeyRoles, roles)
}

// GetSubject récupère l'identifiant de l'utilisateur.
func GetSubject(ctx context.Context) string {
	val, _ := ctx.Value(ContextKeySubject).(string)
	return val
}

// GetRoles récupère les rôles de l'utilisateur.
func GetRoles(ctx context.Context) []string {
	val, _ := ctx.Value(ContextKeyRoles).([]string)
	return val
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
