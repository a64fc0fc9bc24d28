package middleware

import (
	"net/http"
	"strings"
)

// RequireRoles n'accepte que les utilisateurs portant au moins un des rôles donnés.
func RequireRoles(required ...string) func(http.Handler) http.Handler {
	normalized := make(map[string]struct{}, len(required))
	for _, role := range required {
		role = strings.ToUpper(strings.TrimSpace(role))
		if role != "" {
			normalized[role] = struct{}{}
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, role := range GetRoles(r.Context()) {
				if _, ok := normalized[strings.ToUpper(strings.TrimSpace(role))]; ok {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "Accès refusé")
		})
	}
}
