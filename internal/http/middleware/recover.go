package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog/log"
)

// Recover convertit un panic en réponse 500 générique.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Interface("panic", rec).Str("path", r.URL.Path).Bytes("stack", debug.Stack()).Msg("panic récupéré")
				writeError(w, http.StatusInternalServerError, "Erreur serveur")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
