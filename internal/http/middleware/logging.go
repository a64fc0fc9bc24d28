package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// requestLog reçoit l'utilisateur authentifié en aval de Logging.
type requestLog struct {
	subject string
}

const contextKeyRequestLog contextKey = "request_log"

// noteSubject rattache l'utilisateur à la ligne http_request en cours.
func noteSubject(ctx context.Context, subject string) {
	if rl, ok := ctx.Value(contextKeyRequestLog).(*requestLog); ok {
		rl.subject = subject
	}
}

// Logging écrit un événement http_request par requête, avec le motif de route
// chi plutôt que le chemin brut pour les ressources identifiées.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		rl := &requestLog{}
		r = r.WithContext(context.WithValue(r.Context(), contextKeyRequestLog, rl))
		start := time.Now()

		next.ServeHTTP(ww, r)

		var event *zerolog.Event
		switch status := ww.Status(); {
		case status >= http.StatusInternalServerError:
			event = log.Error()
		case status == http.StatusTooManyRequests:
			event = log.Warn()
		default:
			event = log.Info()
		}
		event = event.Str("method", r.Method).Str("path", r.URL.Path).
			Int("status", ww.Status()).Dur("duration", time.Since(start)).
			Str("ip", realIPFromRequest(r))

		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				event = event.Str("route", pattern)
			}
		}
		if rl.subject != "" {
			event = event.Str("user_id", rl.subject)
		}
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			event = event.Str("request_id", reqID)
		}

		event.Msg("http_request")
	})
}
