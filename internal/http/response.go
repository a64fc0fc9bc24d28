package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/sante-travail/convocations/internal/apperr"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
	// page*maxPageSize doit rester loin du débordement de l'OFFSET.
	maxPage      = 1_000_000
	maxBodyBytes = 1 << 20
)

// ListEnvelope est la réponse des listes paginées.
type ListEnvelope struct {
	Items    any `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

// WriteJSON écrit data en JSON.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError écrit {"error": message}.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// writeServiceError traduit une erreur métier en statut HTTP; les erreurs
// inattendues sont journalisées et masquées.
func writeServiceError(w http.ResponseWriter, r *http.Request, route string, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		WriteError(w, http.StatusBadRequest, apperr.Message(err))
	case apperr.KindNotFound:
		WriteError(w, http.StatusNotFound, apperr.Message(err))
	case apperr.KindConflict:
		log.Warn().Err(err).Str("route", route).Msg("conflit")
		WriteError(w, http.StatusConflict, apperr.Message(err))
	default:
		log.Error().Err(err).Str("route", route).Str("method", r.Method).Msg("erreur inattendue")
		WriteError(w, http.StatusInternalServerError, "Erreur serveur")
	}
}

// decodeJSON lit un corps JSON strict: champs inconnus refusés, un seul document.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return bodyError(err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperr.Validation("JSON invalide")
	}
	return nil
}

// decodeOptionalJSON accepte en plus un corps vide.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return bodyError(err)
	}
	return nil
}

func bodyError(err error) error {
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		return apperr.Validation("Corps de requête vide")
	case errors.As(err, &typeErr) && typeErr.Field != "":
		return apperr.Validationf("Champ %s invalide", typeErr.Field)
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		return apperr.Validationf("Champ inconnu : %s", strings.TrimPrefix(err.Error(), "json: unknown field "))
	default:
		return apperr.Validation("JSON invalide")
	}
}

// pagination lit page (0-based, bornée à maxPage) et pageSize (1..100, 10 par défaut).
func pagination(r *http.Request) (int, int) {
	q := r.URL.Query()
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 0 {
		page = 0
	}
	page = min(page, maxPage)
	size, err := strconv.Atoi(q.Get("pageSize"))
	if err != nil {
		size = defaultPageSize
	}
	size = min(maxPageSize, max(1, size))
	return page, size
}
