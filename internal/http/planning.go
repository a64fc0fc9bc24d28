package http

import (
	"net/http"

	"github.com/sante-travail/convocations/internal/planning"
)

// ScheduleConvocations exécute un plan de convocations en masse.
func (h *Handler) ScheduleConvocations(w http.ResponseWriter, r *http.Request) {
	var in planning.Input
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, "planning.schedule", err)
		return
	}
	res, err := h.Planning.Schedule(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, "planning.schedule", err)
		return
	}
	WriteJSON(w, http.StatusCreated, res)
}

// Capacity renvoie la charge indicative des jours ?day=YYYY-MM-DD (répétable).
func (h *Handler) Capacity(w http.ResponseWriter, r *http.Request) {
	items, err := h.Planning.Capacity(r.Context(), r.URL.Query()["day"])
	if err != nil {
		writeServiceError(w, r, "planning.capacity", err)
		return
	}
	WriteJSON(w, http.StatusOK, items)
}
