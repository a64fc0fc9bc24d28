package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sante-travail/convocations/internal/personnel"
)

// SearchPersonnel renvoie une page du personnel filtré.
func (h *Handler) SearchPersonnel(w http.ResponseWriter, r *http.Request) {
	page, size := pagination(r)
	items, total, err := h.Personnel.Search(r.Context(), personnel.FilterFromQuery(r.URL.Query()), page, size)
	if err != nil {
		writeServiceError(w, r, "personnel.search", err)
		return
	}
	WriteJSON(w, http.StatusOK, ListEnvelope{Items: items, Total: total, Page: page, PageSize: size})
}

// GetPersonnel renvoie un agent.
func (h *Handler) GetPersonnel(w http.ResponseWriter, r *http.Request) {
	p, err := h.Personnel.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, "personnel.get", err)
		return
	}
	WriteJSON(w, http.StatusOK, p)
}

// UpdatePersonnel modifie un agent (administrateurs).
func (h *Handler) UpdatePersonnel(w http.ResponseWriter, r *http.Request) {
	var in personnel.UpdateInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, "personnel.update", err)
		return
	}
	p, err := h.Personnel.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeServiceError(w, r, "personnel.update", err)
		return
	}
	WriteJSON(w, http.StatusOK, p)
}

// FormationServices liste les services d'une formation.
func (h *Handler) FormationServices(w http.ResponseWriter, r *http.Request) {
	items, err := h.Personnel.ServicesOfFormation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, "formations.services", err)
		return
	}
	WriteJSON(w, http.StatusOK, items)
}

// ListJoursFeries liste les jours fériés, éventuellement bornés par from et to.
func (h *Handler) ListJoursFeries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.Holidays.List(r.Context(), strings.TrimSpace(q.Get("from")), strings.TrimSpace(q.Get("to")))
	if err != nil {
		writeServiceError(w, r, "jours-feries.list", err)
		return
	}
	WriteJSON(w, http.StatusOK, items)
}
