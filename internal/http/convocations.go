package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sante-travail/convocations/internal/convocation"
	"github.com/sante-travail/convocations/internal/personnel"
)

// ListConvocations renvoie une page filtrée de convocations.
func (h *Handler) ListConvocations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, size := pagination(r)

	statut := strings.TrimSpace(q.Get("statut"))
	if statut != "" && !convocation.ValidStatut(statut) {
		WriteError(w, http.StatusBadRequest, "Statut invalide")
		return
	}
	convType := strings.TrimSpace(q.Get("convocationType"))
	if convType != "" && !convocation.ValidType(convType) {
		WriteError(w, http.StatusBadRequest, "Type convocation invalide")
		return
	}

	query := convocation.ListQuery{
		Filter: convocation.ListFilter{
			Personnel:       personnel.FilterFromQuery(q),
			Statut:          statut,
			ConvocationType: convType,
			BordereauID:     strings.TrimSpace(q.Get("bordereauId")),
			Unattached:      strings.EqualFold(strings.TrimSpace(q.Get("unattached")), "true"),
		},
		DateConvocFrom: q.Get("dateConvocFrom"),
		DateConvocTo:   q.Get("dateConvocTo"),
		DateVisiteFrom: q.Get("dateVisiteFrom"),
		DateVisiteTo:   q.Get("dateVisiteTo"),
	}

	items, total, err := h.Convocations.List(r.Context(), query, page, size)
	if err != nil {
		writeServiceError(w, r, "convocations.list", err)
		return
	}
	WriteJSON(w, http.StatusOK, ListEnvelope{Items: items, Total: total, Page: page, PageSize: size})
}

// CreateConvocation crée une convocation.
func (h *Handler) CreateConvocation(w http.ResponseWriter, r *http.Request) {
	var in convocation.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, "convocations.create", err)
		return
	}
	c, err := h.Convocations.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, "convocations.create", err)
		return
	}
	WriteJSON(w, http.StatusCreated, c)
}

// GetConvocation renvoie une convocation.
func (h *Handler) GetConvocation(w http.ResponseWriter, r *http.Request) {
	c, err := h.Convocations.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, "convocations.get", err)
		return
	}
	WriteJSON(w, http.StatusOK, c)
}

// UpdateConvocation modifie une convocation; l'agent ne peut pas changer.
func (h *Handler) UpdateConvocation(w http.ResponseWriter, r *http.Request) {
	var in convocation.UpdateInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, "convocations.update", err)
		return
	}
	c, err := h.Convocations.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeServiceError(w, r, "convocations.update", err)
		return
	}
	WriteJSON(w, http.StatusOK, c)
}

// CancelConvocation annule une convocation; le corps {motif} est facultatif.
func (h *Handler) CancelConvocation(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Motif *string `json:"motif"`
	}
	if err := decodeOptionalJSON(w, r, &in); err != nil {
		writeServiceError(w, r, "convocations.cancel", err)
		return
	}
	c, err := h.Convocations.Cancel(r.Context(), chi.URLParam(r, "id"), in.Motif)
	if err != nil {
		writeServiceError(w, r, "convocations.cancel", err)
		return
	}
	WriteJSON(w, http.StatusOK, c)
}

// BulkCreateConvocations crée un lot de convocations.
func (h *Handler) BulkCreateConvocations(w http.ResponseWriter, r *http.Request) {
	var in convocation.BulkInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, "convocations.bulk", err)
		return
	}
	n, err := h.Convocations.BulkCreate(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, "convocations.bulk", err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]any{"ok": true, "count": n})
}

// CountConvocations compte les convocations non annulées d'un jour.
func (h *Handler) CountConvocations(w http.ResponseWriter, r *http.Request) {
	day := strings.TrimSpace(r.URL.Query().Get("day"))
	n, err := h.Convocations.CountOnDay(r.Context(), day)
	if err != nil {
		writeServiceError(w, r, "convocations.count", err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"day": day, "totalNonAnnule": n})
}
