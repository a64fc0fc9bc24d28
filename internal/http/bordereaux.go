package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sante-travail/convocations/internal/bordereau"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type convocationIDsPayload struct {
	ConvocationIDs []string `json:"convocationIds"`
}

// ListBordereaux renvoie une page filtrée de bordereaux.
func (h *Handler) ListBordereaux(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, size := pagination(r)
	items, total, err := h.Bordereaux.List(r.Context(), bordereau.ListQuery{
		ServiceID: q.Get("serviceId"),
		Statut:    q.Get("statut"),
		Q:         q.Get("q"),
		DateFrom:  q.Get("dateFrom"),
		DateTo:    q.Get("dateTo"),
	}, page, size)
	if err != nil {
		writeServiceError(w, r, "bordereaux.list", err)
		return
	}
	WriteJSON(w, http.StatusOK, ListEnvelope{Items: items, Total: total, Page: page, PageSize: size})
}

// CreateBordereau crée un bordereau et rattache les convocations éligibles.
func (h *Handler) CreateBordereau(w http.ResponseWriter, r *http.Request) {
	var in bordereau.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, "bordereaux.create", err)
		return
	}
	b, err := h.Bordereaux.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, "bordereaux.create", err)
		return
	}
	WriteJSON(w, http.StatusCreated, b)
}

// GetBordereau renvoie le détail d'un bordereau.
func (h *Handler) GetBordereau(w http.ResponseWriter, r *http.Request) {
	b, err := h.Bordereaux.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, "bordereaux.get", err)
		return
	}
	WriteJSON(w, http.StatusOK, b)
}

// UpdateBordereau modifie la date d'édition.
func (h *Handler) UpdateBordereau(w http.ResponseWriter, r *http.Request) {
	var in bordereau.UpdateInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, "bordereaux.update", err)
		return
	}
	b, err := h.Bordereaux.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeServiceError(w, r, "bordereaux.update", err)
		return
	}
	WriteJSON(w, http.StatusOK, b)
}

// DeleteBordereau supprime un bordereau NOUVEAU.
func (h *Handler) DeleteBordereau(w http.ResponseWriter, r *http.Request) {
	if err := h.Bordereaux.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, "bordereaux.delete", err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// AttachConvocations rattache des convocations.
func (h *Handler) AttachConvocations(w http.ResponseWriter, r *http.Request) {
	var in convocationIDsPayload
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, "bordereaux.attach", err)
		return
	}
	res, err := h.Bordereaux.Attach(r.Context(), chi.URLParam(r, "id"), in.ConvocationIDs)
	if err != nil {
		writeServiceError(w, r, "bordereaux.attach", err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

// DetachConvocations détache des convocations.
func (h *Handler) DetachConvocations(w http.ResponseWriter, r *http.Request) {
	var in convocationIDsPayload
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, "bordereaux.detach", err)
		return
	}
	res, err := h.Bordereaux.Detach(r.Context(), chi.URLParam(r, "id"), in.ConvocationIDs)
	if err != nil {
		writeServiceError(w, r, "bordereaux.detach", err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

// GenerateBordereau fige le bordereau.
func (h *Handler) GenerateBordereau(w http.ResponseWriter, r *http.Request) {
	res, err := h.Bordereaux.Generate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, "bordereaux.generate", err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

// ExportBordereau télécharge le bordereau au format XLSX.
func (h *Handler) ExportBordereau(w http.ResponseWriter, r *http.Request) {
	data, name, err := h.Bordereaux.Export(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, "bordereaux.export", err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
