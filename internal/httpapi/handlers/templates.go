package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"dealercast/internal/httpkit"
	"dealercast/internal/models"
)

// CreateTemplateRequest registers a vendor template. ID is the vendor's
// template id; FieldMap overrides the default dealer-field mapping.
type CreateTemplateRequest struct {
	ID       string                `json:"id"`
	Name     string                `json:"name"`
	FieldMap []models.FieldMapping `json:"field_map,omitempty"`
}

func (h *Handler) PostTemplate(w http.ResponseWriter, r *http.Request) {
	var req CreateTemplateRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		httpkit.WriteCodedErr(w, 400, "VALIDATION_ERROR", "invalid json body")
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	req.Name = strings.TrimSpace(req.Name)
	if req.ID == "" {
		httpkit.WriteErr(w, 400, "VALIDATION_ERROR", "id is required", map[string]any{"field": "id"})
		return
	}
	if req.Name == "" {
		httpkit.WriteErr(w, 400, "VALIDATION_ERROR", "name is required", map[string]any{"field": "name"})
		return
	}
	for _, fm := range req.FieldMap {
		if fm.Field == "" || fm.Variable == "" {
			httpkit.WriteCodedErr(w, 400, "VALIDATION_ERROR", "field_map entries need field and variable")
			return
		}
	}

	t := &models.Template{ID: req.ID, Name: req.Name, FieldMap: req.FieldMap}
	if err := h.deps.Templates.CreateTemplate(r.Context(), t); err != nil {
		h.writeError(w, r, err)
		return
	}
	httpkit.WriteJSON(w, 201, map[string]any{"template": t})
}

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.deps.Templates.ListTemplates(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpkit.WriteJSON(w, 200, map[string]any{"templates": templates})
}

func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := h.deps.Templates.GetTemplate(r.Context(), chi.URLParam(r, "templateId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpkit.WriteJSON(w, 200, map[string]any{"template": t})
}

func (h *Handler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Templates.DeleteTemplate(r.Context(), chi.URLParam(r, "templateId")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
