package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"dealercast/internal/httpkit"
)

// GetJob returns one render job.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.deps.Batches.GetJob(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpkit.WriteJSON(w, 200, map[string]any{"job": job})
}
