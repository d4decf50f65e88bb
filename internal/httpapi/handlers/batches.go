package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"dealercast/internal/admission"
	"dealercast/internal/httpkit"
)

// PostBatch admits a new render batch.
func (h *Handler) PostBatch(w http.ResponseWriter, r *http.Request) {
	var req admission.Request
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		httpkit.WriteErr(w, 400, "VALIDATION_ERROR", "invalid json body", nil)
		return
	}

	res, err := h.deps.Admission.Admit(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httpkit.WriteJSON(w, 201, map[string]any{
		"batch":   res.Batch,
		"skipped": res.Skipped,
	})
}

// ListBatches returns recent batches, newest first.
func (h *Handler) ListBatches(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}

	batches, err := h.deps.Batches.ListBatches(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpkit.WriteJSON(w, 200, map[string]any{"batches": batches})
}

// GetBatch returns one batch with its counters and derived status.
func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := h.deps.Batches.GetBatch(r.Context(), chi.URLParam(r, "batchId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpkit.WriteJSON(w, 200, map[string]any{"batch": batch})
}

// ListBatchJobs returns the jobs of one batch, oldest first.
func (h *Handler) ListBatchJobs(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchId")

	// 404 for an unknown batch rather than an empty list.
	if _, err := h.deps.Batches.GetBatch(r.Context(), batchID); err != nil {
		h.writeError(w, r, err)
		return
	}

	jobs, err := h.deps.Batches.ListBatchJobs(r.Context(), batchID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpkit.WriteJSON(w, 200, map[string]any{"jobs": jobs})
}
