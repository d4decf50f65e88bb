package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"dealercast/internal/httpkit"
)

// ListDealers returns the roster with per-dealer eligibility.
func (h *Handler) ListDealers(w http.ResponseWriter, r *http.Request) {
	dealers, err := h.deps.Dealers.ListDealers(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	type item struct {
		DealerNo         string `json:"dealer_no"`
		DisplayName      string `json:"display_name"`
		ProgramStatus    string `json:"program_status"`
		Eligible         bool   `json:"eligible"`
		IneligibleReason string `json:"ineligible_reason,omitempty"`
	}

	out := make([]item, 0, len(dealers))
	for i := range dealers {
		d := &dealers[i]
		reason := d.IneligibleReason()
		out = append(out, item{
			DealerNo:         d.DealerNo,
			DisplayName:      d.DisplayName,
			ProgramStatus:    d.ProgramStatus,
			Eligible:         reason == "",
			IneligibleReason: reason,
		})
	}
	httpkit.WriteJSON(w, 200, map[string]any{"dealers": out})
}

// GetDealer returns one dealer's full profile.
func (h *Handler) GetDealer(w http.ResponseWriter, r *http.Request) {
	dealer, err := h.deps.Dealers.GetDealer(r.Context(), chi.URLParam(r, "dealerNo"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpkit.WriteJSON(w, 200, map[string]any{"dealer": dealer})
}
