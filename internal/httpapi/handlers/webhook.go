package handlers

import (
	"io"
	"net/http"

	"dealercast/internal/httpkit"
	"dealercast/internal/renderer"
)

// maxWebhookBody bounds the completion payload; render metadata is small.
const maxWebhookBody = 1 << 20

// PostRenderWebhook receives the vendor's completion callback. The raw body
// is read before decoding because the signature covers the exact bytes.
func (h *Handler) PostRenderWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		httpkit.WriteCodedErr(w, 400, "BAD_REQUEST", "read body failed")
		return
	}
	defer r.Body.Close()

	outcome, err := h.deps.Webhook.Process(r.Context(), body, r.Header.Get(renderer.SignatureHeader))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpkit.WriteJSON(w, 200, outcome)
}
