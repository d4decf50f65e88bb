package handlers

import (
	"context"
	"net/http"
	"time"

	"dealercast/internal/httpkit"
)

// Health reports the service plus each upstream dependency. Any failing
// probe turns the overall status degraded with a 503.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	probe := func(name string, p Pinger) {
		if p == nil {
			checks[name] = "skipped"
			return
		}
		if err := p.Ping(ctx); err != nil {
			checks[name] = "down: " + err.Error()
			healthy = false
			return
		}
		checks[name] = "ok"
	}
	probe("postgres", h.deps.DB)
	probe("redis", h.deps.Redis)

	if h.deps.StorageProvider != "" {
		checks["storage"] = h.deps.StorageProvider
	}

	status := "ok"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	httpkit.WriteJSON(w, code, map[string]any{
		"status": status,
		"checks": checks,
	})
}
