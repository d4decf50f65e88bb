// Package httpapi assembles the chi router for the dealercast API.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"dealercast/internal/httpapi/handlers"
	"dealercast/internal/httpkit"
	"dealercast/internal/pkg/logger"
	"dealercast/internal/pkg/middleware"
)

// Options tunes router-level behavior.
type Options struct {
	CORSOrigins    []string
	RequestTimeout time.Duration
}

func NewRouter(d handlers.Deps, opts Options, log *logger.Logger) http.Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 2 * time.Minute
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logging(log))
	r.Use(middleware.Timeout(opts.RequestTimeout))
	r.Use(httpkit.CORS(httpkit.CORSOptions{
		AllowedOrigins: opts.CORSOrigins,
	}))

	h := handlers.New(d)

	r.Get("/health", h.Health)

	r.Post("/batches", h.PostBatch)
	r.Get("/batches", h.ListBatches)
	r.Get("/batches/{batchId}", h.GetBatch)
	r.Get("/batches/{batchId}/jobs", h.ListBatchJobs)

	r.Get("/jobs/{jobId}", h.GetJob)

	r.Get("/dealers", h.ListDealers)
	r.Get("/dealers/{dealerNo}", h.GetDealer)

	r.Post("/templates", h.PostTemplate)
	r.Get("/templates", h.ListTemplates)
	r.Get("/templates/{templateId}", h.GetTemplate)
	r.Delete("/templates/{templateId}", h.DeleteTemplate)

	r.Post("/webhooks/render", h.PostRenderWebhook)

	return r
}
