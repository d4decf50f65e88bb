// Package handlers implements the HTTP endpoints of the dealercast API.
package handlers

import (
	"context"
	"net/http"

	"dealercast/internal/admission"
	"dealercast/internal/httpkit"
	"dealercast/internal/models"
	"dealercast/internal/pkg/errors"
	"dealercast/internal/pkg/logger"
	"dealercast/internal/webhook"
)

// BatchStore is the read surface for batches and jobs.
type BatchStore interface {
	GetBatch(ctx context.Context, id string) (*models.RenderBatch, error)
	ListBatches(ctx context.Context, limit int) ([]models.RenderBatch, error)
	ListBatchJobs(ctx context.Context, batchID string) ([]models.RenderJob, error)
	GetJob(ctx context.Context, id string) (*models.RenderJob, error)
}

// DealerStore is the read surface for the dealer roster.
type DealerStore interface {
	ListDealers(ctx context.Context) ([]models.Dealer, error)
	GetDealer(ctx context.Context, dealerNo string) (*models.Dealer, error)
}

// TemplateStore manages vendor template registrations.
type TemplateStore interface {
	CreateTemplate(ctx context.Context, t *models.Template) error
	ListTemplates(ctx context.Context) ([]models.Template, error)
	GetTemplate(ctx context.Context, id string) (*models.Template, error)
	DeleteTemplate(ctx context.Context, id string) error
}

// AdmissionService admits new batches.
type AdmissionService interface {
	Admit(ctx context.Context, req admission.Request) (*admission.Result, error)
}

// WebhookService processes vendor completion callbacks.
type WebhookService interface {
	Process(ctx context.Context, body []byte, signature string) (*webhook.Outcome, error)
}

// Pinger is a liveness probe for an upstream dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Batches   BatchStore
	Dealers   DealerStore
	Templates TemplateStore
	Admission AdmissionService
	Webhook   WebhookService

	// Health probes. Nil probes are reported as skipped.
	DB    Pinger
	Redis Pinger
	// StorageProvider is the configured asset store name, for health output.
	StorageProvider string

	Log *logger.Logger
}

type Handler struct {
	deps Deps
	log  *logger.Logger
}

func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	return &Handler{deps: d, log: log.WithComponent("httpapi")}
}

// writeError maps a coded error onto the envelope; unknown errors become 500s
// without leaking internals.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.GetHTTPStatus(err)
	code := string(errors.GetCode(err))

	msg := "internal server error"
	if status < 500 {
		var coded *errors.Error
		if errors.As(err, &coded) {
			msg = coded.Message
		}
	} else {
		h.log.FromContext(r.Context()).Error("request failed",
			"method", r.Method, "path", r.URL.Path, "error", err.Error())
	}

	httpkit.WriteErr(w, status, code, msg, errors.GetFields(err))
}
