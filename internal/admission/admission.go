// Package admission turns a {post, template} request into a persisted batch
// of render jobs, one per eligible dealer.
package admission

import (
	"context"

	"github.com/go-playground/validator/v10"

	"dealercast/internal/models"
	"dealercast/internal/pkg/errors"
	"dealercast/internal/pkg/ids"
	"dealercast/internal/pkg/logger"
)

// Store persists batches.
type Store interface {
	CreateBatch(ctx context.Context, batch *models.RenderBatch, jobs []models.RenderJob) error
}

// DealerSource lists the dealers eligible for rendering.
type DealerSource interface {
	ListFullDealers(ctx context.Context, dealerNos, skip []string) ([]models.Dealer, error)
}

// Nudger wakes the dispatcher after admission. Optional; admission succeeds
// even when the nudge fails.
type Nudger interface {
	Nudge(ctx context.Context, batchID string) error
}

// Request is one admission call. DealerNos narrows the run to specific
// dealers; Skip excludes dealers from a full run.
type Request struct {
	PostNumber int      `json:"post_number" validate:"required,gt=0"`
	TemplateID string   `json:"template_id" validate:"required"`
	DealerNos  []string `json:"dealer_nos,omitempty"`
	Skip       []string `json:"skip,omitempty" validate:"dive,required"`
}

// SkippedDealer records a dealer excluded from the batch and why.
type SkippedDealer struct {
	DealerNo string `json:"dealer_no"`
	Reason   string `json:"reason"`
}

// Result is the admitted batch plus the dealers that were filtered out.
type Result struct {
	Batch   *models.RenderBatch `json:"batch"`
	Jobs    []models.RenderJob  `json:"jobs"`
	Skipped []SkippedDealer     `json:"skipped,omitempty"`
}

type Service struct {
	store    Store
	dealers  DealerSource
	nudger   Nudger
	validate *validator.Validate
	log      *logger.Logger
}

func NewService(store Store, dealers DealerSource, nudger Nudger, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		dealers:  dealers,
		nudger:   nudger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log.WithComponent("admission"),
	}
}

// Admit creates a batch with one pending job per eligible dealer. Dealers
// missing a display name or logo are skipped and reported, never failed. An
// admission that would produce zero jobs is rejected.
func (s *Service) Admit(ctx context.Context, req Request) (*Result, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.Validation("invalid admission request").
			WithField("detail", err.Error())
	}

	dealers, err := s.dealers.ListFullDealers(ctx, req.DealerNos, req.Skip)
	if err != nil {
		return nil, errors.Wrap(err, "admission.Admit", "list dealers")
	}
	if len(dealers) == 0 {
		return nil, errors.Validation("no dealers matched the request")
	}

	eligible := make([]models.Dealer, 0, len(dealers))
	var skipped []SkippedDealer
	for _, d := range dealers {
		if reason := d.IneligibleReason(); reason != "" {
			skipped = append(skipped, SkippedDealer{DealerNo: d.DealerNo, Reason: reason})
			continue
		}
		eligible = append(eligible, d)
	}
	if len(eligible) == 0 {
		return nil, errors.Validationf("no eligible dealers: all %d matches were missing required fields", len(dealers))
	}

	batch := &models.RenderBatch{
		ID:          ids.New("batch"),
		PostNumber:  req.PostNumber,
		TemplateID:  req.TemplateID,
		TotalJobs:   len(eligible),
		PendingJobs: len(eligible),
		Status:      models.BatchQueued,
	}

	jobs := make([]models.RenderJob, 0, len(eligible))
	for _, d := range eligible {
		jobs = append(jobs, models.RenderJob{
			ID:           ids.New("job"),
			BatchID:      batch.ID,
			BusinessID:   d.DealerNo,
			BusinessName: d.DisplayName,
			PostNumber:   req.PostNumber,
			TemplateID:   req.TemplateID,
			Status:       models.JobPending,
		})
	}

	if err := s.store.CreateBatch(ctx, batch, jobs); err != nil {
		return nil, errors.Wrap(err, "admission.Admit", "create batch")
	}

	log := s.log.FromContext(ctx).WithBatchID(batch.ID)
	log.Info("batch admitted",
		"post_number", req.PostNumber,
		"template_id", req.TemplateID,
		"jobs", len(jobs),
		"skipped", len(skipped),
	)

	if s.nudger != nil {
		if err := s.nudger.Nudge(ctx, batch.ID); err != nil {
			log.Warn("dispatch nudge failed, cron will pick the batch up", "error", err.Error())
		}
	}

	return &Result{Batch: batch, Jobs: jobs, Skipped: skipped}, nil
}
