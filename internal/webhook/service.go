// Package webhook processes the render vendor's completion callbacks: verify
// the body signature, resolve the job from metadata, then either store the
// finished video and complete the job or record the vendor's failure.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"dealercast/internal/archive"
	"dealercast/internal/models"
	"dealercast/internal/pkg/errors"
	"dealercast/internal/pkg/logger"
	"dealercast/internal/ports"
	"dealercast/internal/renderer"
	"dealercast/internal/store"
)

// Store is the persistence surface for completions.
type Store interface {
	GetJob(ctx context.Context, id string) (*models.RenderJob, error)
	CompleteJob(ctx context.Context, jobID string, res store.CompletionResult) (bool, error)
	FailJob(ctx context.Context, jobID, errMsg string) (bool, error)
}

// Action says what a webhook delivery did.
type Action string

const (
	ActionCompleted Action = "completed"
	ActionFailed    Action = "failed"
	// ActionIgnored covers duplicate deliveries and progress callbacks. The
	// vendor still gets a 2xx so it stops retrying.
	ActionIgnored Action = "ignored"
)

// Outcome reports how one delivery was handled.
type Outcome struct {
	JobID  string `json:"job_id,omitempty"`
	Action Action `json:"action"`
	Reason string `json:"reason,omitempty"`
}

// Options configures the webhook service.
type Options struct {
	// Secret signs webhook bodies. Empty is only allowed with InsecureDev.
	Secret      string
	InsecureDev bool
	// DownloadTimeout bounds fetching the finished video from the vendor CDN.
	DownloadTimeout time.Duration
}

type Service struct {
	store    Store
	assets   ports.AssetStore
	archiver *archive.Archiver
	opts     Options
	download *http.Client
	log      *logger.Logger
}

// NewService wires the completion pipeline. archiver may be nil to disable
// the post-upload folder sweep.
func NewService(st Store, assets ports.AssetStore, archiver *archive.Archiver, opts Options, log *logger.Logger) *Service {
	timeout := opts.DownloadTimeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	return &Service{
		store:    st,
		assets:   assets,
		archiver: archiver,
		opts:     opts,
		download: &http.Client{Timeout: timeout},
		log:      log.WithComponent("webhook"),
	}
}

// Process handles one raw webhook delivery. It is idempotent: a delivery for
// a job that already reached a terminal state changes nothing.
func (s *Service) Process(ctx context.Context, body []byte, signature string) (*Outcome, error) {
	if err := s.verify(body, signature); err != nil {
		return nil, err
	}

	var payload renderer.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeBadRequest, "webhook.Process", "decode payload")
	}

	meta, err := renderer.ParseMetadata(payload.Metadata)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeBadRequest, "webhook.Process", "parse metadata")
	}

	ctx = logger.ContextWithJobID(ctx, meta.JobID)
	log := s.log.FromContext(ctx)

	job, err := s.store.GetJob(ctx, meta.JobID)
	if err != nil {
		// Unknown job ids surface as 404 at the handler; nothing is mutated.
		if errors.IsNotFound(err) {
			log.Warn("webhook for unknown job", "render_id", payload.ID)
		}
		return nil, err
	}

	ctx = logger.ContextWithBatchID(ctx, job.BatchID)
	log = s.log.FromContext(ctx)

	if job.Status.Terminal() {
		log.Info("duplicate webhook for terminal job", "status", string(job.Status))
		return &Outcome{JobID: job.ID, Action: ActionIgnored, Reason: "job already " + string(job.Status)}, nil
	}

	switch payload.Status {
	case renderer.StatusSucceeded:
		return s.complete(ctx, log, job, payload)
	case renderer.StatusFailed:
		return s.fail(ctx, log, job, payload)
	default:
		// Progress callbacks (planned, rendering) carry nothing to persist.
		return &Outcome{JobID: job.ID, Action: ActionIgnored, Reason: "non-terminal status " + payload.Status}, nil
	}
}

func (s *Service) verify(body []byte, signature string) error {
	if s.opts.Secret == "" {
		if s.opts.InsecureDev {
			return nil
		}
		return errors.New(errors.CodeInternal, "webhook secret not configured")
	}
	if !renderer.VerifySignature(s.opts.Secret, body, signature) {
		return errors.Unauthorized("invalid webhook signature")
	}
	return nil
}

// complete downloads the finished video, stores it in the dealer's folder and
// marks the job completed. A download or upload failure leaves the job in
// processing so a redelivery can succeed; the sweeper bounds how long that
// state can last.
func (s *Service) complete(ctx context.Context, log *logger.Logger, job *models.RenderJob, payload renderer.WebhookPayload) (*Outcome, error) {
	if payload.URL == "" {
		s.failJob(ctx, log, job.ID, "render succeeded but no output URL was provided")
		return &Outcome{JobID: job.ID, Action: ActionFailed, Reason: "missing output url"}, nil
	}

	resp, err := s.fetchVideo(ctx, payload.URL)
	if err != nil {
		log.WithError(err).Error("video download failed", "url", payload.URL)
		return nil, errors.WrapWithCode(err, errors.CodeUnavailable, "webhook.complete", "download render output")
	}
	defer resp.Body.Close()

	fileName := fmt.Sprintf("Post %d.mp4", job.PostNumber)
	out, err := s.assets.UploadVideo(ctx, ports.UploadInput{
		DealerName:  job.BusinessName,
		FileName:    fileName,
		ContentType: "video/mp4",
		Reader:      resp.Body,
		Size:        resp.ContentLength,
	})
	if err != nil {
		log.WithError(err).Error("video upload failed", "file", fileName)
		return nil, errors.WrapWithCode(err, errors.CodeUnavailable, "webhook.complete", "store render output")
	}

	applied, err := s.store.CompleteJob(ctx, job.ID, store.CompletionResult{
		RenderURL:   payload.URL,
		DriveFileID: out.FileID,
		DriveURL:    out.WebURL,
		DrivePath:   out.Path,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		// Lost the race against a sweep or duplicate delivery. The uploaded
		// file stays; the next archive sweep will pick it up if stale.
		log.Warn("completion raced a terminal transition, job unchanged")
		return &Outcome{JobID: job.ID, Action: ActionIgnored, Reason: "job no longer processing"}, nil
	}

	log.Info("job completed", "file", out.Path, "render_id", payload.ID)

	if s.archiver != nil {
		if _, err := s.archiver.SweepDealer(ctx, job.BusinessName, job.PostNumber); err != nil {
			log.Warn("post-upload archive sweep failed", "dealer", job.BusinessName, "error", err.Error())
		}
	}

	return &Outcome{JobID: job.ID, Action: ActionCompleted}, nil
}

func (s *Service) fail(ctx context.Context, log *logger.Logger, job *models.RenderJob, payload renderer.WebhookPayload) (*Outcome, error) {
	msg := payload.ErrorMessage
	if msg == "" {
		msg = "render failed without an error message"
	}

	applied, err := s.store.FailJob(ctx, job.ID, msg)
	if err != nil {
		return nil, err
	}
	if !applied {
		return &Outcome{JobID: job.ID, Action: ActionIgnored, Reason: "job no longer processing"}, nil
	}

	log.Warn("job failed by vendor", "render_id", payload.ID, "reason", msg)
	return &Outcome{JobID: job.ID, Action: ActionFailed}, nil
}

func (s *Service) failJob(ctx context.Context, log *logger.Logger, jobID, msg string) {
	if _, err := s.store.FailJob(ctx, jobID, msg); err != nil {
		log.WithError(err).Error("mark job failed errored")
	}
}

func (s *Service) fetchVideo(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.download.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("download status %d", resp.StatusCode)
	}
	return resp, nil
}
