// Package dispatch claims pending render jobs and submits them to the render
// vendor. One run claims at most the configured batch size, oldest jobs first,
// under a redis run lock so overlapping cron ticks never double-submit.
package dispatch

import (
	"context"
	"time"

	"dealercast/internal/models"
	"dealercast/internal/pkg/ids"
	"dealercast/internal/pkg/logger"
	"dealercast/internal/renderer"
)

// Store is the persistence surface the dispatcher needs.
type Store interface {
	ClaimPendingJobs(ctx context.Context, limit int) ([]models.RenderJob, error)
	SetJobDispatched(ctx context.Context, jobID, renderID string) error
	FailJob(ctx context.Context, jobID, errMsg string) (bool, error)
	GetFieldMap(ctx context.Context, templateID string) ([]models.FieldMapping, error)
}

// DealerSource resolves dealer profile fields at dispatch time, so edits to
// the roster between admission and dispatch are picked up.
type DealerSource interface {
	GetDealer(ctx context.Context, dealerNo string) (*models.Dealer, error)
}

// Locker serializes dispatcher runs across processes.
type Locker interface {
	AcquireRunLock(ctx context.Context, owner string, ttl time.Duration) (bool, error)
	ReleaseRunLock(ctx context.Context, owner string) error
}

// Options tunes one dispatcher.
type Options struct {
	// BatchSize caps the jobs claimed per run.
	BatchSize int
	// WebhookURL is the absolute URL the vendor calls on completion.
	WebhookURL string
	// LockTTL bounds how long a crashed run can hold the lock.
	LockTTL time.Duration
}

// Stats summarizes one dispatcher run.
type Stats struct {
	Claimed    int
	Dispatched int
	Failed     int
}

type Dispatcher struct {
	store    Store
	dealers  DealerSource
	renderer renderer.Client
	locker   Locker
	opts     Options
	log      *logger.Logger
}

func New(store Store, dealers DealerSource, rc renderer.Client, locker Locker, opts Options, log *logger.Logger) *Dispatcher {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 25
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 55 * time.Second
	}
	return &Dispatcher{
		store:    store,
		dealers:  dealers,
		renderer: rc,
		locker:   locker,
		opts:     opts,
		log:      log.WithComponent("dispatch"),
	}
}

// Run executes one dispatch pass. When another run holds the lock it returns
// empty stats without claiming anything.
func (d *Dispatcher) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	owner := ids.New("run")
	if d.locker != nil {
		ok, err := d.locker.AcquireRunLock(ctx, owner, d.opts.LockTTL)
		if err != nil {
			return stats, err
		}
		if !ok {
			d.log.Debug("dispatch skipped, another run holds the lock")
			return stats, nil
		}
		defer func() {
			if err := d.locker.ReleaseRunLock(context.WithoutCancel(ctx), owner); err != nil {
				d.log.Warn("release run lock failed", "error", err.Error())
			}
		}()
	}

	jobs, err := d.store.ClaimPendingJobs(ctx, d.opts.BatchSize)
	if err != nil {
		return stats, err
	}
	stats.Claimed = len(jobs)
	if len(jobs) == 0 {
		return stats, nil
	}

	d.log.Info("dispatching claimed jobs", "count", len(jobs))
	for i := range jobs {
		if err := d.dispatchJob(ctx, &jobs[i]); err != nil {
			stats.Failed++
			continue
		}
		stats.Dispatched++
	}
	return stats, nil
}

// dispatchJob submits one claimed job to the vendor. Any failure along the way
// moves the job to failed; the claim is never rolled back to pending.
func (d *Dispatcher) dispatchJob(ctx context.Context, job *models.RenderJob) error {
	log := d.log.WithBatchID(job.BatchID).WithJobID(job.ID)

	dealer, err := d.dealers.GetDealer(ctx, job.BusinessID)
	if err != nil {
		d.failJob(ctx, log, job.ID, "load dealer: "+err.Error())
		return err
	}

	fieldMap, err := d.store.GetFieldMap(ctx, job.TemplateID)
	if err != nil {
		d.failJob(ctx, log, job.ID, "load field map: "+err.Error())
		return err
	}

	metadata, err := renderer.EncodeMetadata(renderer.JobMetadata{
		JobID:      job.ID,
		BusinessID: job.BusinessID,
		PostNumber: job.PostNumber,
	})
	if err != nil {
		d.failJob(ctx, log, job.ID, "encode metadata: "+err.Error())
		return err
	}

	render, err := d.renderer.CreateRender(ctx, renderer.CreateRenderRequest{
		TemplateID:    job.TemplateID,
		Modifications: buildModifications(dealer, fieldMap),
		Metadata:      metadata,
		WebhookURL:    d.opts.WebhookURL,
	})
	if err != nil {
		d.failJob(ctx, log, job.ID, err.Error())
		return err
	}

	if err := d.store.SetJobDispatched(ctx, job.ID, render.ID); err != nil {
		// The vendor accepted the render but we lost the claim (swept or
		// store error). The webhook will still find the job via metadata.
		log.Warn("record render id failed", "render_id", render.ID, "error", err.Error())
		return err
	}

	log.Info("render submitted", "render_id", render.ID, "dealer", dealer.DealerNo)
	return nil
}

func (d *Dispatcher) failJob(ctx context.Context, log *logger.Logger, jobID, msg string) {
	applied, err := d.store.FailJob(ctx, jobID, msg)
	if err != nil {
		log.WithError(err).Error("mark job failed errored")
		return
	}
	if applied {
		log.Warn("job failed at dispatch", "reason", msg)
	}
}

// buildModifications resolves the template's field map against the dealer
// profile. Empty dealer fields are omitted rather than sent as blanks.
func buildModifications(dealer *models.Dealer, fieldMap []models.FieldMapping) map[string]string {
	mods := make(map[string]string, len(fieldMap))
	for _, fm := range fieldMap {
		var val string
		switch fm.Field {
		case "logo":
			val = dealer.LogoURL
		case "name":
			val = dealer.DisplayName
		case "phone":
			val = dealer.Phone
		case "website":
			val = dealer.Website
		}
		if val != "" {
			mods[fm.Variable] = val
		}
	}
	return mods
}
