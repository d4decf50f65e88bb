// Package worker runs the dispatch schedule: a cron tick per minute, a slower
// sweep tick, and a redis nudge listener that dispatches freshly admitted
// batches without waiting for the next tick.
package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"dealercast/internal/dispatch"
	"dealercast/internal/pkg/logger"
	"dealercast/internal/worker/queue"
)

// Options carries the worker schedules.
type Options struct {
	// Schedule is the dispatch cron expression.
	Schedule string
	// SweepSchedule is the stuck-job sweep cron expression.
	SweepSchedule string
}

type Worker struct {
	dispatcher *dispatch.Dispatcher
	sweeper    *dispatch.Sweeper
	queue      *queue.Queue
	opts       Options
	log        *logger.Logger
	cron       *cron.Cron
}

func New(d *dispatch.Dispatcher, s *dispatch.Sweeper, q *queue.Queue, opts Options, log *logger.Logger) *Worker {
	if opts.Schedule == "" {
		opts.Schedule = "* * * * *"
	}
	if opts.SweepSchedule == "" {
		opts.SweepSchedule = "*/10 * * * *"
	}
	return &Worker{
		dispatcher: d,
		sweeper:    s,
		queue:      q,
		opts:       opts,
		log:        log.WithComponent("worker"),
	}
}

// Run blocks until ctx is cancelled. Errors from individual runs are logged,
// never fatal; the next tick retries.
func (w *Worker) Run(ctx context.Context) error {
	w.cron = cron.New()

	if _, err := w.cron.AddFunc(w.opts.Schedule, func() { w.dispatchOnce(ctx) }); err != nil {
		return err
	}
	if _, err := w.cron.AddFunc(w.opts.SweepSchedule, func() { w.sweepOnce(ctx) }); err != nil {
		return err
	}

	w.cron.Start()
	w.log.Info("worker started",
		"dispatch_schedule", w.opts.Schedule,
		"sweep_schedule", w.opts.SweepSchedule,
	)

	if w.queue != nil {
		go w.listenNudges(ctx)
	}

	<-ctx.Done()
	stopCtx := w.cron.Stop()
	<-stopCtx.Done()
	w.log.Info("worker stopped")
	return nil
}

func (w *Worker) dispatchOnce(ctx context.Context) {
	stats, err := w.dispatcher.Run(ctx)
	if err != nil {
		w.log.Error("dispatch run failed", "error", err.Error())
		return
	}
	if stats.Claimed > 0 {
		w.log.Info("dispatch run finished",
			"claimed", stats.Claimed,
			"dispatched", stats.Dispatched,
			"failed", stats.Failed,
		)
	}
}

func (w *Worker) sweepOnce(ctx context.Context) {
	if _, err := w.sweeper.Sweep(ctx); err != nil {
		w.log.Error("sweep run failed", "error", err.Error())
	}
}

// listenNudges blocks on the admission queue and triggers an immediate
// dispatch per nudge. The run lock still serializes against cron ticks.
func (w *Worker) listenNudges(ctx context.Context) {
	for {
		batchID, err := w.queue.Wait(ctx, 5*time.Second)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			w.log.Warn("nudge wait failed", "error", err.Error())
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}
		if batchID == "" {
			continue
		}
		w.log.Debug("nudge received", "batch_id", batchID)
		w.dispatchOnce(ctx)
	}
}
