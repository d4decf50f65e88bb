package dispatch

import (
	"context"
	"time"

	"dealercast/internal/pkg/logger"
)

// SweepStore fails jobs stuck in processing past a TTL.
type SweepStore interface {
	SweepStuckJobs(ctx context.Context, ttl time.Duration) ([]string, error)
}

// Sweeper is the safety net for renders whose completion webhook never
// arrives. It runs on its own schedule, independent of the dispatcher.
type Sweeper struct {
	store SweepStore
	ttl   time.Duration
	log   *logger.Logger
}

func NewSweeper(store SweepStore, ttl time.Duration, log *logger.Logger) *Sweeper {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Sweeper{store: store, ttl: ttl, log: log.WithComponent("sweeper")}
}

// Sweep fails every job processing longer than the TTL and returns how many
// were swept.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	swept, err := s.store.SweepStuckJobs(ctx, s.ttl)
	if err != nil {
		return 0, err
	}
	if len(swept) > 0 {
		s.log.Warn("swept stuck jobs", "count", len(swept), "job_ids", swept)
	}
	return len(swept), nil
}
