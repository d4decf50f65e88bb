// Package storetest provides an in-memory stand-in for the Postgres store
// with the same transition and counter semantics, for service-level tests.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"dealercast/internal/models"
	"dealercast/internal/pkg/errors"
	"dealercast/internal/store"
)

type Fake struct {
	mu        sync.Mutex
	batches   map[string]*models.RenderBatch
	jobs      map[string]*models.RenderJob
	fieldMap  map[string][]models.FieldMapping
	lastJobAt time.Time

	// FailCreateBatch makes the next CreateBatch return an error.
	FailCreateBatch error
}

func NewFake() *Fake {
	return &Fake{
		batches:  make(map[string]*models.RenderBatch),
		jobs:     make(map[string]*models.RenderJob),
		fieldMap: make(map[string][]models.FieldMapping),
	}
}

func (f *Fake) CreateBatch(ctx context.Context, batch *models.RenderBatch, jobs []models.RenderJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailCreateBatch != nil {
		err := f.FailCreateBatch
		f.FailCreateBatch = nil
		return err
	}

	now := time.Now().UTC()
	if !now.After(f.lastJobAt) {
		now = f.lastJobAt.Add(time.Millisecond)
	}
	batch.CreatedAt = now
	b := *batch
	f.batches[b.ID] = &b

	for i := range jobs {
		j := jobs[i]
		// Spread creation times so FIFO ordering is observable.
		j.CreatedAt = now.Add(time.Duration(i) * time.Millisecond)
		f.jobs[j.ID] = &j
		if j.CreatedAt.After(f.lastJobAt) {
			f.lastJobAt = j.CreatedAt
		}
	}
	return nil
}

func (f *Fake) ClaimPendingJobs(ctx context.Context, limit int) ([]models.RenderJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pending := make([]*models.RenderJob, 0)
	for _, j := range f.jobs {
		if j.Status == models.JobPending {
			pending = append(pending, j)
		}
	}
	sort.Slice(pending, func(i, k int) bool {
		return pending[i].CreatedAt.Before(pending[k].CreatedAt)
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}

	now := time.Now().UTC()
	claimed := make([]models.RenderJob, 0, len(pending))
	for _, j := range pending {
		j.Status = models.JobProcessing
		t := now
		j.ProcessingStartedAt = &t
		f.moveCounter(j.BatchID, models.JobPending, models.JobProcessing)
		claimed = append(claimed, *j)
	}
	return claimed, nil
}

func (f *Fake) SetJobDispatched(ctx context.Context, jobID, renderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	j, ok := f.jobs[jobID]
	if !ok || j.Status != models.JobProcessing {
		return errors.NotFound("processing job", jobID)
	}
	j.RenderID = renderID
	return nil
}

func (f *Fake) FailJob(ctx context.Context, jobID, errMsg string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	j, ok := f.jobs[jobID]
	if !ok || j.Status != models.JobProcessing {
		return false, nil
	}
	j.Status = models.JobFailed
	j.LastError = errMsg
	j.RetryCount++
	now := time.Now().UTC()
	j.CompletedAt = &now
	f.moveCounter(j.BatchID, models.JobProcessing, models.JobFailed)
	return true, nil
}

func (f *Fake) CompleteJob(ctx context.Context, jobID string, res store.CompletionResult) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	j, ok := f.jobs[jobID]
	if !ok || j.Status != models.JobProcessing {
		return false, nil
	}
	j.Status = models.JobCompleted
	j.RenderURL = res.RenderURL
	j.DriveFileID = res.DriveFileID
	j.DriveURL = res.DriveURL
	j.DrivePath = res.DrivePath
	now := time.Now().UTC()
	j.CompletedAt = &now
	f.moveCounter(j.BatchID, models.JobProcessing, models.JobCompleted)
	return true, nil
}

func (f *Fake) SweepStuckJobs(ctx context.Context, ttl time.Duration) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cutoff := time.Now().UTC().Add(-ttl)
	var swept []string
	for _, j := range f.jobs {
		if j.Status != models.JobProcessing || j.ProcessingStartedAt == nil {
			continue
		}
		if j.ProcessingStartedAt.After(cutoff) {
			continue
		}
		j.Status = models.JobFailed
		j.LastError = "render timed out: no completion callback received"
		now := time.Now().UTC()
		j.CompletedAt = &now
		f.moveCounter(j.BatchID, models.JobProcessing, models.JobFailed)
		swept = append(swept, j.ID)
	}
	return swept, nil
}

func (f *Fake) GetJob(ctx context.Context, id string) (*models.RenderJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	j, ok := f.jobs[id]
	if !ok {
		return nil, errors.NotFound("job", id)
	}
	cp := *j
	return &cp, nil
}

func (f *Fake) GetBatch(ctx context.Context, id string) (*models.RenderBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, ok := f.batches[id]
	if !ok {
		return nil, errors.NotFound("batch", id)
	}
	cp := *b
	return &cp, nil
}

func (f *Fake) ListBatches(ctx context.Context, limit int) ([]models.RenderBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]models.RenderBatch, 0, len(f.batches))
	for _, b := range f.batches {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, k int) bool {
		return out[i].CreatedAt.After(out[k].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *Fake) ListBatchJobs(ctx context.Context, batchID string) ([]models.RenderJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.RenderJob
	for _, j := range f.jobs {
		if j.BatchID == batchID {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(i, k int) bool {
		return out[i].CreatedAt.Before(out[k].CreatedAt)
	})
	return out, nil
}

func (f *Fake) GetFieldMap(ctx context.Context, templateID string) ([]models.FieldMapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if m, ok := f.fieldMap[templateID]; ok {
		return m, nil
	}
	return models.DefaultFieldMap(), nil
}

// SetFieldMap registers a template field map for tests.
func (f *Fake) SetFieldMap(templateID string, m []models.FieldMapping) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fieldMap[templateID] = m
}

// BackdateProcessing rewinds a processing job's start time for sweep tests.
func (f *Fake) BackdateProcessing(jobID string, age time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if j, ok := f.jobs[jobID]; ok && j.ProcessingStartedAt != nil {
		t := j.ProcessingStartedAt.Add(-age)
		j.ProcessingStartedAt = &t
	}
}

// moveCounter shifts one job between batch counter buckets and rederives the
// batch status, matching the SQL applyCounterDelta.
func (f *Fake) moveCounter(batchID string, from, to models.JobStatus) {
	b, ok := f.batches[batchID]
	if !ok {
		return
	}

	dec := func(s models.JobStatus) {
		switch s {
		case models.JobPending:
			b.PendingJobs--
		case models.JobProcessing:
			b.ProcessingJobs--
		case models.JobCompleted:
			b.CompletedJobs--
		case models.JobFailed:
			b.FailedJobs--
		}
	}
	inc := func(s models.JobStatus) {
		switch s {
		case models.JobPending:
			b.PendingJobs++
		case models.JobProcessing:
			b.ProcessingJobs++
		case models.JobCompleted:
			b.CompletedJobs++
		case models.JobFailed:
			b.FailedJobs++
		}
	}
	dec(from)
	inc(to)

	if from == models.JobPending && b.StartedAt == nil {
		now := time.Now().UTC()
		b.StartedAt = &now
	}
	b.Status = b.DeriveStatus()
	if b.AllTerminal() && b.CompletedAt == nil {
		now := time.Now().UTC()
		b.CompletedAt = &now
	}
}
