package dispatch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealercast/internal/models"
	"dealercast/internal/pkg/errors"
	"dealercast/internal/pkg/logger"
	"dealercast/internal/renderer"
	"dealercast/internal/store"
	"dealercast/internal/store/storetest"
)

type dealerMap map[string]models.Dealer

func (m dealerMap) GetDealer(_ context.Context, dealerNo string) (*models.Dealer, error) {
	d, ok := m[dealerNo]
	if !ok {
		return nil, errors.NotFound("dealer", dealerNo)
	}
	return &d, nil
}

// fakeRenderer records create requests and fails dealers listed in failFor.
type fakeRenderer struct {
	requests []renderer.CreateRenderRequest
	failFor  map[string]string // businessId -> error message
	nextID   int
}

func (f *fakeRenderer) CreateRender(_ context.Context, req renderer.CreateRenderRequest) (*renderer.Render, error) {
	meta, err := renderer.ParseMetadata(req.Metadata)
	if err != nil {
		return nil, err
	}
	if msg, ok := f.failFor[meta.BusinessID]; ok {
		return nil, fmt.Errorf("%s", msg)
	}
	f.requests = append(f.requests, req)
	f.nextID++
	return &renderer.Render{
		ID:     fmt.Sprintf("rnd-%d", f.nextID),
		Status: renderer.StatusPlanned,
	}, nil
}

func (f *fakeRenderer) GetRenderStatus(_ context.Context, renderID string) (*renderer.Render, error) {
	return &renderer.Render{ID: renderID, Status: renderer.StatusRendering}, nil
}

type fakeLocker struct {
	denied   bool
	acquired int
	released int
}

func (l *fakeLocker) AcquireRunLock(_ context.Context, _ string, _ time.Duration) (bool, error) {
	if l.denied {
		return false, nil
	}
	l.acquired++
	return true, nil
}

func (l *fakeLocker) ReleaseRunLock(_ context.Context, _ string) error {
	l.released++
	return nil
}

func seedBatch(t *testing.T, fake *storetest.Fake, postNumber int, dealerNos ...string) *models.RenderBatch {
	t.Helper()
	batch := &models.RenderBatch{
		ID:          fmt.Sprintf("batch_%d", postNumber),
		PostNumber:  postNumber,
		TemplateID:  "tmpl-1",
		TotalJobs:   len(dealerNos),
		PendingJobs: len(dealerNos),
		Status:      models.BatchQueued,
	}
	jobs := make([]models.RenderJob, 0, len(dealerNos))
	for i, no := range dealerNos {
		jobs = append(jobs, models.RenderJob{
			ID:           fmt.Sprintf("job_%d_%d", postNumber, i),
			BatchID:      batch.ID,
			BusinessID:   no,
			BusinessName: "Dealer " + no,
			PostNumber:   postNumber,
			TemplateID:   "tmpl-1",
			Status:       models.JobPending,
		})
	}
	require.NoError(t, fake.CreateBatch(context.Background(), batch, jobs))
	return batch
}

func testRoster() dealerMap {
	return dealerMap{
		"D100": {DealerNo: "D100", DisplayName: "Acme Motors", Phone: "555-0100", Website: "https://acme.example.com", LogoURL: "https://cdn.example.com/acme.png", ProgramStatus: models.ProgramStatusFull},
		"D200": {DealerNo: "D200", DisplayName: "Bayside Auto", Phone: "555-0200", LogoURL: "https://cdn.example.com/bayside.png", ProgramStatus: models.ProgramStatusFull},
		"D300": {DealerNo: "D300", DisplayName: "Cliffview Cars", Phone: "555-0300", LogoURL: "https://cdn.example.com/cliff.png", ProgramStatus: models.ProgramStatusFull},
	}
}

func TestRunDispatchesClaimedJobs(t *testing.T) {
	fake := storetest.NewFake()
	batch := seedBatch(t, fake, 42, "D100", "D200")
	rc := &fakeRenderer{}
	locker := &fakeLocker{}

	d := New(fake, testRoster(), rc, locker, Options{
		BatchSize:  25,
		WebhookURL: "https://app.example.com/webhooks/render",
	}, logger.NewDefault())

	stats, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Claimed: 2, Dispatched: 2}, stats)
	assert.Equal(t, 1, locker.acquired)
	assert.Equal(t, 1, locker.released)

	// Jobs carry vendor ids and the batch moved to processing.
	jobs, err := fake.ListBatchJobs(context.Background(), batch.ID)
	require.NoError(t, err)
	for _, j := range jobs {
		assert.Equal(t, models.JobProcessing, j.Status)
		assert.NotEmpty(t, j.RenderID)
		assert.NotNil(t, j.ProcessingStartedAt)
	}

	b, err := fake.GetBatch(context.Background(), batch.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchProcessing, b.Status)
	assert.Equal(t, 0, b.PendingJobs)
	assert.Equal(t, 2, b.ProcessingJobs)
	assert.NotNil(t, b.StartedAt)

	// The vendor request carried the dealer fields and the webhook URL.
	require.Len(t, rc.requests, 2)
	req := rc.requests[0]
	assert.Equal(t, "tmpl-1", req.TemplateID)
	assert.Equal(t, "https://app.example.com/webhooks/render", req.WebhookURL)
	assert.Equal(t, "https://cdn.example.com/acme.png", req.Modifications["Logo"])
	assert.Equal(t, "Acme Motors", req.Modifications["Public-Company-Name"])
	assert.Equal(t, "555-0100", req.Modifications["Public-Company-Phone"])
	assert.Equal(t, "https://acme.example.com", req.Modifications["Public-Company-Website"])

	meta, err := renderer.ParseMetadata(req.Metadata)
	require.NoError(t, err)
	assert.Equal(t, "D100", meta.BusinessID)
	assert.Equal(t, 42, meta.PostNumber)
}

func TestRunHonorsBatchSizeOldestFirst(t *testing.T) {
	fake := storetest.NewFake()
	first := seedBatch(t, fake, 1, "D100", "D200")
	second := seedBatch(t, fake, 2, "D300")

	d := New(fake, testRoster(), &fakeRenderer{}, nil, Options{BatchSize: 2}, logger.NewDefault())

	stats, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Claimed: 2, Dispatched: 2}, stats)

	// Both jobs of the older batch went out; the newer batch is untouched.
	b1, _ := fake.GetBatch(context.Background(), first.ID)
	assert.Equal(t, 2, b1.ProcessingJobs)
	b2, _ := fake.GetBatch(context.Background(), second.ID)
	assert.Equal(t, 1, b2.PendingJobs)
	assert.Equal(t, models.BatchQueued, b2.Status)

	// The next run picks up the remainder.
	stats, err = d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Claimed: 1, Dispatched: 1}, stats)
}

func TestRunFailsJobWhenVendorRejects(t *testing.T) {
	fake := storetest.NewFake()
	batch := seedBatch(t, fake, 5, "D100", "D200")
	rc := &fakeRenderer{failFor: map[string]string{"D200": "renderer api status 400: invalid template"}}

	d := New(fake, testRoster(), rc, nil, Options{BatchSize: 25}, logger.NewDefault())

	stats, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Claimed: 2, Dispatched: 1, Failed: 1}, stats)

	jobs, _ := fake.ListBatchJobs(context.Background(), batch.ID)
	byDealer := make(map[string]models.RenderJob, len(jobs))
	for _, j := range jobs {
		byDealer[j.BusinessID] = j
	}
	assert.Equal(t, models.JobProcessing, byDealer["D100"].Status)

	failed := byDealer["D200"]
	assert.Equal(t, models.JobFailed, failed.Status)
	assert.Contains(t, failed.LastError, "invalid template")
	assert.Equal(t, 1, failed.RetryCount)

	b, _ := fake.GetBatch(context.Background(), batch.ID)
	assert.Equal(t, 1, b.ProcessingJobs)
	assert.Equal(t, 1, b.FailedJobs)
	assert.Equal(t, models.BatchProcessing, b.Status)
}

func TestRunFailsJobWhenDealerMissing(t *testing.T) {
	fake := storetest.NewFake()
	batch := seedBatch(t, fake, 5, "D999")

	d := New(fake, testRoster(), &fakeRenderer{}, nil, Options{BatchSize: 25}, logger.NewDefault())

	stats, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Claimed: 1, Failed: 1}, stats)

	jobs, _ := fake.ListBatchJobs(context.Background(), batch.ID)
	require.Len(t, jobs, 1)
	assert.Equal(t, models.JobFailed, jobs[0].Status)
	assert.Contains(t, jobs[0].LastError, "load dealer")
}

func TestRunSkipsWhenLockHeld(t *testing.T) {
	fake := storetest.NewFake()
	seedBatch(t, fake, 5, "D100")
	rc := &fakeRenderer{}

	d := New(fake, testRoster(), rc, &fakeLocker{denied: true}, Options{BatchSize: 25}, logger.NewDefault())

	stats, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
	assert.Empty(t, rc.requests)
}

func TestRunNoPendingJobsIsNoop(t *testing.T) {
	d := New(storetest.NewFake(), testRoster(), &fakeRenderer{}, nil, Options{BatchSize: 25}, logger.NewDefault())

	stats, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}

func TestSweeperFailsStuckJobs(t *testing.T) {
	fake := storetest.NewFake()
	batch := seedBatch(t, fake, 9, "D100", "D200")

	d := New(fake, testRoster(), &fakeRenderer{}, nil, Options{BatchSize: 25}, logger.NewDefault())
	_, err := d.Run(context.Background())
	require.NoError(t, err)

	jobs, _ := fake.ListBatchJobs(context.Background(), batch.ID)
	fake.BackdateProcessing(jobs[0].ID, time.Hour)

	sweeper := NewSweeper(fake, 30*time.Minute, logger.NewDefault())
	n, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	swept, err := fake.GetJob(context.Background(), jobs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, swept.Status)
	assert.Contains(t, swept.LastError, "render timed out")

	// A completion webhook arriving after the sweep is a no-op.
	applied, err := fake.CompleteJob(context.Background(), jobs[0].ID, store.CompletionResult{RenderURL: "https://cdn.example.com/late.mp4"})
	require.NoError(t, err)
	assert.False(t, applied)

	b, _ := fake.GetBatch(context.Background(), batch.ID)
	assert.Equal(t, 1, b.FailedJobs)
	assert.Equal(t, 1, b.ProcessingJobs)
}
