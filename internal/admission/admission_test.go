package admission

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealercast/internal/models"
	"dealercast/internal/pkg/errors"
	"dealercast/internal/pkg/logger"
	"dealercast/internal/store/storetest"
)

type staticDealers struct {
	dealers []models.Dealer
}

func (s *staticDealers) ListFullDealers(_ context.Context, dealerNos, skip []string) ([]models.Dealer, error) {
	want := make(map[string]bool, len(dealerNos))
	for _, n := range dealerNos {
		want[n] = true
	}
	skipped := make(map[string]bool, len(skip))
	for _, n := range skip {
		skipped[n] = true
	}

	var out []models.Dealer
	for _, d := range s.dealers {
		if d.ProgramStatus != models.ProgramStatusFull {
			continue
		}
		if len(want) > 0 && !want[d.DealerNo] {
			continue
		}
		if skipped[d.DealerNo] {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

type recordingNudger struct {
	batchIDs []string
	err      error
}

func (n *recordingNudger) Nudge(_ context.Context, batchID string) error {
	if n.err != nil {
		return n.err
	}
	n.batchIDs = append(n.batchIDs, batchID)
	return nil
}

func testDealers() []models.Dealer {
	return []models.Dealer{
		{DealerNo: "D100", DisplayName: "Acme Motors", Phone: "555-0100", LogoURL: "https://cdn.example.com/acme.png", ProgramStatus: models.ProgramStatusFull},
		{DealerNo: "D200", DisplayName: "Bayside Auto", Phone: "555-0200", LogoURL: "https://cdn.example.com/bayside.png", ProgramStatus: models.ProgramStatusFull},
		{DealerNo: "D300", DisplayName: "Cliffview Cars", ProgramStatus: models.ProgramStatusFull}, // no logo
		{DealerNo: "D400", DisplayName: "Dormant Deals", LogoURL: "https://cdn.example.com/d.png", ProgramStatus: "PAUSED"},
	}
}

func TestAdmitCreatesBatchForEligibleDealers(t *testing.T) {
	fake := storetest.NewFake()
	nudger := &recordingNudger{}
	svc := NewService(fake, &staticDealers{dealers: testDealers()}, nudger, logger.NewDefault())

	res, err := svc.Admit(context.Background(), Request{PostNumber: 42, TemplateID: "tmpl-1"})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Batch.TotalJobs)
	assert.Equal(t, 2, res.Batch.PendingJobs)
	assert.Equal(t, models.BatchQueued, res.Batch.Status)
	assert.Len(t, res.Jobs, 2)
	for _, j := range res.Jobs {
		assert.Equal(t, models.JobPending, j.Status)
		assert.Equal(t, 42, j.PostNumber)
		assert.Equal(t, "tmpl-1", j.TemplateID)
	}

	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "D300", res.Skipped[0].DealerNo)
	assert.Equal(t, "missing logo asset", res.Skipped[0].Reason)

	// Persisted, and the dispatcher was nudged.
	stored, err := fake.GetBatch(context.Background(), res.Batch.ID)
	require.NoError(t, err)
	assert.True(t, stored.CountersConsistent())
	assert.Equal(t, []string{res.Batch.ID}, nudger.batchIDs)
}

func TestAdmitNarrowsToRequestedDealers(t *testing.T) {
	fake := storetest.NewFake()
	svc := NewService(fake, &staticDealers{dealers: testDealers()}, nil, logger.NewDefault())

	res, err := svc.Admit(context.Background(), Request{
		PostNumber: 7,
		TemplateID: "tmpl-1",
		DealerNos:  []string{"D200"},
	})
	require.NoError(t, err)
	require.Len(t, res.Jobs, 1)
	assert.Equal(t, "D200", res.Jobs[0].BusinessID)
	assert.Equal(t, "Bayside Auto", res.Jobs[0].BusinessName)
}

func TestAdmitHonorsSkipList(t *testing.T) {
	fake := storetest.NewFake()
	svc := NewService(fake, &staticDealers{dealers: testDealers()}, nil, logger.NewDefault())

	res, err := svc.Admit(context.Background(), Request{
		PostNumber: 7,
		TemplateID: "tmpl-1",
		Skip:       []string{"D100"},
	})
	require.NoError(t, err)
	require.Len(t, res.Jobs, 1)
	assert.Equal(t, "D200", res.Jobs[0].BusinessID)
}

func TestAdmitRejectsInvalidRequest(t *testing.T) {
	svc := NewService(storetest.NewFake(), &staticDealers{}, nil, logger.NewDefault())

	cases := []struct {
		name string
		req  Request
	}{
		{"missing post number", Request{TemplateID: "tmpl-1"}},
		{"negative post number", Request{PostNumber: -3, TemplateID: "tmpl-1"}},
		{"missing template", Request{PostNumber: 5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Admit(context.Background(), tc.req)
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err))
		})
	}
}

func TestAdmitRejectsWhenNoDealersMatch(t *testing.T) {
	svc := NewService(storetest.NewFake(), &staticDealers{}, nil, logger.NewDefault())

	_, err := svc.Admit(context.Background(), Request{PostNumber: 5, TemplateID: "tmpl-1"})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestAdmitRejectsWhenAllDealersIneligible(t *testing.T) {
	dealers := &staticDealers{dealers: []models.Dealer{
		{DealerNo: "D300", DisplayName: "Cliffview Cars", ProgramStatus: models.ProgramStatusFull},
		{DealerNo: "D500", LogoURL: "https://cdn.example.com/e.png", ProgramStatus: models.ProgramStatusFull},
	}}
	svc := NewService(storetest.NewFake(), dealers, nil, logger.NewDefault())

	_, err := svc.Admit(context.Background(), Request{PostNumber: 5, TemplateID: "tmpl-1"})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestAdmitPropagatesStoreError(t *testing.T) {
	fake := storetest.NewFake()
	fake.FailCreateBatch = fmt.Errorf("connection reset")
	svc := NewService(fake, &staticDealers{dealers: testDealers()}, nil, logger.NewDefault())

	_, err := svc.Admit(context.Background(), Request{PostNumber: 5, TemplateID: "tmpl-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestAdmitToleratesNudgeFailure(t *testing.T) {
	fake := storetest.NewFake()
	nudger := &recordingNudger{err: fmt.Errorf("redis down")}
	svc := NewService(fake, &staticDealers{dealers: testDealers()}, nudger, logger.NewDefault())

	res, err := svc.Admit(context.Background(), Request{PostNumber: 5, TemplateID: "tmpl-1"})
	require.NoError(t, err)
	assert.NotNil(t, res.Batch)
}
