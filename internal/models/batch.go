package models

import "time"

// BatchStatus is derived from the batch counters, never set directly.
type BatchStatus string

const (
	BatchQueued         BatchStatus = "queued"
	BatchProcessing     BatchStatus = "processing"
	BatchCompleted      BatchStatus = "completed"
	BatchPartialFailure BatchStatus = "partial_failure"
	BatchFailed         BatchStatus = "failed"
)

// RenderBatch is one rendering run for one post number across many dealers.
// TotalJobs is fixed at creation; only the counters and derived status mutate,
// driven exclusively by job-state transitions.
type RenderBatch struct {
	ID         string `json:"id"`
	PostNumber int    `json:"post_number"`
	TemplateID string `json:"template_id"`

	TotalJobs      int `json:"total_jobs"`
	PendingJobs    int `json:"pending_jobs"`
	ProcessingJobs int `json:"processing_jobs"`
	CompletedJobs  int `json:"completed_jobs"`
	FailedJobs     int `json:"failed_jobs"`

	Status BatchStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// CountersConsistent reports whether the four counters sum to TotalJobs.
func (b *RenderBatch) CountersConsistent() bool {
	return b.PendingJobs+b.ProcessingJobs+b.CompletedJobs+b.FailedJobs == b.TotalJobs
}

// AllTerminal reports whether every job has reached a final state.
func (b *RenderBatch) AllTerminal() bool {
	return b.PendingJobs == 0 && b.ProcessingJobs == 0
}

// DeriveStatus computes the batch status from the current counters:
// queued while nothing has been dispatched, processing while any job is in
// flight or only some are terminal, and a terminal status once every job is
// terminal.
func (b *RenderBatch) DeriveStatus() BatchStatus {
	if b.PendingJobs == b.TotalJobs {
		return BatchQueued
	}
	if !b.AllTerminal() {
		return BatchProcessing
	}
	switch {
	case b.CompletedJobs == b.TotalJobs:
		return BatchCompleted
	case b.CompletedJobs == 0:
		return BatchFailed
	default:
		return BatchPartialFailure
	}
}
