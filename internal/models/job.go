package models

import "time"

// JobStatus is the lifecycle state of a render job. Transitions only move
// forward: pending -> processing -> completed|failed. A terminal job never
// changes state again.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Valid reports whether s is one of the known job statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobPending, JobProcessing, JobCompleted, JobFailed:
		return true
	}
	return false
}

// Terminal reports whether s is a final state.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// CanTransition reports whether a job may move from s to next.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobPending:
		return next == JobProcessing || next == JobFailed
	case JobProcessing:
		return next == JobCompleted || next == JobFailed
	default:
		return false
	}
}

// RenderJob is one dealer's unit of work within a batch.
type RenderJob struct {
	ID           string    `json:"id"`
	BatchID      string    `json:"batch_id"`
	BusinessID   string    `json:"business_id"`
	BusinessName string    `json:"business_name"`
	PostNumber   int       `json:"post_number"`
	TemplateID   string    `json:"template_id"`
	Status       JobStatus `json:"status"`

	// RenderID is the vendor-assigned id, empty until dispatch is accepted.
	RenderID  string `json:"render_id,omitempty"`
	RenderURL string `json:"render_url,omitempty"`

	// Drive fields are populated only on completion.
	DriveFileID string `json:"drive_file_id,omitempty"`
	DriveURL    string `json:"drive_url,omitempty"`
	DrivePath   string `json:"drive_path,omitempty"`

	RetryCount int    `json:"retry_count"`
	LastError  string `json:"last_error,omitempty"`

	CreatedAt           time.Time  `json:"created_at"`
	ProcessingStartedAt *time.Time `json:"processing_started_at,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
}
