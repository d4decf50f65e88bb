package renderer

import (
	"encoding/json"
	"fmt"
)

// WebhookPayload is the body of the vendor's asynchronous completion callback.
// Metadata is the JSON-encoded string supplied at dispatch time.
type WebhookPayload struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	URL          string `json:"url,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	Metadata     string `json:"metadata,omitempty"`
}

// JobMetadata identifies the render job a webhook refers to without a lookup
// keyed by vendor id alone.
type JobMetadata struct {
	JobID      string `json:"jobId"`
	BusinessID string `json:"businessId"`
	PostNumber int    `json:"postNumber"`
}

// EncodeMetadata serializes job metadata for the dispatch request.
func EncodeMetadata(m JobMetadata) (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ParseMetadata recovers job metadata from a webhook payload.
func ParseMetadata(raw string) (JobMetadata, error) {
	var m JobMetadata
	if raw == "" {
		return m, fmt.Errorf("empty metadata")
	}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return m, fmt.Errorf("decode metadata: %w", err)
	}
	if m.JobID == "" {
		return m, fmt.Errorf("metadata missing jobId")
	}
	return m, nil
}
