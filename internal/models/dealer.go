package models

import (
	"strings"
	"time"
)

// ProgramStatusFull marks dealers enrolled in the full video program; only
// these are eligible for batch admission.
const ProgramStatusFull = "FULL"

// Dealer is a roster entity for whom personalized videos are produced.
// The roster is maintained by surrounding CRUD screens; this service only
// reads it.
type Dealer struct {
	DealerNo      string     `json:"dealer_no"`
	DisplayName   string     `json:"display_name"`
	Phone         string     `json:"phone,omitempty"`
	Website       string     `json:"website,omitempty"`
	LogoURL       string     `json:"logo_url,omitempty"`
	ProgramStatus string     `json:"program_status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// IneligibleReason explains why a dealer was skipped at admission, or is
// empty when the dealer can be rendered.
func (d *Dealer) IneligibleReason() string {
	if strings.TrimSpace(d.DisplayName) == "" {
		return "missing display name"
	}
	if strings.TrimSpace(d.LogoURL) == "" {
		return "missing logo asset"
	}
	return ""
}
