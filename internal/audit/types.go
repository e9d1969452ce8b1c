// Package audit keeps a persistent trail of contract-template save attempts
// for the dealership compliance team.
package audit

import "time"

// Outcome classifies a save attempt.
type Outcome string

const (
	// OutcomeSaved means the backend accepted the document.
	OutcomeSaved Outcome = "saved"
	// OutcomeRejected means the save never reached the backend (empty body,
	// stale content guard, malformed document).
	OutcomeRejected Outcome = "rejected"
	// OutcomeFailed means the backend call itself failed.
	OutcomeFailed Outcome = "failed"
)

// Entry is one recorded save attempt.
type Entry struct {
	ID         string    `json:"id"`
	TemplateID string    `json:"template_id"`
	SessionID  string    `json:"session_id"`
	Actor      string    `json:"actor"`
	Outcome    Outcome   `json:"outcome"`
	Detail     string    `json:"detail"`
	BodyBytes  int       `json:"body_bytes"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListFilter narrows List results.
type ListFilter struct {
	TemplateID string
	Outcome    Outcome
	Since      time.Time
	Limit      int
	Offset     int
}
