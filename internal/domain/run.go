package domain

import "time"

// Run is the state of one pipeline execution within a browser session.
type Run struct {
	ID        string      `json:"id,omitempty"`
	SessionID string      `json:"sessionId,omitempty"`
	Status    RunStatus   `json:"status"`
	Failure   FailureKind `json:"failure,omitempty"`
	Message   string      `json:"message,omitempty"`
	StartedAt time.Time   `json:"startedAt,omitempty"`
	UpdatedAt time.Time   `json:"updatedAt,omitempty"`
}
