package models

import (
	"time"

	"github.com/google/uuid"
)

// Action statuses
const (
	ActionAttempted = "attempted"
	ActionFailed    = "failed"
	ActionManual    = "manual"
)

// Action is a remediation step logged as attempted
type Action struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Target    string    `json:"target,omitempty"`
	AlertID   string    `json:"alert_id,omitempty"`
	Status    string    `json:"status,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewAction stamps a fresh action with an ID
func NewAction(name, target string, ts time.Time) Action {
	return Action{
		ID:        uuid.NewString(),
		Action:    name,
		Target:    target,
		Timestamp: ts,
	}
}
