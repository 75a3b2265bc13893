package services

import "time"

// Event types pushed to live subscribers
const (
	EventAlert  = "alert"
	EventAction = "action"
	EventAttack = "attack"
	EventWindow = "window"
)

// Event is one live notification for dashboard subscribers
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// EventPublisher fans events out; implementations must not block
type EventPublisher interface {
	Publish(event Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(Event) {}
