package models

import "time"

// AttackFlag is the on-disk record of an unresolved detected attack
type AttackFlag struct {
	AttackDetected bool   `json:"attack_detected"`
	Timestamp      string `json:"timestamp"`
}

// WindowSample is one tick inside a window log file
type WindowSample struct {
	Timestamp string  `json:"timestamp"`
	Packets   float64 `json:"packets"`
	Bytes     float64 `json:"bytes"`
	Dropped   float64 `json:"dropped"`
}

// WindowLog is the content of logs/window_<n>.json
type WindowLog struct {
	Window         int            `json:"window"`
	AgentID        string         `json:"agent_id,omitempty"`
	Timestamp      string         `json:"timestamp"`
	Metrics        []WindowSample `json:"metrics"`
	AttackDetected bool           `json:"attack_detected"`
}

// ISOTime formats timestamps for the on-disk contracts
func ISOTime(t time.Time) string {
	return t.Format("2006-01-02T15:04:05.000000")
}
