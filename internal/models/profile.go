package models

import "time"

// AgentProfile is the identity an agent is registered under.
// Only registered agents are recognized.
type AgentProfile struct {
	AgentID      string            `json:"agent_id"`
	Hostname     string            `json:"hostname,omitempty"`
	Owner        string            `json:"owner,omitempty"`
	Labels       map[string]string `json:"labels,omitempty"`
	RegisteredAt time.Time         `json:"registered_at"`
}
