package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AlertType discriminates the Alert variants
type AlertType string

const (
	AlertDDoSSuspected          AlertType = "DDOS_SUSPECTED"
	AlertRogueAgentDetected     AlertType = "ROGUE_AGENT_DETECTED"
	AlertMalwareFlow            AlertType = "MALWARE_FLOW"
	AlertUnrecognizedAgent      AlertType = "UNRECOGNIZED_AGENT"
	AlertPredictedTrafficSpike  AlertType = "PREDICTED_TRAFFIC_SPIKE"
	AlertPredictedCPUBottleneck AlertType = "PREDICTED_CPU_BOTTLENECK"
	AlertMLAnomaly              AlertType = "ML_ANOMALY"
	AlertCPUSpike               AlertType = "CPU_SPIKE"
)

// AlertDetails is the per-variant payload of an Alert
type AlertDetails interface {
	Kind() AlertType
	Validate() error
}

// DDoS strategies reported in DDoSDetails.Strategy
const (
	DDoSStrategyRatio     = "ratio"
	DDoSStrategyThreshold = "threshold"
)

// DDoSDetails covers both the average-ratio and fixed-threshold rules
type DDoSDetails struct {
	Strategy      string  `json:"strategy"`
	WindowSize    int     `json:"window_size"`
	PacketsPerSec float64 `json:"packets_per_sec,omitempty"`
	WindowMean    float64 `json:"window_mean,omitempty"`
	Ratio         float64 `json:"ratio,omitempty"`
	PacketSpikes  int     `json:"packet_spikes,omitempty"`
	ByteSpikes    int     `json:"byte_spikes,omitempty"`
	DropSpikes    int     `json:"drop_spikes,omitempty"`
}

// Kind implements AlertDetails
func (DDoSDetails) Kind() AlertType { return AlertDDoSSuspected }

func (d DDoSDetails) Validate() error {
	if d.Strategy != DDoSStrategyRatio && d.Strategy != DDoSStrategyThreshold {
		return fmt.Errorf("unknown ddos strategy %q", d.Strategy)
	}
	return nil
}

// RogueProcessDetails names the unknown process that exceeded the CPU limit
type RogueProcessDetails struct {
	OffendingProcess ProcessSample `json:"offending_proc"`
}

func (RogueProcessDetails) Kind() AlertType { return AlertRogueAgentDetected }

func (d RogueProcessDetails) Validate() error {
	if d.OffendingProcess.Name == "" {
		return fmt.Errorf("offending process name is required")
	}
	return nil
}

// MalwareFlowDetails reports the outbound connection count over the limit
type MalwareFlowDetails struct {
	OutboundConnections int `json:"outbound_connections"`
}

func (MalwareFlowDetails) Kind() AlertType { return AlertMalwareFlow }
// Validate accepts any count; the detector only emits counts over its limit
func (MalwareFlowDetails) Validate() error { return nil }

// UnrecognizedAgentDetails names the agent that has no registered profile
type UnrecognizedAgentDetails struct {
	AgentID string `json:"agent_id"`
}

func (UnrecognizedAgentDetails) Kind() AlertType { return AlertUnrecognizedAgent }

func (d UnrecognizedAgentDetails) Validate() error {
	if d.AgentID == "" {
		return fmt.Errorf("agent_id is required")
	}
	return nil
}

// PredictedTrafficDetails compares the newer and older halves of the
// sent+recv volume trend, in MB
type PredictedTrafficDetails struct {
	PredictedTraffic float64 `json:"predicted_traffic"`
	PreviousTraffic  float64 `json:"previous_traffic"`
}

func (PredictedTrafficDetails) Kind() AlertType { return AlertPredictedTrafficSpike }
func (PredictedTrafficDetails) Validate() error { return nil }

// PredictedCPUDetails compares the newer and older halves of the CPU trend
type PredictedCPUDetails struct {
	PredictedCPU float64 `json:"predicted_cpu"`
	PreviousCPU  float64 `json:"previous_cpu"`
}

func (PredictedCPUDetails) Kind() AlertType { return AlertPredictedCPUBottleneck }
func (PredictedCPUDetails) Validate() error { return nil }

// MLAnomalyDetails is the isolation score of the newest CPU sample against
// the threshold learned from Samples training points
type MLAnomalyDetails struct {
	CPU       float64 `json:"cpu"`
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
	Samples   int     `json:"samples"`
}

func (MLAnomalyDetails) Kind() AlertType { return AlertMLAnomaly }
func (MLAnomalyDetails) Validate() error { return nil }

// CPUSpikeDetails carries the agent to offload work from
type CPUSpikeDetails struct {
	AgentID string  `json:"agent_id"`
	CPU     float64 `json:"cpu"`
}

func (CPUSpikeDetails) Kind() AlertType { return AlertCPUSpike }

func (d CPUSpikeDetails) Validate() error {
	if d.AgentID == "" {
		return fmt.Errorf("agent_id is required")
	}
	return nil
}

// Alert is an immutable detector output
type Alert struct {
	ID        string       `json:"id"`
	Type      AlertType    `json:"type"`
	AgentID   string       `json:"agent_id,omitempty"`
	Details   AlertDetails `json:"details"`
	Timestamp time.Time    `json:"timestamp"`
}

// NewAlert builds an alert whose type is taken from its details
func NewAlert(agentID string, details AlertDetails, ts time.Time) (Alert, error) {
	if details == nil {
		return Alert{}, fmt.Errorf("alert details are required")
	}
	if err := details.Validate(); err != nil {
		return Alert{}, fmt.Errorf("invalid %s details: %w", details.Kind(), err)
	}
	return Alert{
		ID:        uuid.NewString(),
		Type:      details.Kind(),
		AgentID:   agentID,
		Details:   details,
		Timestamp: ts,
	}, nil
}

// MustAlert is NewAlert for details built in code; it panics on invalid details
func MustAlert(agentID string, details AlertDetails, ts time.Time) Alert {
	a, err := NewAlert(agentID, details, ts)
	if err != nil {
		panic(err)
	}
	return a
}

func newDetails(t AlertType) (AlertDetails, bool) {
	switch t {
	case AlertDDoSSuspected:
		return &DDoSDetails{}, true
	case AlertRogueAgentDetected:
		return &RogueProcessDetails{}, true
	case AlertMalwareFlow:
		return &MalwareFlowDetails{}, true
	case AlertUnrecognizedAgent:
		return &UnrecognizedAgentDetails{}, true
	case AlertPredictedTrafficSpike:
		return &PredictedTrafficDetails{}, true
	case AlertPredictedCPUBottleneck:
		return &PredictedCPUDetails{}, true
	case AlertMLAnomaly:
		return &MLAnomalyDetails{}, true
	case AlertCPUSpike:
		return &CPUSpikeDetails{}, true
	}
	return nil, false
}

// UnmarshalJSON decodes details into the struct matching the type discriminant
func (a *Alert) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID        string          `json:"id"`
		Type      AlertType       `json:"type"`
		AgentID   string          `json:"agent_id"`
		Details   json.RawMessage `json:"details"`
		Timestamp time.Time       `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	ptr, ok := newDetails(raw.Type)
	if !ok {
		return fmt.Errorf("unknown alert type %q", raw.Type)
	}
	if len(raw.Details) > 0 {
		if err := json.Unmarshal(raw.Details, ptr); err != nil {
			return fmt.Errorf("decode %s details: %w", raw.Type, err)
		}
	}

	// store the value form so decoded alerts compare equal to built ones
	var details AlertDetails
	switch d := ptr.(type) {
	case *DDoSDetails:
		details = *d
	case *RogueProcessDetails:
		details = *d
	case *MalwareFlowDetails:
		details = *d
	case *UnrecognizedAgentDetails:
		details = *d
	case *PredictedTrafficDetails:
		details = *d
	case *PredictedCPUDetails:
		details = *d
	case *MLAnomalyDetails:
		details = *d
	case *CPUSpikeDetails:
		details = *d
	}
	if err := details.Validate(); err != nil {
		return fmt.Errorf("invalid %s details: %w", raw.Type, err)
	}

	a.ID = raw.ID
	a.Type = raw.Type
	a.AgentID = raw.AgentID
	a.Details = details
	a.Timestamp = raw.Timestamp
	return nil
}
