package models

import (
	"math"
	"time"
)

// ProcessSample is one entry of a host's top-process list
type ProcessSample struct {
	Name string  `json:"name"`
	CPU  float64 `json:"cpu"`
}

// MetricRecord is one agent's telemetry for a single sampling tick.
// Network fields are per-interval deltas, never cumulative counters.
type MetricRecord struct {
	AgentID             string          `json:"agent_id"`
	Timestamp           time.Time       `json:"timestamp"`
	CPUUsage            float64         `json:"cpu_usage"`
	MemoryUsage         float64         `json:"memory_usage"`
	DiskUsage           float64         `json:"disk_usage"`
	MemoryAvailableGB   float64         `json:"memory_available_gb"`
	DiskFreeGB          float64         `json:"disk_free_gb"`
	NetworkSentMB       float64         `json:"network_sent_mb"`
	NetworkRecvMB       float64         `json:"network_recv_mb"`
	PacketsPerSec       float64         `json:"packets_per_sec"`
	BytesPerSec         float64         `json:"bytes_per_sec"`
	DroppedPackets      float64         `json:"dropped_packets"`
	OutboundConnections int             `json:"outbound_connections"`
	PerProcess          []ProcessSample `json:"per_process"`
}

// Validate reports the first malformed field of the record
func (r *MetricRecord) Validate() error {
	if r.AgentID == "" {
		return &ValidationError{Field: "agent_id", Reason: "is required"}
	}
	if len(r.AgentID) > 255 {
		return &ValidationError{Field: "agent_id", Reason: "exceeds 255 characters"}
	}

	fields := []struct {
		name  string
		value float64
	}{
		{"cpu_usage", r.CPUUsage},
		{"memory_usage", r.MemoryUsage},
		{"disk_usage", r.DiskUsage},
		{"memory_available_gb", r.MemoryAvailableGB},
		{"disk_free_gb", r.DiskFreeGB},
		{"network_sent_mb", r.NetworkSentMB},
		{"network_recv_mb", r.NetworkRecvMB},
		{"packets_per_sec", r.PacketsPerSec},
		{"bytes_per_sec", r.BytesPerSec},
		{"dropped_packets", r.DroppedPackets},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return &ValidationError{Field: f.name, Reason: "must be a finite number"}
		}
	}

	for _, p := range r.PerProcess {
		if p.Name == "" {
			return &ValidationError{Field: "per_process.name", Reason: "is required"}
		}
		if math.IsNaN(p.CPU) || math.IsInf(p.CPU, 0) {
			return &ValidationError{Field: "per_process.cpu", Reason: "must be a finite number"}
		}
	}
	return nil
}

// Normalize clamps percentages into [0,100] and negative deltas to zero.
// A negative delta means the source counter was reset.
func (r *MetricRecord) Normalize(now time.Time) {
	if r.Timestamp.IsZero() {
		r.Timestamp = now
	}
	r.CPUUsage = clampPercent(r.CPUUsage)
	r.MemoryUsage = clampPercent(r.MemoryUsage)
	r.DiskUsage = clampPercent(r.DiskUsage)

	r.MemoryAvailableGB = nonNegative(r.MemoryAvailableGB)
	r.DiskFreeGB = nonNegative(r.DiskFreeGB)
	r.NetworkSentMB = nonNegative(r.NetworkSentMB)
	r.NetworkRecvMB = nonNegative(r.NetworkRecvMB)
	r.PacketsPerSec = nonNegative(r.PacketsPerSec)
	r.BytesPerSec = nonNegative(r.BytesPerSec)
	r.DroppedPackets = nonNegative(r.DroppedPackets)
	if r.OutboundConnections < 0 {
		r.OutboundConnections = 0
	}
	for i := range r.PerProcess {
		r.PerProcess[i].CPU = nonNegative(r.PerProcess[i].CPU)
	}
}

// Clone returns a deep copy so the caller and the store never share PerProcess
func (r MetricRecord) Clone() MetricRecord {
	if r.PerProcess != nil {
		procs := make([]ProcessSample, len(r.PerProcess))
		copy(procs, r.PerProcess)
		r.PerProcess = procs
	}
	return r
}

// TotalTrafficMB is sent plus received for the interval
func (r MetricRecord) TotalTrafficMB() float64 {
	return r.NetworkSentMB + r.NetworkRecvMB
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
