package detectors

import (
	"aegisnet/internal/models"
)

// DefaultKnownProcesses is the allow-list used when none is configured
var DefaultKnownProcesses = []string{
	"systemd", "init", "kthreadd", "sshd", "bash", "zsh", "sh",
	"python", "python3", "node", "java", "go", "aegisnet",
	"dockerd", "containerd", "kubelet", "postgres", "nginx",
	"chrome", "firefox", "code", "Xorg", "gnome-shell",
	"kernel_task", "WindowServer", "launchd",
	"System", "svchost.exe", "explorer.exe",
}

// RogueProcessDetector flags the first unknown process above the CPU limit
type RogueProcessDetector struct {
	CPUPercent float64
	known      map[string]struct{}
}

// NewRogueProcessDetector builds the detector; an empty allow-list selects
// DefaultKnownProcesses.
func NewRogueProcessDetector(cpuPercent float64, known []string) *RogueProcessDetector {
	if len(known) == 0 {
		known = DefaultKnownProcesses
	}
	set := make(map[string]struct{}, len(known))
	for _, name := range known {
		set[name] = struct{}{}
	}
	return &RogueProcessDetector{CPUPercent: cpuPercent, known: set}
}

func (d *RogueProcessDetector) Name() string { return "rogue_process" }

func (d *RogueProcessDetector) Detect(rec models.MetricRecord, _ HistoryReader) (models.Alert, bool) {
	for _, p := range rec.PerProcess {
		if p.CPU <= d.CPUPercent {
			continue
		}
		if _, ok := d.known[p.Name]; ok {
			continue
		}
		return models.MustAlert(rec.AgentID, models.RogueProcessDetails{OffendingProcess: p}, rec.Timestamp), true
	}
	return models.Alert{}, false
}

// MalwareFlowDetector flags hosts with too many outbound connections
type MalwareFlowDetector struct {
	MaxOutbound int
}

func (d MalwareFlowDetector) Name() string { return "malware_flow" }

func (d MalwareFlowDetector) Detect(rec models.MetricRecord, _ HistoryReader) (models.Alert, bool) {
	if rec.OutboundConnections <= d.MaxOutbound {
		return models.Alert{}, false
	}
	return models.MustAlert(rec.AgentID, models.MalwareFlowDetails{
		OutboundConnections: rec.OutboundConnections,
	}, rec.Timestamp), true
}

// UnrecognizedAgentDetector flags agents without a registered profile
type UnrecognizedAgentDetector struct{}

func (UnrecognizedAgentDetector) Name() string { return "unrecognized_agent" }

func (UnrecognizedAgentDetector) Detect(rec models.MetricRecord, store HistoryReader) (models.Alert, bool) {
	if store.IsRecognized(rec.AgentID) {
		return models.Alert{}, false
	}
	return models.MustAlert(rec.AgentID, models.UnrecognizedAgentDetails{AgentID: rec.AgentID}, rec.Timestamp), true
}

// CPUSpikeDetector flags a host whose total CPU exceeds Percent
type CPUSpikeDetector struct {
	Percent float64
}

func (d CPUSpikeDetector) Name() string { return "cpu_spike" }

func (d CPUSpikeDetector) Detect(rec models.MetricRecord, _ HistoryReader) (models.Alert, bool) {
	if rec.CPUUsage <= d.Percent {
		return models.Alert{}, false
	}
	return models.MustAlert(rec.AgentID, models.CPUSpikeDetails{
		AgentID: rec.AgentID,
		CPU:     rec.CPUUsage,
	}, rec.Timestamp), true
}
