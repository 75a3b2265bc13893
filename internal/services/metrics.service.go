package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"aegisnet/internal/models"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
)

const (
	MB = 1024 * 1024
	GB = 1024 * 1024 * 1024
)

// NetCounters are cumulative interface counters summed over all NICs
type NetCounters struct {
	BytesSent   uint64
	BytesRecv   uint64
	PacketsRecv uint64
	Drops       uint64
}

// HostSample is one raw read of the host, before deltas are taken
type HostSample struct {
	CPUPercent          float64
	MemoryPercent       float64
	DiskPercent         float64
	MemoryAvailableGB   float64
	DiskFreeGB          float64
	Net                 NetCounters
	OutboundConnections int
	Processes           []models.ProcessSample
}

// Probe reads raw host state
type Probe interface {
	Sample(ctx context.Context) (HostSample, error)
}

// SystemProbe reads the local machine through gopsutil
type SystemProbe struct {
	DiskPath  string
	Processes *ProcessSampler
}

// NewSystemProbe samples disk usage at diskPath and the top processes
func NewSystemProbe(diskPath string, topProcesses int) *SystemProbe {
	if diskPath == "" {
		diskPath = "/"
	}
	return &SystemProbe{DiskPath: diskPath, Processes: NewProcessSampler(topProcesses)}
}

func (p *SystemProbe) Sample(ctx context.Context) (HostSample, error) {
	var s HostSample

	percentages, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return s, fmt.Errorf("failed to get CPU usage: %w", err)
	}
	if len(percentages) > 0 {
		s.CPUPercent = percentages[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return s, fmt.Errorf("failed to get memory usage: %w", err)
	}
	s.MemoryPercent = vm.UsedPercent
	s.MemoryAvailableGB = float64(vm.Available) / GB

	usage, err := disk.UsageWithContext(ctx, p.DiskPath)
	if err != nil {
		return s, fmt.Errorf("failed to get disk usage: %w", err)
	}
	s.DiskPercent = usage.UsedPercent
	s.DiskFreeGB = float64(usage.Free) / GB

	counters, err := net.IOCountersWithContext(ctx, false)
	if err != nil {
		return s, fmt.Errorf("failed to get network counters: %w", err)
	}
	for _, c := range counters {
		s.Net.BytesSent += c.BytesSent
		s.Net.BytesRecv += c.BytesRecv
		s.Net.PacketsRecv += c.PacketsRecv
		s.Net.Drops += c.Dropin + c.Dropout
	}

	// connection and process listings need privileges on some hosts;
	// a failure leaves the field empty rather than dropping the tick
	if conns, err := net.ConnectionsWithContext(ctx, "inet"); err == nil {
		s.OutboundConnections = countOutbound(conns)
	}
	if p.Processes != nil {
		if procs, err := p.Processes.Sample(ctx); err == nil {
			s.Processes = procs
		}
	}
	return s, nil
}

// countOutbound counts established connections with a remote peer
func countOutbound(conns []net.ConnectionStat) int {
	n := 0
	for _, c := range conns {
		if c.Status == "ESTABLISHED" && c.Raddr.IP != "" {
			n++
		}
	}
	return n
}

// HostCollector turns consecutive probe reads into MetricRecords with
// per-interval network deltas.
type HostCollector struct {
	agentID string
	probe   Probe
	now     func() time.Time

	mu   sync.Mutex
	prev *NetCounters
}

// NewHostCollector collects for agentID from probe
func NewHostCollector(agentID string, probe Probe) *HostCollector {
	return &HostCollector{agentID: agentID, probe: probe, now: time.Now}
}

// Collect reads the host once. The first call has zero network deltas.
func (c *HostCollector) Collect(ctx context.Context) (models.MetricRecord, error) {
	s, err := c.probe.Sample(ctx)
	if err != nil {
		return models.MetricRecord{}, err
	}

	c.mu.Lock()
	prev := c.prev
	cur := s.Net
	c.prev = &cur
	c.mu.Unlock()

	rec := models.MetricRecord{
		AgentID:             c.agentID,
		Timestamp:           c.now(),
		CPUUsage:            s.CPUPercent,
		MemoryUsage:         s.MemoryPercent,
		DiskUsage:           s.DiskPercent,
		MemoryAvailableGB:   s.MemoryAvailableGB,
		DiskFreeGB:          s.DiskFreeGB,
		OutboundConnections: s.OutboundConnections,
		PerProcess:          s.Processes,
	}
	if prev != nil {
		rec.NetworkSentMB = counterDelta(cur.BytesSent, prev.BytesSent) / MB
		rec.NetworkRecvMB = counterDelta(cur.BytesRecv, prev.BytesRecv) / MB
		rec.PacketsPerSec = counterDelta(cur.PacketsRecv, prev.PacketsRecv)
		rec.BytesPerSec = counterDelta(cur.BytesRecv, prev.BytesRecv)
		rec.DroppedPackets = counterDelta(cur.Drops, prev.Drops)
	}
	return rec, nil
}

// counterDelta is cur-prev, or zero when the counter was reset
func counterDelta(cur, prev uint64) float64 {
	if cur < prev {
		return 0
	}
	return float64(cur - prev)
}
