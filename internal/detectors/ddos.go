package detectors

import (
	"fmt"

	"aegisnet/internal/models"
)

// Strategy selects which DDoS rule(s) a detector set carries
type Strategy string

const (
	StrategyRatio     Strategy = "ratio"
	StrategyThreshold Strategy = "threshold"
	StrategyBoth      Strategy = "both"
)

// ParseStrategy validates a configured strategy name
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyRatio, StrategyThreshold, StrategyBoth:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown ddos strategy %q (want ratio, threshold or both)", s)
}

// RatioSpike compares the last packet rate against the mean of the rest.
// A single sample is its own baseline, so it never fires.
func RatioSpike(packets []float64, ratio float64) (last, avg float64, fired bool) {
	if len(packets) == 0 {
		return 0, 0, false
	}
	last = packets[len(packets)-1]
	if len(packets) == 1 {
		return last, last, false
	}
	avg = mean(packets[:len(packets)-1])
	return last, avg, last > ratio*avg
}

// Thresholds are the per-interval limits of the fixed-threshold rule
type Thresholds struct {
	Packets float64
	Bytes   float64
	Drops   float64
}

// SpikeCounts tallies the samples of a window over each threshold
type SpikeCounts struct {
	Packets int
	Bytes   int
	Drops   int
}

// Attack reports a packet spike backed by a byte or drop spike
func (c SpikeCounts) Attack() bool {
	return c.Packets >= 1 && (c.Bytes >= 1 || c.Drops >= 1)
}

// CountSpikes evaluates the fixed-threshold rule over a window
func CountSpikes(window []models.MetricRecord, th Thresholds) SpikeCounts {
	var c SpikeCounts
	for _, rec := range window {
		if rec.PacketsPerSec > th.Packets {
			c.Packets++
		}
		if rec.BytesPerSec > th.Bytes {
			c.Bytes++
		}
		if rec.DroppedPackets > th.Drops {
			c.Drops++
		}
	}
	return c
}

// DdosRatioDetector fires when the newest packet rate exceeds Ratio times
// the mean of the preceding samples in the window.
type DdosRatioDetector struct {
	Window int
	Ratio  float64
}

func (d DdosRatioDetector) Name() string { return "ddos_ratio" }

func (d DdosRatioDetector) Detect(rec models.MetricRecord, store HistoryReader) (models.Alert, bool) {
	win := window(rec, store, d.Window)
	if len(win) < 2 {
		return models.Alert{}, false
	}
	packets := make([]float64, len(win))
	for i, r := range win {
		packets[i] = r.PacketsPerSec
	}
	last, avg, fired := RatioSpike(packets, d.Ratio)
	if !fired {
		return models.Alert{}, false
	}
	return models.MustAlert(rec.AgentID, models.DDoSDetails{
		Strategy:      models.DDoSStrategyRatio,
		WindowSize:    len(win),
		PacketsPerSec: last,
		WindowMean:    avg,
		Ratio:         d.Ratio,
	}, rec.Timestamp), true
}

// DdosThresholdDetector applies the fixed-threshold rule to the last Window
// samples of the agent.
type DdosThresholdDetector struct {
	Window     int
	Thresholds Thresholds
}

func (d DdosThresholdDetector) Name() string { return "ddos_threshold" }

func (d DdosThresholdDetector) Detect(rec models.MetricRecord, store HistoryReader) (models.Alert, bool) {
	win := window(rec, store, d.Window)
	counts := CountSpikes(win, d.Thresholds)
	if !counts.Attack() {
		return models.Alert{}, false
	}
	return models.MustAlert(rec.AgentID, models.DDoSDetails{
		Strategy:     models.DDoSStrategyThreshold,
		WindowSize:   len(win),
		PacketSpikes: counts.Packets,
		ByteSpikes:   counts.Bytes,
		DropSpikes:   counts.Drops,
	}, rec.Timestamp), true
}
