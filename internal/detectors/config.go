package detectors

import (
	"time"

	"go.uber.org/zap"
)

// Config selects and tunes the detectors of a standard set
type Config struct {
	DDoSStrategy    Strategy
	DDoSRatio       float64
	DDoSRatioWindow int
	ThresholdWindow int
	Thresholds      Thresholds

	RogueCPUPercent float64
	KnownProcesses  []string
	MaxOutbound     int
	CPUSpikePercent float64

	TrendSamples int
	TrendFactor  float64

	MLEnabled bool
	ML        MLConfig
}

// DefaultConfig mirrors the documented defaults
func DefaultConfig() Config {
	return Config{
		DDoSStrategy:    StrategyBoth,
		DDoSRatio:       2.5,
		DDoSRatioWindow: 30,
		ThresholdWindow: 3,
		Thresholds:      Thresholds{Packets: 200, Bytes: 150000, Drops: 20},
		RogueCPUPercent: 50,
		MaxOutbound:     100,
		CPUSpikePercent: 90,
		TrendSamples:    10,
		TrendFactor:     2,
		MLEnabled:       true,
		ML: MLConfig{
			MinSamples:    10,
			Contamination: 0.05,
			Trees:         100,
			Seed:          42,
			RefitInterval: time.Second,
		},
	}
}

// NewStandardSet builds the full detector set. The unrecognized-agent check
// is evaluated first; every other detector still runs for unknown agents.
func NewStandardSet(cfg Config, logger *zap.Logger) *Set {
	if logger == nil {
		logger = zap.NewNop()
	}
	ds := []Detector{UnrecognizedAgentDetector{}}

	switch cfg.DDoSStrategy {
	case StrategyRatio:
		ds = append(ds, DdosRatioDetector{Window: cfg.DDoSRatioWindow, Ratio: cfg.DDoSRatio})
	case StrategyThreshold:
		ds = append(ds, DdosThresholdDetector{Window: cfg.ThresholdWindow, Thresholds: cfg.Thresholds})
	default:
		ds = append(ds,
			DdosRatioDetector{Window: cfg.DDoSRatioWindow, Ratio: cfg.DDoSRatio},
			DdosThresholdDetector{Window: cfg.ThresholdWindow, Thresholds: cfg.Thresholds},
		)
	}

	ds = append(ds,
		NewRogueProcessDetector(cfg.RogueCPUPercent, cfg.KnownProcesses),
		MalwareFlowDetector{MaxOutbound: cfg.MaxOutbound},
		CPUSpikeDetector{Percent: cfg.CPUSpikePercent},
		PredictedTrafficDetector{Samples: cfg.TrendSamples, Factor: cfg.TrendFactor},
		PredictedCPUDetector{Samples: cfg.TrendSamples, Factor: cfg.TrendFactor},
	)
	if cfg.MLEnabled {
		ds = append(ds, NewMLAnomalyDetector(cfg.ML, logger.Named("ml")))
	}
	return NewSet(logger, ds...)
}
