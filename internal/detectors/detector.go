// Package detectors turns a stored metric record into zero or more alerts.
package detectors

import (
	"fmt"
	"time"

	"aegisnet/internal/models"
	"aegisnet/internal/telemetry"

	"go.uber.org/zap"
)

// HistoryReader is the read side of the historical store the detectors need
type HistoryReader interface {
	History(agentID string) []models.MetricRecord
	IsRecognized(agentID string) bool
}

// Detector inspects one record. It runs after the record has been stored,
// so the history returned by the reader already ends with rec.
type Detector interface {
	Name() string
	Detect(rec models.MetricRecord, store HistoryReader) (models.Alert, bool)
}

// Set runs every detector independently and unions their alerts
type Set struct {
	detectors []Detector
	logger    *zap.Logger
}

// NewSet builds a set that evaluates detectors in the given order
func NewSet(logger *zap.Logger, detectors ...Detector) *Set {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Set{detectors: detectors, logger: logger}
}

// Names lists the detectors in evaluation order
func (s *Set) Names() []string {
	names := make([]string, len(s.detectors))
	for i, d := range s.detectors {
		names[i] = d.Name()
	}
	return names
}

// Evaluate returns the alerts raised for rec. A panicking detector is logged
// and skipped; the others still run.
func (s *Set) Evaluate(rec models.MetricRecord, store HistoryReader) []models.Alert {
	alerts := []models.Alert{}
	for _, d := range s.detectors {
		if alert, ok := s.run(d, rec, store); ok {
			alerts = append(alerts, alert)
		}
	}
	return alerts
}

func (s *Set) run(d Detector, rec models.MetricRecord, store HistoryReader) (alert models.Alert, ok bool) {
	start := time.Now()
	defer func() {
		telemetry.DetectorDuration.WithLabelValues(d.Name()).Observe(time.Since(start).Seconds())
		if r := recover(); r != nil {
			s.logger.Error("detector panicked",
				zap.String("detector", d.Name()),
				zap.String("agent_id", rec.AgentID),
				zap.String("panic", fmt.Sprint(r)),
			)
			alert, ok = models.Alert{}, false
		}
	}()
	return d.Detect(rec, store)
}

// tail returns at most the last n records
func tail(records []models.MetricRecord, n int) []models.MetricRecord {
	if n <= 0 || len(records) <= n {
		return records
	}
	return records[len(records)-n:]
}

// window is the agent's recent history, falling back to rec alone
func window(rec models.MetricRecord, store HistoryReader, n int) []models.MetricRecord {
	history := store.History(rec.AgentID)
	if len(history) == 0 {
		return []models.MetricRecord{rec}
	}
	return tail(history, n)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
