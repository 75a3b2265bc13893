package detectors

import (
	"aegisnet/internal/models"
)

// TrendSpike splits the last samples values into two halves and reports
// whether the newer half's mean exceeds factor times the older half's.
// Fewer than samples values never fire.
func TrendSpike(values []float64, samples int, factor float64) (recent, previous float64, fired bool) {
	if samples < 2 || len(values) < samples {
		return 0, 0, false
	}
	values = values[len(values)-samples:]
	half := samples / 2
	previous = mean(values[len(values)-2*half : len(values)-half])
	recent = mean(values[len(values)-half:])
	return recent, previous, recent > factor*previous
}

func series(records []models.MetricRecord, field func(models.MetricRecord) float64) []float64 {
	out := make([]float64, len(records))
	for i, r := range records {
		out[i] = field(r)
	}
	return out
}

// PredictedTrafficDetector forecasts a traffic surge from sent+recv volume
type PredictedTrafficDetector struct {
	Samples int
	Factor  float64
}

func (d PredictedTrafficDetector) Name() string { return "predicted_traffic" }

func (d PredictedTrafficDetector) Detect(rec models.MetricRecord, store HistoryReader) (models.Alert, bool) {
	history := tail(store.History(rec.AgentID), d.Samples)
	recent, previous, fired := TrendSpike(series(history, models.MetricRecord.TotalTrafficMB), d.Samples, d.Factor)
	if !fired {
		return models.Alert{}, false
	}
	return models.MustAlert(rec.AgentID, models.PredictedTrafficDetails{
		PredictedTraffic: recent,
		PreviousTraffic:  previous,
	}, rec.Timestamp), true
}

// PredictedCPUDetector forecasts CPU exhaustion from the usage trend
type PredictedCPUDetector struct {
	Samples int
	Factor  float64
}

func (d PredictedCPUDetector) Name() string { return "predicted_cpu" }

func (d PredictedCPUDetector) Detect(rec models.MetricRecord, store HistoryReader) (models.Alert, bool) {
	history := tail(store.History(rec.AgentID), d.Samples)
	cpu := series(history, func(r models.MetricRecord) float64 { return r.CPUUsage })
	recent, previous, fired := TrendSpike(cpu, d.Samples, d.Factor)
	if !fired {
		return models.Alert{}, false
	}
	return models.MustAlert(rec.AgentID, models.PredictedCPUDetails{
		PredictedCPU: recent,
		PreviousCPU:  previous,
	}, rec.Timestamp), true
}
