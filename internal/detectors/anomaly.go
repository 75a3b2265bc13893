package detectors

import (
	"sync"
	"time"

	"aegisnet/internal/ml"
	"aegisnet/internal/models"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const mlMaxSubSample = 256

// MLConfig tunes the isolation-forest CPU detector
type MLConfig struct {
	MinSamples    int
	Contamination float64
	Trees         int
	Seed          int64
	// RefitInterval bounds how often one agent's model is rebuilt; between
	// refits the cached model scores new points. Zero refits every time.
	RefitInterval time.Duration
}

type agentModel struct {
	limiter   *rate.Limiter
	forest    *ml.IsolationForest
	threshold float64
	samples   int
}

// MLAnomalyDetector labels the newest CPU sample an outlier when its
// isolation score is above the contamination quantile of the training set.
type MLAnomalyDetector struct {
	cfg    MLConfig
	logger *zap.Logger

	mu     sync.Mutex
	models map[string]*agentModel
}

// NewMLAnomalyDetector builds the detector with per-agent model caches
func NewMLAnomalyDetector(cfg MLConfig, logger *zap.Logger) *MLAnomalyDetector {
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = 10
	}
	if cfg.Contamination <= 0 || cfg.Contamination >= 0.5 {
		cfg.Contamination = 0.05
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MLAnomalyDetector{
		cfg:    cfg,
		logger: logger,
		models: make(map[string]*agentModel),
	}
}

func (d *MLAnomalyDetector) Name() string { return "ml_anomaly" }

func (d *MLAnomalyDetector) Detect(rec models.MetricRecord, store HistoryReader) (models.Alert, bool) {
	history := store.History(rec.AgentID)
	if len(history) < d.cfg.MinSamples {
		return models.Alert{}, false
	}

	m := d.model(rec.AgentID)

	d.mu.Lock()
	// the first fit spends the limiter token too
	allowed := m.limiter == nil || m.limiter.Allow()
	if m.forest == nil || allowed {
		if err := d.fit(m, history); err != nil {
			d.mu.Unlock()
			d.logger.Warn("isolation forest fit failed", zap.String("agent_id", rec.AgentID), zap.Error(err))
			return models.Alert{}, false
		}
	}
	score := m.forest.Score(ml.Point{rec.CPUUsage})
	threshold, samples := m.threshold, m.samples
	d.mu.Unlock()

	if score <= threshold {
		return models.Alert{}, false
	}
	return models.MustAlert(rec.AgentID, models.MLAnomalyDetails{
		CPU:       rec.CPUUsage,
		Score:     score,
		Threshold: threshold,
		Samples:   samples,
	}, rec.Timestamp), true
}

func (d *MLAnomalyDetector) model(agentID string) *agentModel {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.models[agentID]
	if !ok {
		m = &agentModel{}
		if d.cfg.RefitInterval > 0 {
			m.limiter = rate.NewLimiter(rate.Every(d.cfg.RefitInterval), 1)
		}
		d.models[agentID] = m
	}
	return m
}

// fit rebuilds m from the CPU series; callers hold d.mu
func (d *MLAnomalyDetector) fit(m *agentModel, history []models.MetricRecord) error {
	points := make([]ml.Point, len(history))
	for i, r := range history {
		points[i] = ml.Point{r.CPUUsage}
	}
	forest := ml.NewIsolationForest(d.cfg.Trees, mlMaxSubSample, 0, d.cfg.Seed)
	if err := forest.Fit(points); err != nil {
		return err
	}
	m.forest = forest
	m.threshold = ml.Percentile(forest.Scores(points), 100*(1-d.cfg.Contamination))
	m.samples = len(points)
	return nil
}
