package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"aegisnet/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrUnknownScenario is returned for scenario names Synthesize does not know
	ErrUnknownScenario = errors.New("unknown simulation scenario")
	// ErrRunNotFound is returned when stopping a run that does not exist
	ErrRunNotFound = errors.New("simulation run not found")
)

// Scenario names a synthetic workload
type Scenario string

const (
	ScenarioNormal         Scenario = "normal"
	ScenarioCPUSpike       Scenario = "cpu_spike"
	ScenarioMemoryOverload Scenario = "memory_overload"
	ScenarioDDoS           Scenario = "ddos"
	ScenarioRogueAgent     Scenario = "rogue_agent"
)

// Scenarios lists every known scenario
func Scenarios() []Scenario {
	return []Scenario{ScenarioNormal, ScenarioCPUSpike, ScenarioMemoryOverload, ScenarioDDoS, ScenarioRogueAgent}
}

// attack injection applied on top of the baseline traffic
const (
	injectPackets = 300
	injectBytes   = 300 * 2000
	injectDropped = 30
)

// Synthesize builds one tick of scenario for agentID
func Synthesize(scenario Scenario, agentID string, rng *rand.Rand, ts time.Time) (models.MetricRecord, error) {
	between := func(lo, hi float64) float64 { return lo + rng.Float64()*(hi-lo) }

	rec := models.MetricRecord{
		AgentID:             agentID,
		Timestamp:           ts,
		CPUUsage:            between(10, 40),
		MemoryUsage:         between(30, 60),
		DiskUsage:           between(40, 60),
		MemoryAvailableGB:   between(4, 8),
		DiskFreeGB:          between(100, 200),
		NetworkSentMB:       between(0.1, 1),
		NetworkRecvMB:       between(0.1, 2),
		PacketsPerSec:       between(20, 150),
		BytesPerSec:         between(10000, 80000),
		DroppedPackets:      float64(rng.Intn(5)),
		OutboundConnections: 5 + rng.Intn(20),
		PerProcess: []models.ProcessSample{
			{Name: "systemd", CPU: between(0, 2)},
			{Name: "nginx", CPU: between(1, 10)},
			{Name: "python3", CPU: between(1, 15)},
		},
	}

	switch scenario {
	case ScenarioNormal:
	case ScenarioCPUSpike:
		rec.CPUUsage = 95
	case ScenarioMemoryOverload:
		rec.MemoryUsage = 95
		rec.MemoryAvailableGB = between(0.1, 0.5)
	case ScenarioDDoS:
		rec.PacketsPerSec += injectPackets
		rec.BytesPerSec += injectBytes
		rec.DroppedPackets += injectDropped
		rec.NetworkRecvMB += 100
	case ScenarioRogueAgent:
		rec.AgentID = "rogue_" + agentID
		rec.PerProcess = append(rec.PerProcess, models.ProcessSample{Name: "xmrig", CPU: between(60, 90)})
	default:
		return models.MetricRecord{}, fmt.Errorf("%w: %q", ErrUnknownScenario, scenario)
	}
	return rec, nil
}

// SimulationRun describes one background simulation
type SimulationRun struct {
	ID        string    `json:"id"`
	Scenario  Scenario  `json:"scenario"`
	AgentID   string    `json:"agent_id"`
	Duration  int       `json:"duration"`
	Ticks     int       `json:"ticks"`
	StartedAt time.Time `json:"started_at"`
	Done      bool      `json:"done"`
}

type simRun struct {
	info   SimulationRun
	cancel context.CancelFunc
}

// Simulator feeds synthetic records into an Ingester from background goroutines
type Simulator struct {
	ingest          Ingester
	interval        time.Duration
	defaultDuration int

	rngMu sync.Mutex
	rng   *rand.Rand

	mu   sync.Mutex
	runs map[string]*simRun
	wg   sync.WaitGroup

	logger *zap.Logger
}

// NewSimulator ticks every interval for defaultDuration ticks unless a run
// asks for another duration.
func NewSimulator(ingest Ingester, interval time.Duration, defaultDuration int, seed int64, logger *zap.Logger) *Simulator {
	if interval <= 0 {
		interval = time.Second
	}
	if defaultDuration <= 0 {
		defaultDuration = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{
		ingest:          ingest,
		interval:        interval,
		defaultDuration: defaultDuration,
		rng:             rand.New(rand.NewSource(seed)),
		runs:            make(map[string]*simRun),
		logger:          logger,
	}
}

// Start launches a run that lasts until its ticks are spent, Stop is
// called, or parent is cancelled.
func (s *Simulator) Start(parent context.Context, scenario Scenario, agentID string, duration int) (string, error) {
	if agentID == "" {
		return "", &models.ValidationError{Field: "agent_id", Reason: "is required"}
	}
	if _, err := s.synthesize(scenario, agentID); err != nil {
		return "", err
	}
	if duration <= 0 {
		duration = s.defaultDuration
	}

	ctx, cancel := context.WithCancel(parent)
	run := &simRun{
		info: SimulationRun{
			ID:        uuid.NewString(),
			Scenario:  scenario,
			AgentID:   agentID,
			Duration:  duration,
			StartedAt: time.Now(),
		},
		cancel: cancel,
	}

	s.mu.Lock()
	s.runs[run.info.ID] = run
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx, run)

	s.logger.Info("simulation started",
		zap.String("run_id", run.info.ID),
		zap.String("scenario", string(scenario)),
		zap.String("agent_id", agentID),
		zap.Int("duration", duration),
	)
	return run.info.ID, nil
}

func (s *Simulator) loop(ctx context.Context, run *simRun) {
	defer s.wg.Done()
	defer func() {
		run.cancel()
		s.mu.Lock()
		run.info.Done = true
		s.mu.Unlock()
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for i := 0; i < run.info.Duration; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
		if ctx.Err() != nil {
			return
		}

		rec, err := s.synthesize(run.info.Scenario, run.info.AgentID)
		if err != nil {
			s.logger.Error("simulation synthesize failed", zap.String("run_id", run.info.ID), zap.Error(err))
			return
		}
		alerts, err := s.ingest.Submit(ctx, rec)
		if err != nil {
			s.logger.Warn("simulated record rejected", zap.String("run_id", run.info.ID), zap.Error(err))
		} else if len(alerts) > 0 {
			s.logger.Debug("simulated tick raised alerts", zap.String("run_id", run.info.ID), zap.Int("alerts", len(alerts)))
		}

		s.mu.Lock()
		run.info.Ticks++
		s.mu.Unlock()
	}
}

func (s *Simulator) synthesize(scenario Scenario, agentID string) (models.MetricRecord, error) {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return Synthesize(scenario, agentID, s.rng, time.Now())
}

// Stop cancels a run
func (s *Simulator) Stop(id string) error {
	s.mu.Lock()
	run, ok := s.runs[id]
	s.mu.Unlock()
	if !ok {
		return ErrRunNotFound
	}
	run.cancel()
	return nil
}

// StopAll cancels every run and waits for their goroutines to exit
func (s *Simulator) StopAll() {
	s.mu.Lock()
	for _, run := range s.runs {
		run.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Runs lists all runs, newest first
func (s *Simulator) Runs() []SimulationRun {
	s.mu.Lock()
	out := make([]SimulationRun, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run.info)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}
