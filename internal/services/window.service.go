package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"

	"aegisnet/internal/detectors"
	"aegisnet/internal/models"
	"aegisnet/internal/remediation"
	"aegisnet/internal/telemetry"

	"go.uber.org/zap"
)

var windowFilePattern = regexp.MustCompile(`^window_(\d+)\.json$`)

// windowResponse is the fixed response to a DDoS window, in order
var windowResponse = []string{
	remediation.ActionIsolateEndpoint,
	remediation.ActionRerouteTraffic,
	remediation.ActionScaleUp,
}

// WindowConfig tunes the window monitor
type WindowConfig struct {
	Size       int
	LogDir     string
	Thresholds detectors.Thresholds
}

// ActionLog receives the actions taken for attack windows
type ActionLog interface {
	LogAction(action models.Action)
}

// WindowMonitor groups each agent's accepted records into fixed-size
// windows, judges every full window with the fixed-threshold rule and
// writes it to <LogDir>/window_<n>.json.
type WindowMonitor struct {
	next    Ingester
	cfg     WindowConfig
	flags   *AttackFlagStore
	engine  *remediation.Engine
	actions ActionLog

	mu      sync.Mutex
	pending map[string][]models.MetricRecord
	counter int

	events EventPublisher
	now    func() time.Time
	logger *zap.Logger
}

// WindowOption configures a WindowMonitor
type WindowOption func(*WindowMonitor)

// WithWindowEvents publishes each closed window to pub
func WithWindowEvents(pub EventPublisher) WindowOption {
	return func(w *WindowMonitor) {
		if pub != nil {
			w.events = pub
		}
	}
}

// WithWindowClock overrides the window timestamp source
func WithWindowClock(now func() time.Time) WindowOption {
	return func(w *WindowMonitor) {
		w.now = now
	}
}

// WithWindowLogger sets the monitor logger
func WithWindowLogger(l *zap.Logger) WindowOption {
	return func(w *WindowMonitor) {
		w.logger = l
	}
}

// NewWindowMonitor wraps next. Window numbering resumes after the highest
// window file already in LogDir.
func NewWindowMonitor(next Ingester, cfg WindowConfig, flags *AttackFlagStore, engine *remediation.Engine, actions ActionLog, opts ...WindowOption) (*WindowMonitor, error) {
	if cfg.Size <= 0 {
		cfg.Size = 3
	}
	if cfg.LogDir == "" {
		cfg.LogDir = "logs"
	}
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("create window log dir: %w", err)
	}
	last, err := highestWindow(cfg.LogDir)
	if err != nil {
		return nil, err
	}

	w := &WindowMonitor{
		next:    next,
		cfg:     cfg,
		flags:   flags,
		engine:  engine,
		actions: actions,
		pending: make(map[string][]models.MetricRecord),
		counter: last,
		events:  nopPublisher{},
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Submit stamps a missing timestamp, forwards rec and, once it is accepted,
// adds it to the agent's open window. The store and the window log see the
// same receipt time.
func (w *WindowMonitor) Submit(ctx context.Context, rec models.MetricRecord) ([]models.Alert, error) {
	rec = rec.Clone()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = w.now()
	}
	alerts, err := w.next.Submit(ctx, rec)
	if err != nil {
		return alerts, err
	}
	rec.Normalize(rec.Timestamp)

	w.mu.Lock()
	w.pending[rec.AgentID] = append(w.pending[rec.AgentID], rec)
	var full []models.MetricRecord
	if len(w.pending[rec.AgentID]) >= w.cfg.Size {
		full = w.pending[rec.AgentID]
		delete(w.pending, rec.AgentID)
	}
	w.mu.Unlock()

	if full != nil {
		if _, err := w.closeWindow(ctx, rec.AgentID, full); err != nil {
			w.logger.Warn("window close failed", zap.String("agent_id", rec.AgentID), zap.Error(err))
		}
	}
	return alerts, nil
}

// closeWindow judges and persists one full window
func (w *WindowMonitor) closeWindow(ctx context.Context, agentID string, samples []models.MetricRecord) (models.WindowLog, error) {
	counts := detectors.CountSpikes(samples, w.cfg.Thresholds)
	attack := counts.Attack()
	now := w.now()

	metrics := make([]models.WindowSample, len(samples))
	for i, r := range samples {
		metrics[i] = models.WindowSample{
			Timestamp: models.ISOTime(r.Timestamp),
			Packets:   r.PacketsPerSec,
			Bytes:     r.BytesPerSec,
			Dropped:   r.DroppedPackets,
		}
	}

	w.mu.Lock()
	w.counter++
	entry := models.WindowLog{
		Window:         w.counter,
		AgentID:        agentID,
		Timestamp:      models.ISOTime(now),
		Metrics:        metrics,
		AttackDetected: attack,
	}
	err := w.writeLog(entry)
	w.mu.Unlock()

	telemetry.WindowsTotal.WithLabelValues(strconv.FormatBool(attack)).Inc()
	w.events.Publish(Event{Type: EventWindow, Timestamp: now, Data: entry})

	if attack {
		w.logger.Warn("ddos window detected",
			zap.Int("window", entry.Window),
			zap.String("agent_id", agentID),
			zap.Int("packet_spikes", counts.Packets),
			zap.Int("byte_spikes", counts.Bytes),
			zap.Int("drop_spikes", counts.Drops),
		)
		w.respond(ctx, agentID)
		if w.flags != nil {
			if ferr := w.flags.Set(now); ferr != nil {
				w.logger.Error("attack flag write failed", zap.Error(ferr))
			}
		}
	}
	return entry, err
}

// respond runs the window attack primitives; failures do not stop the rest
func (w *WindowMonitor) respond(ctx context.Context, agentID string) {
	if w.engine == nil {
		return
	}
	for _, name := range windowResponse {
		action, err := w.engine.Invoke(ctx, name, agentID)
		if err != nil {
			w.logger.Warn("window remediation failed", zap.String("action", name), zap.Error(err))
		}
		if w.actions != nil {
			w.actions.LogAction(action)
		}
		telemetry.ActionsTotal.WithLabelValues(action.Action, action.Status).Inc()
		w.events.Publish(Event{Type: EventAction, Timestamp: action.Timestamp, Data: action})
	}
}

func (w *WindowMonitor) writeLog(entry models.WindowLog) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(w.cfg.LogDir, fmt.Sprintf("window_%d.json", entry.Window))
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("write window log: %w", err)
	}
	return nil
}

// LatestWindow reads the highest-numbered window log
func (w *WindowMonitor) LatestWindow() (models.WindowLog, bool, error) {
	return LatestWindowLog(w.cfg.LogDir)
}

// LatestWindowLog reads the highest-numbered window file in dir
func LatestWindowLog(dir string) (models.WindowLog, bool, error) {
	n, err := highestWindow(dir)
	if err != nil || n == 0 {
		return models.WindowLog{}, false, err
	}
	data, err := os.ReadFile(filepath.Join(dir, fmt.Sprintf("window_%d.json", n)))
	if err != nil {
		return models.WindowLog{}, false, fmt.Errorf("read window log: %w", err)
	}
	var entry models.WindowLog
	if err := json.Unmarshal(data, &entry); err != nil {
		return models.WindowLog{}, false, fmt.Errorf("decode window log: %w", err)
	}
	return entry, true, nil
}

// highestWindow returns the largest n of window_<n>.json in dir, 0 if none
func highestWindow(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("scan window logs: %w", err)
	}
	highest := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := windowFilePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > highest {
			highest = n
		}
	}
	return highest, nil
}
