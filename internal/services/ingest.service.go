package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"aegisnet/internal/detectors"
	"aegisnet/internal/models"
	"aegisnet/internal/remediation"
	"aegisnet/internal/telemetry"

	"go.uber.org/zap"
)

// Ingester is the submit_metric contract shared by agents, simulations and HTTP
type Ingester interface {
	Submit(ctx context.Context, rec models.MetricRecord) ([]models.Alert, error)
}

type cooldownKey struct {
	agentID string
	alert   models.AlertType
}

// Pipeline validates, stores, evaluates and remediates incoming records
type Pipeline struct {
	store     *Store
	detectors *detectors.Set
	engine    *remediation.Engine

	cooldown   time.Duration
	cooldownMu sync.Mutex
	lastRun    map[cooldownKey]time.Time

	events EventPublisher
	now    func() time.Time
	logger *zap.Logger
}

// PipelineOption configures a Pipeline
type PipelineOption func(*Pipeline)

// WithRemediation enables automated remediation through engine
func WithRemediation(engine *remediation.Engine) PipelineOption {
	return func(p *Pipeline) {
		p.engine = engine
	}
}

// WithCooldown suppresses repeat remediation of the same alert type for the
// same agent within d. Zero disables suppression.
func WithCooldown(d time.Duration) PipelineOption {
	return func(p *Pipeline) {
		p.cooldown = d
	}
}

// WithEvents publishes alerts and actions to pub
func WithEvents(pub EventPublisher) PipelineOption {
	return func(p *Pipeline) {
		if pub != nil {
			p.events = pub
		}
	}
}

// WithClock overrides the receipt-time source
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		p.now = now
	}
}

// WithPipelineLogger sets the pipeline logger
func WithPipelineLogger(l *zap.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// NewPipeline wires the store and detector set; remediation is off unless
// WithRemediation is given.
func NewPipeline(store *Store, set *detectors.Set, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		store:     store,
		detectors: set,
		lastRun:   make(map[cooldownKey]time.Time),
		events:    nopPublisher{},
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Store returns the backing historical store
func (p *Pipeline) Store() *Store {
	return p.store
}

// Submit runs one record through the pipeline and returns its alerts.
// An invalid record returns a *models.ValidationError and leaves the store
// untouched. Remediation failures are logged and never returned.
func (p *Pipeline) Submit(ctx context.Context, rec models.MetricRecord) ([]models.Alert, error) {
	rec = rec.Clone()
	if err := rec.Validate(); err != nil {
		telemetry.IngestTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}
	rec.Normalize(p.now())

	p.store.Record(rec)
	telemetry.IngestTotal.WithLabelValues("accepted").Inc()
	telemetry.TrackedAgents.Set(float64(p.store.AgentCount()))

	alerts := p.detectors.Evaluate(rec, p.store)

	for _, alert := range alerts {
		p.store.LogAlert(alert)
		telemetry.AlertsTotal.WithLabelValues(string(alert.Type)).Inc()
		p.events.Publish(Event{Type: EventAlert, Timestamp: alert.Timestamp, Data: alert})
		p.logger.Info("alert raised",
			zap.String("type", string(alert.Type)),
			zap.String("agent_id", alert.AgentID),
			zap.String("alert_id", alert.ID),
		)
	}

	if p.engine != nil {
		for _, alert := range alerts {
			p.remediate(ctx, alert)
		}
	}
	return alerts, nil
}

// remediate executes and logs the action mapped to alert, if any
func (p *Pipeline) remediate(ctx context.Context, alert models.Alert) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("remediation panicked", zap.String("alert_id", alert.ID), zap.String("panic", fmt.Sprint(r)))
		}
	}()

	action, ok := p.engine.Remediate(alert)
	if !ok {
		return
	}
	if !p.allow(alert) {
		p.logger.Debug("remediation suppressed by cooldown",
			zap.String("type", string(alert.Type)),
			zap.String("agent_id", alert.AgentID),
		)
		return
	}

	if err := p.engine.Execute(ctx, action); err != nil {
		action.Status = models.ActionFailed
		var failure *remediation.Failure
		if errors.As(err, &failure) {
			p.logger.Warn("remediation failed",
				zap.String("action", failure.Action),
				zap.String("target", failure.Target),
				zap.Error(failure.Err),
			)
		} else {
			p.logger.Warn("remediation failed", zap.String("action", action.Action), zap.Error(err))
		}
	}

	p.store.LogAction(action)
	telemetry.ActionsTotal.WithLabelValues(action.Action, action.Status).Inc()
	p.events.Publish(Event{Type: EventAction, Timestamp: action.Timestamp, Data: action})
}

// allow applies the per-agent, per-type cooldown
func (p *Pipeline) allow(alert models.Alert) bool {
	if p.cooldown <= 0 {
		return true
	}
	key := cooldownKey{agentID: alert.AgentID, alert: alert.Type}
	now := p.now()

	p.cooldownMu.Lock()
	defer p.cooldownMu.Unlock()
	if last, ok := p.lastRun[key]; ok && now.Sub(last) < p.cooldown {
		return false
	}
	p.lastRun[key] = now
	return true
}

// LogOperatorAction records an action taken by a human operator
func (p *Pipeline) LogOperatorAction(name, target string) (models.Action, error) {
	if name == "" {
		return models.Action{}, &models.ValidationError{Field: "action", Reason: "is required"}
	}
	action := models.NewAction(name, target, p.now())
	action.Status = models.ActionManual
	p.store.LogAction(action)
	telemetry.ActionsTotal.WithLabelValues(action.Action, action.Status).Inc()
	p.events.Publish(Event{Type: EventAction, Timestamp: action.Timestamp, Data: action})
	return action, nil
}
