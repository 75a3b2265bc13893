// Package remediation maps alerts to actions and runs the action primitives.
package remediation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"aegisnet/internal/models"

	"go.uber.org/zap"
)

// Primitive names
const (
	ActionOffload         = "offload"
	ActionIsolateEndpoint = "isolate_endpoint"
	ActionRerouteTraffic  = "reroute_traffic"
	ActionScaleUp         = "scale_up_resources"
)

// ErrUnknownPrimitive is wrapped by Failure when no primitive has the action's name
var ErrUnknownPrimitive = errors.New("unknown remediation primitive")

// Failure reports a primitive that did not complete
type Failure struct {
	Action string
	Target string
	Err    error
}

func (f *Failure) Error() string {
	if f.Target == "" {
		return fmt.Sprintf("remediation %s failed: %v", f.Action, f.Err)
	}
	return fmt.Sprintf("remediation %s on %s failed: %v", f.Action, f.Target, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Producer builds the action for an alert, or reports that none applies
type Producer func(alert models.Alert) (models.Action, bool)

// Primitive carries out a named action against target
type Primitive func(ctx context.Context, target string) error

// Engine dispatches alerts through a type-keyed table
type Engine struct {
	mu         sync.RWMutex
	table      map[models.AlertType]Producer
	primitives map[string]Primitive
	now        func() time.Time
	logger     *zap.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithClock overrides the action timestamp source
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine returns an engine with the default table and primitives
func NewEngine(logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		table:      make(map[models.AlertType]Producer),
		primitives: make(map[string]Primitive),
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.Register(models.AlertCPUSpike, e.offload)
	for name, fn := range defaultPrimitives(logger) {
		e.RegisterPrimitive(name, fn)
	}
	return e
}

// Register maps an alert type to a producer, replacing any previous mapping
func (e *Engine) Register(t models.AlertType, p Producer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.table[t] = p
}

// RegisterPrimitive installs or replaces the primitive called name
func (e *Engine) RegisterPrimitive(name string, fn Primitive) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.primitives[name] = fn
}

// Primitives lists the installed primitive names
func (e *Engine) Primitives() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.primitives))
	for name := range e.primitives {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Remediate returns the action mapped to alert's type. Every call yields a
// fresh action; repeated alerts are not deduplicated here.
func (e *Engine) Remediate(alert models.Alert) (models.Action, bool) {
	e.mu.RLock()
	p, ok := e.table[alert.Type]
	e.mu.RUnlock()
	if !ok {
		return models.Action{}, false
	}
	action, ok := p(alert)
	if !ok {
		return models.Action{}, false
	}
	action.AlertID = alert.ID
	if action.Status == "" {
		action.Status = models.ActionAttempted
	}
	return action, true
}

// Execute runs the primitive named by action. Errors and panics come back
// as *Failure.
func (e *Engine) Execute(ctx context.Context, action models.Action) (err error) {
	e.mu.RLock()
	fn, ok := e.primitives[action.Action]
	e.mu.RUnlock()
	if !ok {
		return &Failure{Action: action.Action, Target: action.Target, Err: ErrUnknownPrimitive}
	}

	defer func() {
		if r := recover(); r != nil {
			err = &Failure{Action: action.Action, Target: action.Target, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if err := fn(ctx, action.Target); err != nil {
		return &Failure{Action: action.Action, Target: action.Target, Err: err}
	}
	return nil
}

// Invoke runs a primitive directly, outside the alert table
func (e *Engine) Invoke(ctx context.Context, name, target string) (models.Action, error) {
	action := models.NewAction(name, target, e.now())
	action.Status = models.ActionAttempted
	if err := e.Execute(ctx, action); err != nil {
		action.Status = models.ActionFailed
		return action, err
	}
	return action, nil
}

// offload moves work away from the agent named in a CPU spike
func (e *Engine) offload(alert models.Alert) (models.Action, bool) {
	target := alert.AgentID
	if d, ok := alert.Details.(models.CPUSpikeDetails); ok && d.AgentID != "" {
		target = d.AgentID
	}
	return models.NewAction(ActionOffload, target, e.now()), true
}
