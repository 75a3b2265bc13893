package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Agent periodically collects the local host and submits it for ingestion
type Agent struct {
	collector *HostCollector
	ingest    Ingester
	interval  time.Duration
	logger    *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewAgent submits one record every interval
func NewAgent(collector *HostCollector, ingest Ingester, interval time.Duration, logger *zap.Logger) *Agent {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{collector: collector, ingest: ingest, interval: interval, logger: logger}
}

// Start runs the collection loop until Stop or ctx is cancelled
func (a *Agent) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return
	}
	ctx, a.cancel = context.WithCancel(ctx)
	a.running = true

	a.wg.Add(1)
	go a.loop(ctx)
	a.logger.Info("host agent started", zap.String("agent_id", a.collector.agentID), zap.Duration("interval", a.interval))
}

// Stop cancels the loop and waits for it to exit
func (a *Agent) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.cancel()
	a.running = false
	a.mu.Unlock()

	a.wg.Wait()
	a.logger.Info("host agent stopped")
}

func (a *Agent) loop(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

func (a *Agent) tick(ctx context.Context) {
	rec, err := a.collector.Collect(ctx)
	if err != nil {
		a.logger.Warn("host collection failed", zap.Error(err))
		return
	}
	if _, err := a.ingest.Submit(ctx, rec); err != nil {
		a.logger.Warn("host record rejected", zap.Error(err))
	}
}
