package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"aegisnet/internal/detectors"
	"aegisnet/internal/models"
	"aegisnet/internal/remediation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingPublisher) Publish(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func newTestPipeline(t *testing.T, opts ...PipelineOption) (*Pipeline, *Store) {
	t.Helper()
	cfg := detectors.DefaultConfig()
	cfg.MLEnabled = false
	store := NewStore(100)
	require.NoError(t, store.RegisterProfile(models.AgentProfile{AgentID: "web-1"}))
	return NewPipeline(store, detectors.NewStandardSet(cfg, nil), opts...), store
}

func TestSubmitQuietRecord(t *testing.T) {
	p, store := newTestPipeline(t)

	alerts, err := p.Submit(context.Background(), models.MetricRecord{AgentID: "web-1", CPUUsage: 12, Timestamp: t0})
	require.NoError(t, err)
	assert.Empty(t, alerts)
	assert.Len(t, store.History("web-1"), 1)
	assert.Empty(t, store.ListAlerts())
}

func TestSubmitClampsCounterReset(t *testing.T) {
	p, store := newTestPipeline(t)

	_, err := p.Submit(context.Background(), models.MetricRecord{
		AgentID:        "web-1",
		CPUUsage:       140,
		PacketsPerSec:  -3000,
		NetworkRecvMB:  -2,
		DroppedPackets: -1,
		Timestamp:      t0,
	})
	require.NoError(t, err)

	rec, ok := store.Latest("web-1")
	require.True(t, ok)
	assert.Equal(t, 100.0, rec.CPUUsage)
	assert.Zero(t, rec.PacketsPerSec)
	assert.Zero(t, rec.NetworkRecvMB)
	assert.Zero(t, rec.DroppedPackets)
}

func TestSubmitInvalidLeavesStoreUntouched(t *testing.T) {
	p, store := newTestPipeline(t)

	_, err := p.Submit(context.Background(), models.MetricRecord{AgentID: "web-1", CPUUsage: math.NaN()})
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "cpu_usage", verr.Field)

	_, err = p.Submit(context.Background(), models.MetricRecord{})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "agent_id", verr.Field)

	assert.Empty(t, store.History("web-1"))
	assert.Empty(t, store.ListAlerts())
}

func TestSubmitFillsMissingTimestamp(t *testing.T) {
	p, store := newTestPipeline(t, WithClock(func() time.Time { return t0 }))

	_, err := p.Submit(context.Background(), models.MetricRecord{AgentID: "web-1"})
	require.NoError(t, err)
	rec, _ := store.Latest("web-1")
	assert.Equal(t, t0, rec.Timestamp)
}

func TestSubmitUnrecognizedAgentIsStillStored(t *testing.T) {
	p, store := newTestPipeline(t)

	alerts, err := p.Submit(context.Background(), models.MetricRecord{AgentID: "ghost", Timestamp: t0})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertUnrecognizedAgent, alerts[0].Type)
	assert.Len(t, store.History("ghost"), 1)
	assert.Len(t, store.ListAlerts(), 1)
}

func TestSubmitCPUSpikeOffloads(t *testing.T) {
	events := &recordingPublisher{}
	p, store := newTestPipeline(t, WithRemediation(remediation.NewEngine(nil)), WithEvents(events))

	alerts, err := p.Submit(context.Background(), models.MetricRecord{AgentID: "web-1", CPUUsage: 95, Timestamp: t0})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertCPUSpike, alerts[0].Type)

	actions := store.ListActions()
	require.Len(t, actions, 1)
	assert.Equal(t, remediation.ActionOffload, actions[0].Action)
	assert.Equal(t, "web-1", actions[0].Target)
	assert.Equal(t, alerts[0].ID, actions[0].AlertID)
	assert.Equal(t, models.ActionAttempted, actions[0].Status)

	assert.Equal(t, []string{EventAlert, EventAction}, events.types())
}

func TestRemediationFailureDoesNotRollBack(t *testing.T) {
	engine := remediation.NewEngine(nil)
	engine.RegisterPrimitive(remediation.ActionOffload, func(context.Context, string) error {
		return errors.New("scheduler unreachable")
	})
	p, store := newTestPipeline(t, WithRemediation(engine))

	alerts, err := p.Submit(context.Background(), models.MetricRecord{AgentID: "web-1", CPUUsage: 99, Timestamp: t0})
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	assert.Len(t, store.History("web-1"), 1)
	assert.Len(t, store.ListAlerts(), 1)
	actions := store.ListActions()
	require.Len(t, actions, 1)
	assert.Equal(t, models.ActionFailed, actions[0].Status)
}

func TestRemediationPanicIsContained(t *testing.T) {
	engine := remediation.NewEngine(nil)
	engine.RegisterPrimitive(remediation.ActionOffload, func(context.Context, string) error {
		panic("boom")
	})
	p, store := newTestPipeline(t, WithRemediation(engine))

	_, err := p.Submit(context.Background(), models.MetricRecord{AgentID: "web-1", CPUUsage: 99, Timestamp: t0})
	require.NoError(t, err)
	assert.Len(t, store.ListAlerts(), 1)
}

func TestRemediationCooldown(t *testing.T) {
	now := t0
	p, store := newTestPipeline(t,
		WithRemediation(remediation.NewEngine(nil)),
		WithCooldown(time.Minute),
		WithClock(func() time.Time { return now }),
	)
	spike := models.MetricRecord{AgentID: "web-1", CPUUsage: 97}

	for i := 0; i < 3; i++ {
		_, err := p.Submit(context.Background(), spike)
		require.NoError(t, err)
		now = now.Add(10 * time.Second)
	}
	assert.Len(t, store.ListAlerts(), 3)
	assert.Len(t, store.ListActions(), 1)

	now = now.Add(time.Minute)
	_, err := p.Submit(context.Background(), spike)
	require.NoError(t, err)
	assert.Len(t, store.ListActions(), 2)
}

func TestWithoutCooldownEveryAlertRemediates(t *testing.T) {
	p, store := newTestPipeline(t, WithRemediation(remediation.NewEngine(nil)))
	spike := models.MetricRecord{AgentID: "web-1", CPUUsage: 97, Timestamp: t0}

	for i := 0; i < 2; i++ {
		_, err := p.Submit(context.Background(), spike)
		require.NoError(t, err)
	}
	actions := store.ListActions()
	require.Len(t, actions, 2)
	assert.NotEqual(t, actions[0].ID, actions[1].ID)
}

func TestLogOperatorAction(t *testing.T) {
	p, store := newTestPipeline(t, WithClock(func() time.Time { return t0 }))

	action, err := p.LogOperatorAction("block_ip", "10.0.0.9")
	require.NoError(t, err)
	assert.Equal(t, models.ActionManual, action.Status)
	assert.Equal(t, t0, action.Timestamp)
	assert.Len(t, store.ListActions(), 1)

	_, err = p.LogOperatorAction("", "x")
	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)
}

type slowJournal struct {
	delay time.Duration

	mu     sync.Mutex
	alerts int
}

func (j *slowJournal) ArchiveAlert(context.Context, models.Alert) error {
	time.Sleep(j.delay)
	j.mu.Lock()
	j.alerts++
	j.mu.Unlock()
	return nil
}

func (j *slowJournal) ArchiveAction(context.Context, models.Action) error {
	time.Sleep(j.delay)
	return nil
}

func TestSubmitDoesNotWaitForJournal(t *testing.T) {
	journal := &slowJournal{delay: 300 * time.Millisecond}
	store := NewStore(100, WithJournal(journal))
	cfg := detectors.DefaultConfig()
	cfg.MLEnabled = false
	p := NewPipeline(store, detectors.NewStandardSet(cfg, nil), WithRemediation(remediation.NewEngine(nil)))

	start := time.Now()
	alerts, err := p.Submit(context.Background(), models.MetricRecord{AgentID: "ghost", CPUUsage: 95, Timestamp: t0})
	elapsed := time.Since(start)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Less(t, elapsed, 150*time.Millisecond)

	store.Close()
	assert.Equal(t, 2, journal.alerts)
}

func TestConcurrentSubmitAndRead(t *testing.T) {
	p, store := newTestPipeline(t)
	ctx := context.Background()

	const (
		writers  = 6
		perAgent = 150
	)
	agentID := func(w int) string { return fmt.Sprintf("agent-%d", w) }

	var raised atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perAgent; i++ {
				cpu := 20.0
				if i%10 == 0 {
					cpu = 95
				}
				alerts, err := p.Submit(ctx, models.MetricRecord{
					AgentID:   agentID(w),
					CPUUsage:  cpu,
					Timestamp: t0.Add(time.Duration(i) * time.Second),
				})
				if !assert.NoError(t, err) {
					return
				}
				raised.Add(int64(len(alerts)))
			}
		}(w)
	}

	stop := make(chan struct{})
	var readers sync.WaitGroup
	for r := 0; r < 2; r++ {
		readers.Add(1)
		go func(r int) {
			defer readers.Done()
			for n := 0; ; n++ {
				select {
				case <-stop:
					return
				default:
				}
				history := store.History(agentID((n + r) % writers))
				assert.LessOrEqual(t, len(history), store.Capacity())
				for i := 1; i < len(history); i++ {
					assert.True(t, history[i-1].Timestamp.Before(history[i].Timestamp))
				}
				store.ListAlerts()
				store.LatestAll()
			}
		}(r)
	}

	wg.Wait()
	close(stop)
	readers.Wait()

	assert.Equal(t, int(raised.Load()), len(store.ListAlerts()))
	for w := 0; w < writers; w++ {
		history := store.History(agentID(w))
		require.Len(t, history, store.Capacity())
		assert.Equal(t, t0.Add(time.Duration(perAgent-1)*time.Second), history[len(history)-1].Timestamp)
		assert.Equal(t, t0.Add(time.Duration(perAgent-store.Capacity())*time.Second), history[0].Timestamp)
	}
}
