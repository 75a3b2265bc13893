package services

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"aegisnet/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesizeScenarios(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	tests := []struct {
		scenario Scenario
		check    func(t *testing.T, rec models.MetricRecord)
	}{
		{ScenarioNormal, func(t *testing.T, rec models.MetricRecord) {
			assert.Less(t, rec.CPUUsage, 50.0)
			assert.Less(t, rec.PacketsPerSec, 200.0)
		}},
		{ScenarioCPUSpike, func(t *testing.T, rec models.MetricRecord) {
			assert.Equal(t, 95.0, rec.CPUUsage)
		}},
		{ScenarioMemoryOverload, func(t *testing.T, rec models.MetricRecord) {
			assert.Equal(t, 95.0, rec.MemoryUsage)
			assert.Less(t, rec.MemoryAvailableGB, 1.0)
		}},
		{ScenarioDDoS, func(t *testing.T, rec models.MetricRecord) {
			assert.Greater(t, rec.PacketsPerSec, 300.0)
			assert.Greater(t, rec.BytesPerSec, 600000.0)
			assert.GreaterOrEqual(t, rec.DroppedPackets, 30.0)
		}},
		{ScenarioRogueAgent, func(t *testing.T, rec models.MetricRecord) {
			assert.Equal(t, "rogue_sim-1", rec.AgentID)
			last := rec.PerProcess[len(rec.PerProcess)-1]
			assert.Equal(t, "xmrig", last.Name)
			assert.Greater(t, last.CPU, 50.0)
		}},
	}
	for _, tt := range tests {
		t.Run(string(tt.scenario), func(t *testing.T) {
			rec, err := Synthesize(tt.scenario, "sim-1", rng, t0)
			require.NoError(t, err)
			require.NoError(t, rec.Validate())
			assert.Equal(t, t0, rec.Timestamp)
			tt.check(t, rec)
		})
	}

	_, err := Synthesize("meteor", "sim-1", rng, t0)
	assert.ErrorIs(t, err, ErrUnknownScenario)
}

type countingIngester struct {
	mu   sync.Mutex
	recs []models.MetricRecord
}

func (c *countingIngester) Submit(_ context.Context, rec models.MetricRecord) ([]models.Alert, error) {
	c.mu.Lock()
	c.recs = append(c.recs, rec)
	c.mu.Unlock()
	return nil, nil
}

func (c *countingIngester) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.recs)
}

func TestSimulatorRunsToCompletion(t *testing.T) {
	ing := &countingIngester{}
	sim := NewSimulator(ing, time.Millisecond, 10, 7, nil)

	id, err := sim.Start(context.Background(), ScenarioDDoS, "sim-1", 3)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		runs := sim.Runs()
		return len(runs) == 1 && runs[0].Done
	}, 2*time.Second, 5*time.Millisecond)

	runs := sim.Runs()
	assert.Equal(t, id, runs[0].ID)
	assert.Equal(t, 3, runs[0].Ticks)
	assert.Equal(t, 3, ing.count())
}

func TestSimulatorStop(t *testing.T) {
	ing := &countingIngester{}
	sim := NewSimulator(ing, time.Hour, 10, 7, nil)

	id, err := sim.Start(context.Background(), ScenarioNormal, "sim-1", 0)
	require.NoError(t, err)

	// the first tick is immediate, the second is an hour away
	require.Eventually(t, func() bool { return ing.count() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, sim.Stop(id))
	require.Eventually(t, func() bool { return sim.Runs()[0].Done }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 10, sim.Runs()[0].Duration)

	assert.ErrorIs(t, sim.Stop("missing"), ErrRunNotFound)
}

func TestSimulatorStartValidation(t *testing.T) {
	sim := NewSimulator(&countingIngester{}, time.Hour, 1, 7, nil)

	_, err := sim.Start(context.Background(), "meteor", "sim-1", 1)
	assert.ErrorIs(t, err, ErrUnknownScenario)

	_, err = sim.Start(context.Background(), ScenarioNormal, "", 1)
	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Empty(t, sim.Runs())
}

func TestSimulatorStopAllOnParentCancel(t *testing.T) {
	ing := &countingIngester{}
	sim := NewSimulator(ing, time.Hour, 5, 7, nil)
	ctx, cancel := context.WithCancel(context.Background())

	for i := 0; i < 3; i++ {
		_, err := sim.Start(ctx, ScenarioCPUSpike, "sim-1", 0)
		require.NoError(t, err)
	}
	cancel()
	sim.StopAll()

	for _, run := range sim.Runs() {
		assert.True(t, run.Done)
	}
}
