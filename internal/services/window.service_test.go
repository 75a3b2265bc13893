package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"aegisnet/internal/detectors"
	"aegisnet/internal/models"
	"aegisnet/internal/remediation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type windowFixture struct {
	monitor *WindowMonitor
	store   *Store
	flags   *AttackFlagStore
	dir     string
	events  *recordingPublisher
}

func newWindowFixture(t *testing.T, dir string) windowFixture {
	t.Helper()
	p, store := newTestPipeline(t)
	events := &recordingPublisher{}
	flags := NewAttackFlagStore(filepath.Join(dir, "attack_status.json"), events)
	logDir := filepath.Join(dir, "logs")

	monitor, err := NewWindowMonitor(p, WindowConfig{
		Size:       3,
		LogDir:     logDir,
		Thresholds: detectors.Thresholds{Packets: 200, Bytes: 150000, Drops: 20},
	}, flags, remediation.NewEngine(nil), store,
		WithWindowEvents(events),
		WithWindowClock(func() time.Time { return t0 }),
	)
	require.NoError(t, err)
	return windowFixture{monitor: monitor, store: store, flags: flags, dir: logDir, events: events}
}

func readWindow(t *testing.T, dir string, n int) models.WindowLog {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, fmt.Sprintf("window_%d.json", n)))
	require.NoError(t, err)
	var entry models.WindowLog
	require.NoError(t, json.Unmarshal(data, &entry))
	return entry
}

func TestWindowQuietTraffic(t *testing.T) {
	f := newWindowFixture(t, t.TempDir())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.monitor.Submit(ctx, models.MetricRecord{AgentID: "web-1", PacketsPerSec: 50, BytesPerSec: 20000, Timestamp: t0})
		require.NoError(t, err)
	}

	entry := readWindow(t, f.dir, 1)
	assert.Equal(t, 1, entry.Window)
	assert.Len(t, entry.Metrics, 3)
	assert.False(t, entry.AttackDetected)

	_, ok, err := f.flags.Get()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, f.store.ListActions())
}

func TestWindowAttackRespondsAndFlags(t *testing.T) {
	f := newWindowFixture(t, t.TempDir())
	ctx := context.Background()

	samples := []models.MetricRecord{
		{AgentID: "web-1", PacketsPerSec: 350, BytesPerSec: 20000, Timestamp: t0},
		{AgentID: "web-1", PacketsPerSec: 50, BytesPerSec: 650000, Timestamp: t0},
		{AgentID: "web-1", PacketsPerSec: 60, BytesPerSec: 20000, Timestamp: t0},
	}
	for _, rec := range samples {
		_, err := f.monitor.Submit(ctx, rec)
		require.NoError(t, err)
	}

	entry, ok, err := f.monitor.LatestWindow()
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, entry.AttackDetected)
	assert.Equal(t, "web-1", entry.AgentID)
	assert.Equal(t, 350.0, entry.Metrics[0].Packets)

	flag, ok, err := f.flags.Get()
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, flag.AttackDetected)
	assert.Equal(t, models.ISOTime(t0), flag.Timestamp)

	names := []string{}
	for _, a := range f.store.ListActions() {
		names = append(names, a.Action)
		assert.Equal(t, "web-1", a.Target)
	}
	assert.Equal(t, []string{remediation.ActionIsolateEndpoint, remediation.ActionRerouteTraffic, remediation.ActionScaleUp}, names)
	assert.Contains(t, f.events.types(), EventAttack)
}

func TestWindowSharesReceiptTimeWithStore(t *testing.T) {
	f := newWindowFixture(t, t.TempDir())
	ctx := context.Background()

	// the pipeline runs on wall time, the monitor on t0
	for i := 0; i < 3; i++ {
		_, err := f.monitor.Submit(ctx, models.MetricRecord{AgentID: "web-1", PacketsPerSec: 10})
		require.NoError(t, err)
	}

	history := f.store.History("web-1")
	require.Len(t, history, 3)
	entry := readWindow(t, f.dir, 1)
	require.Len(t, entry.Metrics, 3)
	for i, rec := range history {
		assert.Equal(t, t0, rec.Timestamp)
		assert.Equal(t, models.ISOTime(rec.Timestamp), entry.Metrics[i].Timestamp)
	}
}

func TestWindowRejectedRecordsAreNotBuffered(t *testing.T) {
	f := newWindowFixture(t, t.TempDir())
	ctx := context.Background()

	_, err := f.monitor.Submit(ctx, models.MetricRecord{})
	require.Error(t, err)
	for i := 0; i < 2; i++ {
		_, err := f.monitor.Submit(ctx, models.MetricRecord{AgentID: "web-1", Timestamp: t0})
		require.NoError(t, err)
	}

	_, ok, err := f.monitor.LatestWindow()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWindowNumberingResumes(t *testing.T) {
	root := t.TempDir()
	logDir := filepath.Join(root, "logs")
	require.NoError(t, os.MkdirAll(logDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(logDir, "window_7.json"), []byte(`{"window":7}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(logDir, "notes.txt"), []byte("x"), 0o644))

	f := newWindowFixture(t, root)
	for i := 0; i < 3; i++ {
		_, err := f.monitor.Submit(context.Background(), models.MetricRecord{AgentID: "web-1", Timestamp: t0})
		require.NoError(t, err)
	}

	entry := readWindow(t, logDir, 8)
	assert.Equal(t, 8, entry.Window)
}

func TestWindowsArePerAgent(t *testing.T) {
	f := newWindowFixture(t, t.TempDir())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.monitor.Submit(ctx, models.MetricRecord{AgentID: "web-1", Timestamp: t0})
		require.NoError(t, err)
		_, err = f.monitor.Submit(ctx, models.MetricRecord{AgentID: "ghost", Timestamp: t0})
		require.NoError(t, err)
	}
	_, ok, err := LatestWindowLog(f.dir)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.monitor.Submit(ctx, models.MetricRecord{AgentID: "ghost", Timestamp: t0})
	require.NoError(t, err)
	entry, ok, err := LatestWindowLog(f.dir)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ghost", entry.AgentID)
}
