package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"aegisnet/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestArchiveAlerts(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	first := models.MustAlert("web-1", models.CPUSpikeDetails{AgentID: "web-1", CPU: 97}, base)
	second := models.MustAlert("ghost", models.UnrecognizedAgentDetails{AgentID: "ghost"}, base.Add(time.Second))
	require.NoError(t, a.ArchiveAlert(ctx, first))
	require.NoError(t, a.ArchiveAlert(ctx, second))
	require.NoError(t, a.ArchiveAlert(ctx, second), "duplicate IDs are ignored")

	got, err := a.RecentAlerts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, second.ID, got[0].ID)
	assert.Equal(t, models.UnrecognizedAgentDetails{AgentID: "ghost"}, got[0].Details)
	assert.Equal(t, first.Details, got[1].Details)
	assert.True(t, first.Timestamp.Equal(got[1].Timestamp))

	got, err = a.RecentAlerts(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestArchiveActions(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	action := models.NewAction("offload", "web-1", ts)
	action.AlertID = "alert-1"
	action.Status = models.ActionAttempted
	require.NoError(t, a.ArchiveAction(ctx, action))

	got, err := a.RecentActions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, action, got[0])
}

func TestArchiveSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aegisnet.db")
	ctx := context.Background()

	a, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, a.ArchiveAction(ctx, models.NewAction("isolate_endpoint", "edge-1", time.Now())))
	require.NoError(t, a.Close())

	a, err = Open(path)
	require.NoError(t, err)
	defer a.Close()
	got, err := a.RecentActions(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestArchiveClosed(t *testing.T) {
	a, err := Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	err = a.ArchiveAlert(context.Background(), models.MustAlert("a", models.MalwareFlowDetails{OutboundConnections: 101}, time.Now()))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = a.RecentAlerts(context.Background(), 1)
	assert.ErrorIs(t, err, ErrClosed)
}
