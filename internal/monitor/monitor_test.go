package monitor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Azure-Framework/Az-Opticom/internal/geo"
	"github.com/Azure-Framework/Az-Opticom/internal/lease"
	"github.com/Azure-Framework/Az-Opticom/internal/logging"
	"github.com/Azure-Framework/Az-Opticom/internal/world/memory"
)

func newTestService(t *testing.T, dir string) (*Service, *lease.Manager, *memory.World) {
	t.Helper()

	w := memory.New()
	leases := lease.NewManager(w, 5*time.Second, 250*time.Millisecond, nil)

	svc := NewService(Dependencies{
		Leases:     leases,
		AgentCount: func() int { return 2 },
		LogManager: logging.NewSlogManager(),
		StatusDir:  dir,
		Interval:   5 * time.Millisecond,
	})
	return svc, leases, w
}

func TestSnapshot(t *testing.T) {
	svc, leases, w := newTestService(t, t.TempDir())

	light := w.Spawn("prop_traffic_01a", geo.Position{}, 0)
	leases.Grant(light, time.Now())

	status := svc.Snapshot()
	assert.Equal(t, 1, status.ActiveLeases)
	assert.Equal(t, uint64(1), status.TotalGranted)
	assert.Equal(t, uint64(0), status.TotalReleased)
	assert.Equal(t, 2, status.RunningAgents)
	assert.False(t, status.SweepRunning)
}

func TestStart_WritesStatusFile(t *testing.T) {
	dir := t.TempDir()
	svc, _, _ := newTestService(t, dir)

	require.NoError(t, svc.Start())
	defer svc.Stop()

	statusPath := filepath.Join(dir, "status.txt")
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(statusPath)
		return err == nil && len(data) > 0
	}, 2*time.Second, 10*time.Millisecond)

	data, err := os.ReadFile(statusPath)
	require.NoError(t, err)

	var status Status
	require.NoError(t, json.Unmarshal(data, &status))
	assert.Equal(t, 2, status.RunningAgents)
}

func TestStartStop_Idempotent(t *testing.T) {
	svc, _, _ := newTestService(t, t.TempDir())

	require.NoError(t, svc.Start())
	require.NoError(t, svc.Start())
	require.True(t, svc.IsRunning())

	svc.Stop()
	assert.Eventually(t, func() bool { return !svc.IsRunning() }, time.Second, 5*time.Millisecond)
}
