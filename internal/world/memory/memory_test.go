package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Azure-Framework/Az-Opticom/internal/geo"
	"github.com/Azure-Framework/Az-Opticom/internal/world"
)

func TestSpawnAndQuery(t *testing.T) {
	w := New()

	h := w.Spawn("prop_traffic_01a", geo.Position{X: 10, Y: 20}, 90)
	require.NotEqual(t, world.None, h)
	require.True(t, w.Exists(h))

	pos, ok := w.Position(h)
	require.True(t, ok)
	assert.Equal(t, geo.Position{X: 10, Y: 20}, pos)

	heading, ok := w.Heading(h)
	require.True(t, ok)
	assert.Equal(t, 90.0, heading)
}

func TestRemove(t *testing.T) {
	w := New()
	h := w.Spawn("prop_traffic_01a", geo.Position{}, 0)

	w.Remove(h)

	assert.False(t, w.Exists(h))
	_, ok := w.Position(h)
	assert.False(t, ok)
	_, ok = w.Heading(h)
	assert.False(t, ok)
}

func TestNearestOfKind_PicksClosestWithinRadius(t *testing.T) {
	w := New()
	far := w.Spawn("prop_traffic_01a", geo.Position{X: 8}, 0)
	near := w.Spawn("prop_traffic_01a", geo.Position{X: 3}, 0)
	w.Spawn("prop_traffic_02a", geo.Position{X: 1}, 0) // wrong kind

	got := w.NearestOfKind("prop_traffic_01a", geo.Position{}, 10)
	assert.Equal(t, near, got)

	// Shrink the radius so only the near one is out of reach too.
	got = w.NearestOfKind("prop_traffic_01a", geo.Position{}, 2)
	assert.Equal(t, world.None, got)

	w.Remove(near)
	got = w.NearestOfKind("prop_traffic_01a", geo.Position{}, 10)
	assert.Equal(t, far, got)
}

func TestNearestOfKind_RadiusInclusive(t *testing.T) {
	w := New()
	h := w.Spawn("prop_traffic_03a", geo.Position{X: 5}, 0)

	assert.Equal(t, h, w.NearestOfKind("prop_traffic_03a", geo.Position{}, 5))
}

func TestSignalState(t *testing.T) {
	w := New()
	h := w.Spawn("prop_traffic_01a", geo.Position{}, 0)

	assert.Equal(t, world.SignalDefault, w.SignalState(h))

	w.SetSignalState(h, world.SignalGo)
	assert.Equal(t, world.SignalGo, w.SignalState(h))

	// Commands against despawned entities are ignored.
	w.Remove(h)
	w.SetSignalState(h, world.SignalGo)
	assert.Equal(t, world.SignalDefault, w.SignalState(h))
}

func TestVehicleOccupancyAndSiren(t *testing.T) {
	w := New()
	agent := w.Spawn("player", geo.Position{}, 0)
	veh := w.Spawn("ambulance", geo.Position{}, 0)

	assert.False(t, w.InVehicle(agent))
	assert.Equal(t, world.None, w.VehicleOf(agent))

	w.EnterVehicle(agent, veh)
	assert.True(t, w.InVehicle(agent))
	assert.Equal(t, veh, w.VehicleOf(agent))

	assert.False(t, w.SirenOn(veh))
	w.SetSiren(veh, true)
	assert.True(t, w.SirenOn(veh))

	// A despawned vehicle no longer counts as occupied.
	w.Remove(veh)
	assert.False(t, w.InVehicle(agent))
}
