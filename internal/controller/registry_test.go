package controller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Azure-Framework/Az-Opticom/internal/geo"
	"github.com/Azure-Framework/Az-Opticom/internal/lease"
	"github.com/Azure-Framework/Az-Opticom/internal/scan"
	"github.com/Azure-Framework/Az-Opticom/internal/world"
	"github.com/Azure-Framework/Az-Opticom/internal/world/memory"
)

func newTestRegistry(w *memory.World) *Registry {
	leases := lease.NewManager(w, 5*time.Second, 250*time.Millisecond, nil)
	params := scan.Params{
		StepSize: 5, MinDistance: 10, MaxDistance: 50,
		SearchRadius: 5, HeadingThreshold: 45,
		Kinds: []world.Kind{"prop_traffic_01a"},
	}

	return NewRegistry(func(agent world.Handle) *Controller {
		return New(agent, Dependencies{
			World:    w,
			Searcher: scan.NewSearcher(w, params),
			Gate:     scan.NewGate(100*time.Millisecond, 7.5, 30),
			Leases:   leases,
		})
	})
}

func TestRegistry_StartAndStop(t *testing.T) {
	w := memory.New()
	agent := w.Spawn("player", geo.Position{}, 0)
	r := newTestRegistry(w)

	require.NoError(t, r.StartAgent(agent))
	assert.Equal(t, 1, r.Count())

	c, ok := r.Get(agent)
	require.True(t, ok)
	assert.True(t, c.IsRunning())

	require.NoError(t, r.StopAgent(agent))
	assert.Equal(t, 0, r.Count())
	assert.Eventually(t, func() bool { return !c.IsRunning() }, time.Second, 5*time.Millisecond)
}

func TestRegistry_DuplicateStart(t *testing.T) {
	w := memory.New()
	agent := w.Spawn("player", geo.Position{}, 0)
	r := newTestRegistry(w)

	require.NoError(t, r.StartAgent(agent))
	defer r.StopAll()

	assert.Error(t, r.StartAgent(agent))
}

func TestRegistry_StopUnknown(t *testing.T) {
	r := newTestRegistry(memory.New())
	assert.Error(t, r.StopAgent(world.Handle(99)))
}

func TestRegistry_StopAll(t *testing.T) {
	w := memory.New()
	r := newTestRegistry(w)

	a := w.Spawn("player", geo.Position{}, 0)
	b := w.Spawn("player", geo.Position{X: 100}, 0)
	require.NoError(t, r.StartAgent(a))
	require.NoError(t, r.StartAgent(b))
	require.Equal(t, 2, r.Count())

	r.StopAll()
	assert.Equal(t, 0, r.Count())
}
