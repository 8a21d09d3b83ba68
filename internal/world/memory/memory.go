// Package memory provides an in-process World implementation. It backs the
// package tests and the demo mode, where no host runtime is attached.
package memory

import (
	"sync"

	"github.com/Azure-Framework/Az-Opticom/internal/geo"
	"github.com/Azure-Framework/Az-Opticom/internal/world"
)

type object struct {
	kind    world.Kind
	pos     geo.Position
	heading float64
	signal  int
	siren   bool
	vehicle world.Handle // for agent entities: occupied vehicle, or None
}

// World is a mutable entity table satisfying world.World.
type World struct {
	mu      sync.Mutex
	nextID  uint64
	objects map[world.Handle]*object
}

// New creates an empty world.
func New() *World {
	return &World{objects: make(map[world.Handle]*object)}
}

// Spawn adds an entity and returns its handle.
func (w *World) Spawn(kind world.Kind, pos geo.Position, heading float64) world.Handle {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextID++
	h := world.Handle(w.nextID)
	w.objects[h] = &object{kind: kind, pos: pos, heading: heading, signal: world.SignalDefault}
	return h
}

// Remove despawns an entity. Safe to call for unknown handles.
func (w *World) Remove(h world.Handle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.objects, h)
}

// MoveTo repositions an entity.
func (w *World) MoveTo(h world.Handle, pos geo.Position) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if o, ok := w.objects[h]; ok {
		o.pos = pos
	}
}

// SetHeading rotates an entity.
func (w *World) SetHeading(h world.Handle, heading float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if o, ok := w.objects[h]; ok {
		o.heading = heading
	}
}

// SetSiren toggles a vehicle's siren.
func (w *World) SetSiren(vehicle world.Handle, on bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if o, ok := w.objects[vehicle]; ok {
		o.siren = on
	}
}

// EnterVehicle seats an agent in a vehicle; world.None exits.
func (w *World) EnterVehicle(agent, vehicle world.Handle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if o, ok := w.objects[agent]; ok {
		o.vehicle = vehicle
	}
}

// SignalState reports the current override state of a signal entity.
func (w *World) SignalState(h world.Handle) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if o, ok := w.objects[h]; ok {
		return o.signal
	}
	return world.SignalDefault
}

// --- world.World ---

func (w *World) Exists(h world.Handle) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.objects[h]
	return ok
}

func (w *World) Position(h world.Handle) (geo.Position, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if o, ok := w.objects[h]; ok {
		return o.pos, true
	}
	return geo.Position{}, false
}

func (w *World) Heading(h world.Handle) (float64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if o, ok := w.objects[h]; ok {
		return o.heading, true
	}
	return 0, false
}

func (w *World) NearestOfKind(kind world.Kind, point geo.Position, radius float64) world.Handle {
	w.mu.Lock()
	defer w.mu.Unlock()

	best := world.None
	bestSq := radius * radius
	for h, o := range w.objects {
		if o.kind != kind {
			continue
		}
		if d := geo.DistSq(o.pos, point); d <= bestSq {
			best = h
			bestSq = d
		}
	}
	return best
}

func (w *World) SetSignalState(h world.Handle, state int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if o, ok := w.objects[h]; ok {
		o.signal = state
	}
}

func (w *World) InVehicle(agent world.Handle) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	o, ok := w.objects[agent]
	if !ok || o.vehicle == world.None {
		return false
	}
	_, ok = w.objects[o.vehicle]
	return ok
}

func (w *World) VehicleOf(agent world.Handle) world.Handle {
	w.mu.Lock()
	defer w.mu.Unlock()
	if o, ok := w.objects[agent]; ok {
		return o.vehicle
	}
	return world.None
}

func (w *World) SirenOn(vehicle world.Handle) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if o, ok := w.objects[vehicle]; ok {
		return o.siren
	}
	return false
}
