// Package world defines the capability interface the preemption core uses to
// talk to the host game runtime. The core never touches the runtime directly;
// everything goes through World so it can run against the in-memory
// implementation in tests and demo mode.
package world

import "github.com/Azure-Framework/Az-Opticom/internal/geo"

// Handle is an opaque reference to a world entity. The zero value means
// "no entity". A handle is not a liveness guarantee: the referenced object
// can despawn at any time, so Exists must be re-checked before use.
type Handle uint64

// None is the zero Handle.
const None Handle = 0

// Kind identifies an object archetype by its model name, e.g.
// "prop_traffic_01a".
type Kind string

// Signal override states understood by the runtime.
const (
	// SignalGo forces a controlled signal to its go state.
	SignalGo = 0
	// SignalDefault returns a signal to normal cycle control.
	SignalDefault = -1
)

// World is the read/command surface the controller, searcher and lease
// manager require from the host runtime. All calls are synchronous and
// bounded-latency. Queries about missing entities report absence through
// their ok/zero returns rather than errors.
type World interface {
	// Exists reports whether the entity is still present in the world.
	Exists(h Handle) bool

	// Position returns the entity's current position. The second return is
	// false when the entity is gone.
	Position(h Handle) (geo.Position, bool)

	// Heading returns the entity's current heading in degrees [0,360).
	Heading(h Handle) (float64, bool)

	// NearestOfKind returns the closest object of the given kind within
	// radius of the probe point, or None when nothing matches.
	NearestOfKind(kind Kind, point geo.Position, radius float64) Handle

	// SetSignalState overrides a controlled signal's state. State is one of
	// SignalGo or SignalDefault. Commands against despawned entities are
	// ignored by the runtime.
	SetSignalState(h Handle, state int)

	// InVehicle reports whether the agent entity currently occupies a
	// vehicle.
	InVehicle(agent Handle) bool

	// VehicleOf returns the vehicle the agent occupies, or None.
	VehicleOf(agent Handle) Handle

	// SirenOn reports whether the vehicle's siren is active.
	SirenOn(vehicle Handle) bool
}
