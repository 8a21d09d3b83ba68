// Package controller runs the per-agent preemption loop: watch the agent's
// vehicle and siren, find the signal ahead when the siren is on, and keep
// its override lease fresh until the vehicle has passed.
package controller

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Azure-Framework/Az-Opticom/internal/broadcast"
	"github.com/Azure-Framework/Az-Opticom/internal/geo"
	"github.com/Azure-Framework/Az-Opticom/internal/journal"
	"github.com/Azure-Framework/Az-Opticom/internal/lease"
	"github.com/Azure-Framework/Az-Opticom/internal/notify"
	"github.com/Azure-Framework/Az-Opticom/internal/scan"
	"github.com/Azure-Framework/Az-Opticom/internal/world"
)

// State is the agent's observed situation, driving loop cadence and whether
// scanning happens at all.
type State int

const (
	// StateNoVehicle: agent is on foot or gone; nothing to do.
	StateNoVehicle State = iota
	// StateVehicleNoSiren: in a vehicle, siren off; idle watch.
	StateVehicleNoSiren
	// StateSirenActive: siren on; the scan/maintain path runs every poll.
	StateSirenActive
)

func (s State) String() string {
	switch s {
	case StateVehicleNoSiren:
		return "vehicle_no_siren"
	case StateSirenActive:
		return "siren_active"
	default:
		return "no_vehicle"
	}
}

// Dependencies holds all collaborators for a Controller.
type Dependencies struct {
	World     world.World
	Searcher  *scan.Searcher
	Gate      *scan.Gate
	Leases    *lease.Manager
	Publisher broadcast.Publisher
	Recorder  journal.Recorder
	Notifier  *notify.Notifier
	Logger    *slog.Logger

	PollInterval  time.Duration
	IdleInterval  time.Duration
	RefreshMargin time.Duration
}

// Controller drives preemption for a single agent. Tick is the whole state
// machine; Start wraps it in a goroutine whose cadence follows the state.
// All mutable fields are guarded by mu so status reads from other
// goroutines see a consistent snapshot.
type Controller struct {
	agent world.Handle
	deps  Dependencies
	now   func() time.Time

	mu           sync.Mutex
	state        State
	currentLight world.Handle
	currentKind  world.Kind

	scans atomic.Uint64

	runMu     sync.Mutex
	isRunning bool
	stopChan  chan struct{}
}

// New creates a Controller for the given agent. Publisher and Recorder
// default to no-ops when nil.
func New(agent world.Handle, deps Dependencies) *Controller {
	if deps.Publisher == nil {
		deps.Publisher = broadcast.Nop{}
	}
	if deps.Recorder == nil {
		deps.Recorder = journal.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.PollInterval <= 0 {
		deps.PollInterval = 50 * time.Millisecond
	}
	if deps.IdleInterval <= 0 {
		deps.IdleInterval = 500 * time.Millisecond
	}
	return &Controller{
		agent: agent,
		deps:  deps,
		now:   time.Now,
		state: StateNoVehicle,
	}
}

// Agent returns the agent handle this controller watches.
func (c *Controller) Agent() world.Handle { return c.agent }

// State returns the last observed state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentLight returns the signal currently being maintained, or None.
func (c *Controller) CurrentLight() world.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentLight
}

// Scans returns the number of heavy searches run since startup.
func (c *Controller) Scans() uint64 { return c.scans.Load() }

// observeState derives the agent's state from the world.
func (c *Controller) observeState() State {
	w := c.deps.World
	if !w.Exists(c.agent) || !w.InVehicle(c.agent) {
		return StateNoVehicle
	}
	vehicle := w.VehicleOf(c.agent)
	if vehicle == world.None {
		return StateNoVehicle
	}
	if w.SirenOn(vehicle) {
		return StateSirenActive
	}
	return StateVehicleNoSiren
}

// Tick runs one iteration of the state machine at the given instant.
func (c *Controller) Tick(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	observed := c.observeState()
	if observed != c.state {
		c.transition(observed, now)
	}

	if c.state != StateSirenActive {
		return
	}

	vehicle := c.deps.World.VehicleOf(c.agent)
	pos, ok := c.deps.World.Position(vehicle)
	if !ok {
		return
	}
	heading, ok := c.deps.World.Heading(vehicle)
	if !ok {
		return
	}

	// Cheap path first: hold on to the signal we already found.
	if c.currentLight != world.None && c.deps.Searcher.StillRelevant(c.currentLight, pos, heading) {
		c.maintain(pos, heading, now)
		return
	}
	c.currentLight = world.None
	c.currentKind = ""

	if !c.deps.Gate.ShouldScan(pos, heading, now) {
		return
	}
	c.deps.Gate.MarkScanned(pos, heading, now)
	c.scans.Add(1)

	light, kind := c.deps.Searcher.Find(pos, heading)
	if light == world.None {
		return
	}
	c.currentLight = light
	c.currentKind = kind
	c.grant(pos, now)
}

// transition applies a state change. Entering siren-active cold-starts the
// scan gate and forgets any stale target; leaving it drops the target and
// lets the lease sweep return the signal to normal control.
func (c *Controller) transition(to State, now time.Time) {
	from := c.state
	c.state = to
	c.currentLight = world.None
	c.currentKind = ""

	if to == StateSirenActive {
		c.deps.Gate.Invalidate()
	}

	c.deps.Logger.Debug("Agent state changed",
		"agent", c.agent, "from", from.String(), "to", to.String())
	c.deps.Publisher.AgentUpdate(uint64(c.agent), to.String(), now)
}

// maintain keeps the current signal's lease alive. A lapsed lease on a
// still-relevant signal is re-granted from scratch; a held lease is only
// extended once it is inside the refresh margin. An in-margin extension is
// journaled but not re-broadcast: subscribers get one event per signal state
// change, and an extension does not change the state.
func (c *Controller) maintain(pos geo.Position, heading float64, now time.Time) {
	expiry, held := c.deps.Leases.ExpiresAt(c.currentLight)
	if !held {
		c.grant(pos, now)
		return
	}
	if expiry.Sub(now) <= c.deps.RefreshMargin {
		c.deps.Leases.Grant(c.currentLight, now)
		c.deps.Recorder.RecordExtend(uint64(c.agent), uint64(c.currentLight), string(c.currentKind), pos, now)
	}
}

// grant forces the current signal to go and fans the event out.
func (c *Controller) grant(pos geo.Position, now time.Time) {
	light := c.currentLight
	c.deps.Leases.Grant(light, now)

	c.deps.Logger.Info("Signal override granted",
		"agent", c.agent, "signal", light, "kind", c.currentKind)
	c.deps.Publisher.SignalChange(uint64(c.agent), uint64(light), true, now)
	c.deps.Recorder.RecordGrant(uint64(c.agent), uint64(light), string(c.currentKind), pos, now)
	if c.deps.Notifier != nil {
		c.deps.Notifier.Notify("Traffic signal overridden", now)
	}
}

// interval returns the loop cadence for the current state.
func (c *Controller) interval() time.Duration {
	if c.State() == StateSirenActive {
		return c.deps.PollInterval
	}
	return c.deps.IdleInterval
}

// Start launches the control loop goroutine. Safe to call while running.
func (c *Controller) Start() {
	c.runMu.Lock()
	if c.isRunning {
		c.runMu.Unlock()
		return
	}
	c.isRunning = true
	c.stopChan = make(chan struct{})
	stop := c.stopChan
	c.runMu.Unlock()

	go func() {
		defer func() {
			c.runMu.Lock()
			c.isRunning = false
			c.runMu.Unlock()
		}()

		timer := time.NewTimer(c.interval())
		defer timer.Stop()

		for {
			select {
			case <-stop:
				return
			case <-timer.C:
				c.Tick(c.now())
				timer.Reset(c.interval())
			}
		}
	}()
}

// Stop halts the control loop goroutine. The current lease, if any, decays
// via the sweep rather than being released here.
func (c *Controller) Stop() {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.isRunning {
		close(c.stopChan)
		c.isRunning = false
	}
}

// IsRunning reports whether the control loop is active.
func (c *Controller) IsRunning() bool {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	return c.isRunning
}
