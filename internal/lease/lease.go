// Package lease tracks which signals are currently overridden and for how
// long. The sweep goroutine is the single release authority: even if a
// controller stalls mid-tick, every override is returned to default control
// within its lease duration.
package lease

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Azure-Framework/Az-Opticom/internal/world"
)

// Manager owns the handle -> expiry table. Grant is called from controller
// ticks; the sweep runs on its own coarser cadence. The mutex covers both,
// and the sweep re-checks the table under it before resetting any signal,
// so a Grant landing mid-sweep keeps its override.
type Manager struct {
	w             world.World
	duration      time.Duration
	sweepInterval time.Duration
	logger        *slog.Logger

	mu     sync.Mutex
	leases map[world.Handle]time.Time

	onRelease func(world.Handle)

	granted  atomic.Uint64
	released atomic.Uint64

	runMu     sync.Mutex
	isRunning bool
	stopChan  chan struct{}
}

// NewManager creates a Manager. duration is how long a granted override
// lasts; sweepInterval is the release-check cadence and is expected to be
// coarser than the controller poll interval.
func NewManager(w world.World, duration, sweepInterval time.Duration, logger *slog.Logger) *Manager {
	return &Manager{
		w:             w,
		duration:      duration,
		sweepInterval: sweepInterval,
		logger:        logger,
		leases:        make(map[world.Handle]time.Time),
	}
}

// SetReleaseHook registers a callback invoked (outside the table lock) for
// every signal the sweep returns to default control. Used to broadcast the
// not-green state change.
func (m *Manager) SetReleaseHook(fn func(world.Handle)) {
	m.onRelease = fn
}

// Grant forces the signal to go and stamps its lease to now + duration.
// Granting an already-held signal extends the lease; it never stacks and the
// expiry never moves backward while held.
func (m *Manager) Grant(h world.Handle, now time.Time) {
	expiry := now.Add(m.duration)

	m.mu.Lock()
	if prior, ok := m.leases[h]; ok && prior.After(expiry) {
		expiry = prior
	}
	m.leases[h] = expiry
	m.mu.Unlock()

	m.w.SetSignalState(h, world.SignalGo)
	m.granted.Add(1)
}

// ExpiresAt returns the tracked expiry for a signal, if any.
func (m *Manager) ExpiresAt(h world.Handle) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, ok := m.leases[h]
	return expiry, ok
}

// Active returns the number of signals currently overridden.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.leases)
}

// Granted returns the total number of grant calls since startup.
func (m *Manager) Granted() uint64 { return m.granted.Load() }

// Released returns the total number of sweep releases since startup.
func (m *Manager) Released() uint64 { return m.released.Load() }

// Sweep releases every lease whose signal has despawned or whose expiry has
// passed. Expiries are re-read under the lock, so a renewal that landed after
// the sweep started is honored; the reset itself also happens under the lock
// after re-checking the table, so a Grant landing mid-sweep keeps its signal
// forced to go.
func (m *Manager) Sweep(now time.Time) {
	m.mu.Lock()
	expired := make([]world.Handle, 0)
	for h, expiry := range m.leases {
		if !m.w.Exists(h) || !now.Before(expiry) {
			expired = append(expired, h)
		}
	}
	for _, h := range expired {
		delete(m.leases, h)
	}
	m.mu.Unlock()

	for _, h := range expired {
		// A Grant can re-insert the handle between the removal above and
		// this point. Skip those; their go state must stand.
		m.mu.Lock()
		if _, regranted := m.leases[h]; regranted {
			m.mu.Unlock()
			continue
		}
		m.w.SetSignalState(h, world.SignalDefault)
		m.mu.Unlock()

		m.released.Add(1)
		if m.logger != nil {
			m.logger.Debug("Released signal override", "signal", h)
		}
		if m.onRelease != nil {
			m.onRelease(h)
		}
	}
}

// Start launches the sweep goroutine. Safe to call while running.
func (m *Manager) Start() {
	m.runMu.Lock()
	if m.isRunning {
		m.runMu.Unlock()
		return
	}
	m.isRunning = true
	m.stopChan = make(chan struct{})
	stop := m.stopChan
	m.runMu.Unlock()

	go func() {
		defer func() {
			m.runMu.Lock()
			m.isRunning = false
			m.runMu.Unlock()
		}()

		ticker := time.NewTicker(m.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case now := <-ticker.C:
				m.Sweep(now)
			}
		}
	}()
}

// Stop halts the sweep goroutine.
func (m *Manager) Stop() {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.isRunning {
		close(m.stopChan)
		m.isRunning = false
	}
}

// IsRunning reports whether the sweep goroutine is active.
func (m *Manager) IsRunning() bool {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	return m.isRunning
}
