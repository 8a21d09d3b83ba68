// Package notify delivers user-facing messages from the preemption core,
// throttled so a flapping signal can't spam the driver.
package notify

import (
	"sync"
	"time"
)

// Sink receives the messages that survive rate limiting. The host runtime
// wires its chat/HUD surface here; tests and the demo use a log sink.
type Sink interface {
	Send(message string)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(message string)

// Send calls f(message).
func (f SinkFunc) Send(message string) { f(message) }

// Notifier forwards at most one message per cooldown window, dropping the
// rest. The first message always passes.
type Notifier struct {
	cooldown time.Duration
	sink     Sink

	mu       sync.Mutex
	lastSent time.Time
	hasSent  bool
}

// New creates a Notifier with the given cooldown window.
func New(cooldown time.Duration, sink Sink) *Notifier {
	return &Notifier{cooldown: cooldown, sink: sink}
}

// Notify delivers the message unless one was already delivered within the
// cooldown window. Returns whether the message went out.
func (n *Notifier) Notify(message string, now time.Time) bool {
	n.mu.Lock()
	if n.hasSent && now.Sub(n.lastSent) < n.cooldown {
		n.mu.Unlock()
		return false
	}
	n.lastSent = now
	n.hasSent = true
	n.mu.Unlock()

	if n.sink != nil {
		n.sink.Send(message)
	}
	return true
}
