package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Event is one command received from the host runtime, already split
// into the command token and its arguments.
type Event struct {
	Command   string
	Args      []string
	Timestamp time.Time
}

// HandlerFunc processes an event and returns a result for the host.
type HandlerFunc func(Event) (any, error)

// Logger is the minimal logging surface the dispatcher needs.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures how a handler is registered.
type Option func(*registration)

type registration struct {
	queueSize int
	blocking  bool
	logged    bool
}

// Buffered runs the handler on its own goroutine behind a queue of the
// given size, so high-rate commands like position updates never stall
// the host.
func Buffered(size int) Option {
	return func(r *registration) {
		r.queueSize = size
	}
}

// Blocking makes a buffered handler wait for queue space instead of
// dropping the event.
func Blocking() Option {
	return func(r *registration) {
		r.blocking = true
	}
}

// Logged wraps the handler with entry/exit debug logging and error
// reporting.
func Logged() Option {
	return func(r *registration) {
		r.logged = true
	}
}

// Dispatcher routes host commands to their handlers and reports queue
// depth, throughput, and drops through OTel.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   Logger

	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter

	// queues by command, read by the gauge callback
	mu     sync.RWMutex
	queues map[string]chan Event
}

// New creates a Dispatcher. Metrics come from the global OTel meter and
// are no-ops when telemetry is disabled.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		queues:   make(map[string]chan Event),
		logger:   logger,
	}

	m := meter()

	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Current number of events in queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for cmd, q := range d.queues {
				o.ObserveInt64(d.queueSize, int64(len(q)),
					metric.WithAttributes(attribute.String("command", cmd)))
			}
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"dispatcher.events.processed",
		metric.WithDescription("Total events processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"dispatcher.events.dropped",
		metric.WithDescription("Total events dropped due to full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	return d, nil
}

// Register binds a handler to a command. Options stack: a handler can
// be both buffered and logged.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	reg := &registration{}
	for _, opt := range opts {
		opt(reg)
	}

	handler := h

	if reg.queueSize > 0 {
		handler = d.withQueue(command, reg.queueSize, reg.blocking, handler)
	}

	if reg.logged {
		handler = d.withLogging(command, handler)
	}

	d.handlers[command] = handler
}

// Dispatch routes an event to its handler. Buffered handlers return
// "queued" immediately.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	h, ok := d.handlers[e.Command]
	if !ok {
		return nil, fmt.Errorf("unknown command: %s", e.Command)
	}
	return h(e)
}

// HasHandler reports whether a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	_, ok := d.handlers[command]
	return ok
}

func (d *Dispatcher) withQueue(command string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	queue := make(chan Event, size)

	d.mu.Lock()
	d.queues[command] = queue
	d.mu.Unlock()

	cmdAttr := attribute.String("command", command)

	go func() {
		for e := range queue {
			h(e)
			d.processed.Add(context.Background(), 1, metric.WithAttributes(cmdAttr))
		}
	}()

	if blocking {
		return func(e Event) (any, error) {
			queue <- e
			return "queued", nil
		}
	}

	return func(e Event) (any, error) {
		select {
		case queue <- e:
			return "queued", nil
		default:
			d.dropped.Add(context.Background(), 1, metric.WithAttributes(cmdAttr))
			return nil, fmt.Errorf("queue full: %s", command)
		}
	}
}

func (d *Dispatcher) withLogging(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling event", "command", command, "args", len(e.Args))

		result, err := h(e)

		if err != nil {
			d.logger.Error("event failed", "command", command, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("event complete", "command", command, "duration", time.Since(start))
		}

		return result, err
	}
}
