// Package dispatcher routes simulation events to registered sinks. Sinks
// may run synchronously on the sim loop or behind a buffered queue, and
// queue depth, throughput, and drops are exported as OTel metrics.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/stuntrig/vdyn/pkg/vehicle"
)

// Event topics published by the sim runner.
const (
	TopicRunStart = "run.start"
	TopicFrame    = "run.frame"
	TopicImpact   = "run.impact"
	TopicRunEnd   = "run.end"
)

// Impact describes a collision reported to the dynamics core.
type Impact struct {
	Tick     uint64
	Impulse  float64
	Normal   mgl64.Vec3
	Severity vehicle.ImpactSeverity
	Damage   vehicle.DamageState
}

// RunSummary carries run lifecycle data. On TopicRunStart only the
// identity fields are filled; TopicRunEnd adds the outcome.
type RunSummary struct {
	Scenario   string
	Preset     string
	TickRate   float64
	StartedAt  time.Time
	EndedAt    time.Time
	Ticks      uint64
	Digest     string
	TopSpeed   float64
	PeakGForce float64
	Damage     vehicle.DamageState
}

// Event is one simulation occurrence routed to sinks. Exactly one payload
// pointer is set, matching the topic.
type Event struct {
	Topic     string
	RunID     string
	Timestamp time.Time

	Frame  *vehicle.Telemetry
	Impact *Impact
	Run    *RunSummary
}

// HandlerFunc consumes an event. Errors from buffered handlers are logged
// rather than returned to the publisher.
type HandlerFunc func(Event) error

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	logged     bool
}

// Buffered makes the handler async with a queue of the given size.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered handler block when the queue is full instead
// of dropping.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Logged adds debug logging around the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Dispatcher routes events to registered handlers by topic.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   Logger

	inflight atomic.Int64

	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter

	// Track buffers for the gauge callback.
	mu      sync.RWMutex
	buffers map[string]chan Event
}

// New creates a Dispatcher with the given logger. Metrics come from the
// global OTel meter, which is a no-op when no provider is installed.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		buffers:  make(map[string]chan Event),
		logger:   logger,
	}

	m := meter()

	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"vdyn.events.queue.size",
		metric.WithDescription("Current number of events in queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for topic, buf := range d.buffers {
				o.ObserveInt64(d.queueSize, int64(len(buf)),
					metric.WithAttributes(attribute.String("topic", topic)))
			}
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"vdyn.events.processed",
		metric.WithDescription("Total events processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"vdyn.events.dropped",
		metric.WithDescription("Total events dropped due to full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given topic with optional configuration.
// Registering the same topic twice replaces the handler but keeps the old
// queue goroutine; register each topic once, at startup.
func (d *Dispatcher) Register(topic string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h

	if cfg.bufferSize > 0 {
		handler = d.withBuffer(topic, cfg.bufferSize, cfg.blocking, handler)
	}

	if cfg.logged {
		handler = d.withLogging(topic, handler)
	}

	d.handlers[topic] = handler
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(e Event) error {
	h, ok := d.handlers[e.Topic]
	if !ok {
		return fmt.Errorf("unknown topic: %s", e.Topic)
	}
	return h(e)
}

// HasHandler returns true if a handler is registered for the topic.
func (d *Dispatcher) HasHandler(topic string) bool {
	_, ok := d.handlers[topic]
	return ok
}

// QueueDepth returns the number of buffered events awaiting delivery
// across all topics. The monitor samples it for the status report.
func (d *Dispatcher) QueueDepth() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	depth := 0
	for _, buf := range d.buffers {
		depth += len(buf)
	}
	return depth
}

// Drain blocks until every queued event has been handled or ctx is done.
// Call before shutting down sinks so buffered frames are not lost.
func (d *Dispatcher) Drain(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		if d.inflight.Load() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (d *Dispatcher) withBuffer(topic string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	buffer := make(chan Event, size)

	d.mu.Lock()
	d.buffers[topic] = buffer
	d.mu.Unlock()

	topicAttr := attribute.String("topic", topic)

	go func() {
		for e := range buffer {
			if err := h(e); err != nil && d.logger != nil {
				d.logger.Error("event handler failed", "topic", topic, "run_id", e.RunID, "error", err)
			}
			d.processed.Add(context.Background(), 1, metric.WithAttributes(topicAttr))
			d.inflight.Add(-1)
		}
	}()

	if blocking {
		return func(e Event) error {
			d.inflight.Add(1)
			buffer <- e
			return nil
		}
	}

	return func(e Event) error {
		d.inflight.Add(1)
		select {
		case buffer <- e:
			return nil
		default:
			d.inflight.Add(-1)
			d.dropped.Add(context.Background(), 1, metric.WithAttributes(topicAttr))
			return fmt.Errorf("queue full: %s", topic)
		}
	}
}

func (d *Dispatcher) withLogging(topic string, h HandlerFunc) HandlerFunc {
	return func(e Event) error {
		start := time.Now()
		d.logger.Debug("handling event", "topic", topic, "run_id", e.RunID)

		err := h(e)

		if err != nil {
			d.logger.Error("event failed", "topic", topic, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("event complete", "topic", topic, "duration", time.Since(start))
		}

		return err
	}
}
