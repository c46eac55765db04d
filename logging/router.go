package logging

import (
	"context"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

const (
	metricEventsTotal  = "logging_events_total"
	metricDroppedTotal = "logging_dropped_total"
	metricBacklogTotal = "logging_sink_backlog_total"

	defaultQueueSize = 512
	uncategorized    = "none"
)

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

// NamedSink registers a sink with the router. A sink with Categories only
// receives events of those categories.
type NamedSink struct {
	Name       string
	Sink       Sink
	Categories []string
}

// Router fans published events out to sinks from a single dispatch
// goroutine. Publish never blocks the simulation: a full queue drops the
// event and counts it against its category.
type Router struct {
	cfg      Config
	clock    Clock
	metrics  *Metrics
	fallback *log.Logger
	fields   map[string]any

	queue   chan Event
	workers []*sinkWorker
	stop    chan struct{}
	running sync.WaitGroup
	closed  atomic.Bool

	events      atomic.Uint64
	dropped     atomic.Uint64
	lastDropLog atomic.Int64
	mu          sync.Mutex
	droppedBy   map[string]uint64
}

type RouterStats struct {
	EventsTotal  uint64
	DroppedTotal uint64
	// Dropped counts events lost at the router queue, by category.
	Dropped map[string]uint64
	// Backlog counts events a slow sink could not take, by sink name.
	Backlog map[string]uint64
}

// NewRouter starts a router over the given sinks. metrics may be nil.
func NewRouter(clock Clock, cfg Config, metrics *Metrics, namedSinks []NamedSink) (*Router, error) {
	if clock == nil {
		clock = SystemClock{}
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = defaultQueueSize
	}
	r := &Router{
		cfg:       cfg,
		clock:     clock,
		metrics:   metrics,
		fallback:  log.New(os.Stderr, "[logging] ", log.LstdFlags),
		fields:    cfg.CloneFields(),
		queue:     make(chan Event, size),
		stop:      make(chan struct{}),
		droppedBy: make(map[string]uint64),
	}
	backlog := min(max(size, 32), 1024)
	for _, named := range namedSinks {
		if named.Sink == nil {
			continue
		}
		categories := named.Categories
		if len(categories) == 0 {
			categories = cfg.Routes[named.Name]
		}
		r.workers = append(r.workers, newSinkWorker(named.Name, named.Sink, categories, backlog, r.fallback, metrics))
	}

	r.running.Add(1 + len(r.workers))
	go r.dispatch()
	for _, w := range r.workers {
		go func(w *sinkWorker) {
			defer r.running.Done()
			w.run()
		}(w)
	}
	return r, nil
}

func (r *Router) dispatch() {
	defer r.running.Done()
	defer func() {
		for _, w := range r.workers {
			close(w.events)
		}
	}()
	for {
		select {
		case event := <-r.queue:
			r.forward(event)
		case <-r.stop:
			for {
				select {
				case event := <-r.queue:
					r.forward(event)
				default:
					return
				}
			}
		}
	}
}

func (r *Router) forward(event Event) {
	if event.Severity < r.cfg.MinimumSeverity {
		return
	}
	if event.Time.IsZero() {
		event.Time = r.clock.Now()
	}
	event = mergeFields(event, r.fields)
	category := categoryOf(event)
	for _, w := range r.workers {
		if w.accepts(category) {
			w.enqueue(event)
		}
	}
	r.events.Add(1)
	r.metrics.TelemetryAdd(metricEventsTotal, 1)
}

func (r *Router) Publish(ctx context.Context, event Event) {
	if r == nil || event.Type == "" || r.closed.Load() {
		return
	}
	select {
	case r.queue <- event:
	default:
		r.drop(event)
	}
}

func (r *Router) drop(event Event) {
	category := categoryOf(event)
	r.dropped.Add(1)
	r.metrics.TelemetryAdd(metricDroppedTotal, 1)
	r.mu.Lock()
	r.droppedBy[category]++
	r.mu.Unlock()

	interval := r.cfg.DropWarnInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	now := time.Now().UnixNano()
	next := r.lastDropLog.Load()
	if now >= next && r.lastDropLog.CompareAndSwap(next, now+interval.Nanoseconds()) {
		r.fallback.Printf("queue full, dropping %s event type=%s tick=%d", category, event.Type, event.Tick)
	}
}

// Close stops dispatch, drains queued events into the sinks and closes them.
func (r *Router) Close(ctx context.Context) error {
	if r == nil || !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(r.stop)
	drained := make(chan struct{})
	go func() {
		r.running.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		return ctx.Err()
	}
	var firstErr error
	for _, w := range r.workers {
		if err := w.sink.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Router) Stats() RouterStats {
	if r == nil {
		return RouterStats{}
	}
	stats := RouterStats{
		EventsTotal:  r.events.Load(),
		DroppedTotal: r.dropped.Load(),
		Dropped:      make(map[string]uint64),
		Backlog:      make(map[string]uint64, len(r.workers)),
	}
	r.mu.Lock()
	for category, n := range r.droppedBy {
		stats.Dropped[category] = n
	}
	r.mu.Unlock()
	for _, w := range r.workers {
		stats.Backlog[w.name] = w.backlog.Load()
	}
	return stats
}

func (r *Router) Sink(name string) Sink {
	if r == nil {
		return nil
	}
	for _, w := range r.workers {
		if w.name == name {
			return w.sink
		}
	}
	return nil
}

func categoryOf(event Event) string {
	if event.Category == "" {
		return uncategorized
	}
	return event.Category
}

// sinkWorker feeds one sink from its own goroutine and backs off
// exponentially, up to 32s, while the sink keeps failing.
type sinkWorker struct {
	name       string
	sink       Sink
	categories map[string]struct{}
	events     chan Event
	fallback   *log.Logger
	metrics    *Metrics
	backlog    atomic.Uint64
	failures   int
	retryAt    time.Time
}

func newSinkWorker(name string, sink Sink, categories []string, buffer int, fallback *log.Logger, metrics *Metrics) *sinkWorker {
	w := &sinkWorker{
		name:     name,
		sink:     sink,
		events:   make(chan Event, buffer),
		fallback: fallback,
		metrics:  metrics,
	}
	if len(categories) > 0 {
		w.categories = make(map[string]struct{}, len(categories))
		for _, c := range categories {
			w.categories[c] = struct{}{}
		}
	}
	return w
}

func (w *sinkWorker) accepts(category string) bool {
	if w.categories == nil {
		return true
	}
	_, ok := w.categories[category]
	return ok
}

func (w *sinkWorker) enqueue(event Event) {
	select {
	case w.events <- cloneEvent(event):
	default:
		w.metrics.TelemetryAdd(metricBacklogTotal, 1)
		if w.backlog.Add(1) == 1 {
			w.fallback.Printf("sink %s fell behind, dropping event type=%s", w.name, event.Type)
		}
	}
}

func (w *sinkWorker) run() {
	for event := range w.events {
		if wait := time.Until(w.retryAt); w.failures > 0 && wait > 0 {
			time.Sleep(wait)
		}
		err := w.sink.Write(event)
		if err == nil {
			w.failures, w.retryAt = 0, time.Time{}
			continue
		}
		w.failures++
		delay := time.Second << min(w.failures, 5)
		w.retryAt = time.Now().Add(delay)
		w.fallback.Printf("sink %s failed: %v (retry in %s)", w.name, err, delay)
	}
}
