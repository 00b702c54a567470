package logging

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

type NamedSink struct {
	Name string
	Sink Sink
}

// Router is an asynchronous Publisher. Publish never blocks: when the queue
// is full the event is dropped and counted.
type Router struct {
	cfg      Config
	queue    chan Event
	workers  []*sinkWorker
	clock    Clock
	fallback *log.Logger
	fields   map[string]any

	done   chan struct{}
	wg     sync.WaitGroup
	closed atomic.Bool

	eventsTotal  atomic.Uint64
	droppedTotal atomic.Uint64
	nextDropLog  atomic.Int64
}

type RouterStats struct {
	EventsTotal  uint64            `json:"eventsTotal"`
	DroppedTotal uint64            `json:"droppedTotal"`
	SinkDrops    map[string]uint64 `json:"sinkDrops,omitempty"`
}

// NewRouter starts a router delivering to the sinks enabled in cfg. An
// empty EnabledSinks list enables every provided sink.
func NewRouter(cfg Config, clock Clock, fallback *log.Logger, sinks []NamedSink) (*Router, error) {
	if clock == nil {
		clock = SystemClock{}
	}
	if fallback == nil {
		fallback = log.New(os.Stderr, "[logging] ", log.LstdFlags)
	}
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = DefaultConfig().BufferSize
	}
	r := &Router{
		cfg:      cfg,
		queue:    make(chan Event, bufferSize),
		clock:    clock,
		fallback: fallback,
		fields:   cfg.cloneFields(),
		done:     make(chan struct{}),
	}

	seen := make(map[string]struct{}, len(sinks))
	for _, named := range sinks {
		if named.Sink == nil {
			continue
		}
		if _, dup := seen[named.Name]; dup {
			return nil, fmt.Errorf("logging: sink %q registered twice", named.Name)
		}
		seen[named.Name] = struct{}{}
		if len(cfg.EnabledSinks) > 0 && !cfg.HasSink(named.Name) {
			continue
		}
		r.workers = append(r.workers, newSinkWorker(named.Name, named.Sink, min(max(bufferSize, 32), 1024), fallback))
	}

	r.start()
	return r, nil
}

func (r *Router) start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			for _, w := range r.workers {
				close(w.events)
			}
		}()
		for {
			select {
			case <-r.done:
				r.drain()
				return
			case event := <-r.queue:
				r.forward(event)
			}
		}
	}()
	for _, w := range r.workers {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			w.run()
		}()
	}
}

func (r *Router) drain() {
	for {
		select {
		case event := <-r.queue:
			r.forward(event)
		default:
			return
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
	event = withDefaults(event, r.fields)
	r.eventsTotal.Add(1)
	for _, w := range r.workers {
		w.enqueue(event.clone())
	}
}

func (r *Router) Publish(_ context.Context, event Event) {
	if event.Type == "" || r.closed.Load() {
		return
	}
	select {
	case r.queue <- event:
	default:
		r.dropped(event)
	}
}

func (r *Router) dropped(event Event) {
	r.droppedTotal.Add(1)
	interval := r.cfg.DropWarnInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	now := time.Now().UnixNano()
	next := r.nextDropLog.Load()
	if now >= next && r.nextDropLog.CompareAndSwap(next, now+interval.Nanoseconds()) {
		r.fallback.Printf("dropping event type=%s tick=%d (total dropped %d)", event.Type, event.Tick, r.droppedTotal.Load())
	}
}

// Close flushes queued events and closes every sink.
func (r *Router) Close(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(r.done)
	finished := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-ctx.Done():
		return ctx.Err()
	}
	var firstErr error
	for _, w := range r.workers {
		if err := w.sink.Close(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("logging: close sink %s: %w", w.name, err)
		}
	}
	return firstErr
}

func (r *Router) Stats() RouterStats {
	stats := RouterStats{
		EventsTotal:  r.eventsTotal.Load(),
		DroppedTotal: r.droppedTotal.Load(),
	}
	for _, w := range r.workers {
		if n := w.drops.Load(); n > 0 {
			if stats.SinkDrops == nil {
				stats.SinkDrops = make(map[string]uint64)
			}
			stats.SinkDrops[w.name] = n
		}
	}
	return stats
}

// Sink returns the enabled sink registered under name.
func (r *Router) Sink(name string) Sink {
	for _, w := range r.workers {
		if w.name == name {
			return w.sink
		}
	}
	return nil
}

// sinkWorker feeds one sink and backs off exponentially after failures.
type sinkWorker struct {
	name      string
	sink      Sink
	events    chan Event
	fallback  *log.Logger
	failures  int
	nextRetry time.Time
	drops     atomic.Uint64
}

func newSinkWorker(name string, sink Sink, buffer int, fallback *log.Logger) *sinkWorker {
	return &sinkWorker{
		name:     name,
		sink:     sink,
		events:   make(chan Event, buffer),
		fallback: fallback,
	}
}

func (w *sinkWorker) enqueue(event Event) {
	select {
	case w.events <- event:
	default:
		if w.drops.Add(1) == 1 {
			w.fallback.Printf("sink %s backlog full, dropping event type=%s", w.name, event.Type)
		}
	}
}

func (w *sinkWorker) run() {
	for event := range w.events {
		if wait := time.Until(w.nextRetry); w.failures > 0 && wait > 0 {
			time.Sleep(wait)
		}
		if err := w.sink.Write(event); err != nil {
			w.failures++
			delay := time.Duration(1<<min(w.failures, 5)) * time.Second
			w.nextRetry = time.Now().Add(delay)
			w.fallback.Printf("sink %s failed: %v (retry in %s)", w.name, err, delay)
			continue
		}
		w.failures = 0
	}
}
