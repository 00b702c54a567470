// Package timing accumulates phase durations and counters between pulls.
package timing

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrTimerNotStarted is returned by Stop for an id without a running timer.
var ErrTimerNotStarted = errors.New("timing: timer was not started")

const (
	TypeTime  = "time"
	TypeCount = "count"
)

// Collector is the start/stop/count surface used by the simulation.
type Collector interface {
	Start(id, parent string)
	Stop(id string) error
	Count(n int64, id, parent string)
}

// Metadata describes how an id was recorded and where it nests.
type Metadata struct {
	Parent string `json:"parent,omitempty"`
	Type   string `json:"type"`
}

// Report is everything recorded since the previous pull.
type Report struct {
	Times    map[string]time.Duration `json:"times"`
	Counts   map[string]int64         `json:"counts"`
	Metadata map[string]Metadata      `json:"metadata"`
}

// Recorder is the in-process Collector.
type Recorder struct {
	mu       sync.Mutex
	now      func() time.Time
	disabled bool
	started  map[string]time.Time
	times    map[string]time.Duration
	counts   map[string]int64
	meta     map[string]Metadata
}

// NewRecorder returns an enabled recorder. A nil clock uses time.Now.
func NewRecorder(now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	r := &Recorder{now: now, started: make(map[string]time.Time)}
	r.resetLocked()
	return r
}

func (r *Recorder) resetLocked() {
	r.times = make(map[string]time.Duration)
	r.counts = make(map[string]int64)
	r.meta = make(map[string]Metadata)
}

func (r *Recorder) Start(id, parent string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disabled {
		return
	}
	r.started[id] = r.now()
	r.meta[id] = Metadata{Parent: parent, Type: TypeTime}
}

// Stop adds the elapsed time since Start to id's total.
func (r *Recorder) Stop(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disabled {
		return nil
	}
	began, ok := r.started[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTimerNotStarted, id)
	}
	delete(r.started, id)
	r.times[id] += r.now().Sub(began)
	return nil
}

func (r *Recorder) Count(n int64, id, parent string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disabled {
		return
	}
	r.meta[id] = Metadata{Parent: parent, Type: TypeCount}
	r.counts[id] += n
}

// Pull drains everything recorded so far. Running timers keep running.
func (r *Recorder) Pull() Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	report := Report{Times: r.times, Counts: r.counts, Metadata: r.meta}
	r.resetLocked()
	return report
}

// Disable turns every later call into a no-op.
func (r *Recorder) Disable() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disabled = true
	clear(r.started)
}

type nop struct{}

func (nop) Start(string, string)        {}
func (nop) Stop(string) error           { return nil }
func (nop) Count(int64, string, string) {}

// Nop discards everything.
func Nop() Collector { return nop{} }
