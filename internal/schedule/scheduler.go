// Package schedule runs callbacks at future simulation ticks.
package schedule

import (
	"fmt"
	"sort"
	"sync"
)

// Func is a scheduled callback. It receives the tick it fired on.
type Func func(tick uint64)

// Handle identifies a scheduled callback for cancellation.
type Handle uint64

// ErrorHook receives panics recovered from callbacks.
type ErrorHook func(handle Handle, target, tick uint64, err error)

type job struct {
	handle Handle
	target uint64
	fn     Func
}

// Scheduler keeps callbacks keyed by target tick. Callbacks due on the same
// tick fire in registration order. A Scheduler is owned by one engine; it is
// safe to schedule from callbacks and from other goroutines.
type Scheduler struct {
	mu      sync.Mutex
	now     uint64
	next    Handle
	pending map[uint64][]job
	index   map[Handle]uint64
	onError ErrorHook
}

func New(onError ErrorHook) *Scheduler {
	return &Scheduler{
		pending: make(map[uint64][]job),
		index:   make(map[Handle]uint64),
		onError: onError,
	}
}

// Now returns the last tick passed to Update.
func (s *Scheduler) Now() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Schedule runs fn delay ticks after the current tick.
func (s *Scheduler) Schedule(delay uint64, fn Func) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(s.now+delay, fn)
}

// ScheduleAt runs fn at the given tick, or on the next Update when the tick
// has already passed.
func (s *Scheduler) ScheduleAt(tick uint64, fn Func) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(tick, fn)
}

func (s *Scheduler) addLocked(target uint64, fn Func) Handle {
	s.next++
	h := s.next
	s.pending[target] = append(s.pending[target], job{handle: h, target: target, fn: fn})
	s.index[h] = target
	return h
}

// Cancel removes a callback that has not fired yet.
func (s *Scheduler) Cancel(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.index[h]
	if !ok {
		return false
	}
	delete(s.index, h)
	jobs := s.pending[target]
	for i, j := range jobs {
		if j.handle == h {
			jobs = append(jobs[:i], jobs[i+1:]...)
			break
		}
	}
	if len(jobs) == 0 {
		delete(s.pending, target)
	} else {
		s.pending[target] = jobs
	}
	return true
}

// Pending is the number of callbacks still waiting.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index)
}

// Update advances the clock to tick and fires every due callback, earliest
// target first. Callbacks registered while firing run no earlier than the
// next Update. Returns the number of callbacks run.
func (s *Scheduler) Update(tick uint64) int {
	s.mu.Lock()
	s.now = tick
	var targets []uint64
	for target := range s.pending {
		if target <= tick {
			targets = append(targets, target)
		}
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })
	var due []job
	for _, target := range targets {
		for _, j := range s.pending[target] {
			delete(s.index, j.handle)
			due = append(due, j)
		}
		delete(s.pending, target)
	}
	s.mu.Unlock()

	for _, j := range due {
		s.run(j, tick)
	}
	return len(due)
}

func (s *Scheduler) run(j job, tick uint64) {
	defer func() {
		if r := recover(); r != nil {
			if s.onError != nil {
				s.onError(j.handle, j.target, tick, fmt.Errorf("scheduled callback panicked: %v", r))
			}
		}
	}()
	if j.fn != nil {
		j.fn(tick)
	}
}
