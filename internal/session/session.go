// Package session tracks connected clients, their input state and their
// outbound frame queues.
package session

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"terrafort/server/internal/entity"
)

var (
	// ErrBackpressure is returned when a session's outbound queue is full.
	ErrBackpressure = errors.New("session: outbound queue full")
	// ErrClosed is returned when sending to a disconnected session.
	ErrClosed = errors.New("session: closed")
	// ErrUnknownConn is returned when no session owns a connection.
	ErrUnknownConn = errors.New("session: unknown connection")
)

//go:generate go tool mockgen -destination=./mocks/conn_mock.go -package=mocks . Conn

// Conn is the transport handle a session owns. Frames are not written
// through it; the transport drains Session.Outbox instead.
type Conn interface {
	RemoteAddr() string
	Close() error
}

// Frame is one encoded outbound message.
type Frame struct {
	Event  string
	Binary bool
	Data   []byte
}

// Session is the server side of one connection. Input and debug state are
// written from I/O goroutines and read by the tick, so they sit behind mu.
type Session struct {
	id     string
	seq    uint64
	conn   Conn
	outbox chan Frame
	done   chan struct{}

	mu       sync.Mutex
	username string
	worldID  string
	player   *entity.Entity
	inputs   map[string]bool
	debug    []string

	closed  atomic.Bool
	dropped atomic.Uint64
}

func newSession(id string, seq uint64, conn Conn, outboxSize int) *Session {
	return &Session{
		id:     id,
		seq:    seq,
		conn:   conn,
		outbox: make(chan Frame, outboxSize),
		done:   make(chan struct{}),
		inputs: make(map[string]bool),
	}
}

func (s *Session) ID() string { return s.id }
func (s *Session) Conn() Conn { return s.conn }

// Outbox yields frames queued for the transport.
func (s *Session) Outbox() <-chan Frame { return s.outbox }

// Done is closed when the session disconnects.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) Closed() bool { return s.closed.Load() }

// Dropped counts frames lost to backpressure.
func (s *Session) Dropped() uint64 { return s.dropped.Load() }

func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

func (s *Session) SetUsername(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous := s.username
	s.username = name
	return previous
}

func (s *Session) WorldID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.worldID
}

func (s *Session) SetWorldID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.worldID = id
}

// Player returns the session's player entity. The world owns the entity;
// the session only refers to it.
func (s *Session) Player() *entity.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.player
}

func (s *Session) SetPlayer(e *entity.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.player = e
}

// SetInput records the held state of key. Last write wins.
func (s *Session) SetInput(key string, held bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs[key] = held
}

// InputCount is the number of distinct keys seen.
func (s *Session) InputCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inputs)
}

// Inputs copies the current input map.
func (s *Session) Inputs() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.inputs)
}

// Held reports whether key is currently held.
func (s *Session) Held(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inputs[key]
}

// SetDebug replaces the debug buffer.
func (s *Session) SetDebug(lines []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debug = slices.Clone(lines)
}

func (s *Session) Debug() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.debug)
}

// enqueue hands a frame to the transport without blocking.
func (s *Session) enqueue(frame Frame) error {
	if s.closed.Load() {
		return ErrClosed
	}
	select {
	case s.outbox <- frame:
		return nil
	default:
		s.dropped.Add(1)
		return ErrBackpressure
	}
}

// close marks the session closed once and reports whether this call did it.
func (s *Session) close() bool {
	if !s.closed.CompareAndSwap(false, true) {
		return false
	}
	close(s.done)
	return true
}

func (s *Session) String() string {
	name := s.Username()
	if name == "" {
		name = "anonymous"
	}
	return fmt.Sprintf("%s(%s) world=%s", name, s.id, s.WorldID())
}
