package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"terrafort/server/internal/net/proto"
	"terrafort/server/internal/telemetry"
	"terrafort/server/logging"
	"terrafort/server/logging/lifecycle"
	"terrafort/server/logging/network"
)

const (
	DefaultOutboxSize = 64
	// MaxInputKeys bounds the per-session input map.
	MaxInputKeys = 32
)

// Handler processes one decoded inbound message.
type Handler func(s *Session, msg proto.Inbound) error

// Config wires a Manager to its collaborators.
type Config struct {
	OutboxSize int
	Codec      proto.Codec
	Logger     telemetry.Logger
	Publisher  logging.Publisher
	Metrics    telemetry.Metrics
}

// Manager owns the active sessions. Join and disconnect callbacks run
// without the manager lock held so they may call back into the manager.
type Manager struct {
	cfg       Config
	codec     proto.Codec
	logger    telemetry.Logger
	publisher logging.Publisher
	metrics   telemetry.Metrics

	mu       sync.RWMutex
	sessions map[string]*Session
	byConn   map[Conn]*Session
	seq      uint64
	handlers map[string]Handler

	onJoin       func(*Session)
	onDisconnect func(*Session, string)
}

func NewManager(cfg Config) *Manager {
	if cfg.OutboxSize <= 0 {
		cfg.OutboxSize = DefaultOutboxSize
	}
	if cfg.Codec == nil {
		cfg.Codec = proto.JSONCodec{}
	}
	if cfg.Logger == nil {
		cfg.Logger = telemetry.LoggerFunc(nil)
	}
	if cfg.Publisher == nil {
		cfg.Publisher = logging.NopPublisher()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NopMetrics()
	}
	m := &Manager{
		cfg:       cfg,
		codec:     cfg.Codec,
		logger:    cfg.Logger,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		sessions:  make(map[string]*Session),
		byConn:    make(map[Conn]*Session),
		handlers:  make(map[string]Handler),
	}
	m.handlers[proto.EventRename] = m.handleRename
	m.handlers[proto.EventInput] = m.handleInput
	return m
}

func (m *Manager) Codec() proto.Codec { return m.codec }

// OnJoin sets the callback run for every registered session.
func (m *Manager) OnJoin(fn func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onJoin = fn
}

// OnDisconnect sets the callback run once per disconnected session.
func (m *Manager) OnDisconnect(fn func(*Session, string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDisconnect = fn
}

// Handle installs or replaces the handler for an inbound event.
func (m *Manager) Handle(event string, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h == nil {
		delete(m.handlers, event)
		return
	}
	m.handlers[event] = h
}

// Register creates a session for conn, asks the client for a username and
// runs the join callback.
func (m *Manager) Register(conn Conn) *Session {
	m.mu.Lock()
	m.seq++
	s := newSession(uuid.NewString(), m.seq, conn, m.cfg.OutboxSize)
	m.sessions[s.id] = s
	if conn != nil {
		m.byConn[conn] = s
	}
	onJoin := m.onJoin
	m.mu.Unlock()

	m.metrics.Store("sessions_active", uint64(m.Len()))
	if err := m.Send(s, proto.EventRequestUsername, nil); err != nil {
		m.logger.Printf("[session] failed to request username from %s: %v", s.id, err)
	}
	if onJoin != nil {
		onJoin(s)
	}
	return s
}

// Disconnect removes s from the active set, closes its connection and runs
// the disconnect callback. Repeated calls are no-ops.
func (m *Manager) Disconnect(s *Session, reason string) {
	if s == nil || !s.close() {
		return
	}
	m.mu.Lock()
	delete(m.sessions, s.id)
	if s.conn != nil {
		delete(m.byConn, s.conn)
	}
	onDisconnect := m.onDisconnect
	m.mu.Unlock()

	m.metrics.Store("sessions_active", uint64(m.Len()))
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			m.logger.Printf("[session] close %s: %v", s.id, err)
		}
	}
	if onDisconnect != nil {
		onDisconnect(s, reason)
	}
}

// Lookup returns the session owning conn.
func (m *Manager) Lookup(conn Conn) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byConn[conn]
	return s, ok
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sessions returns the active sessions in registration order.
func (m *Manager) Sessions() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()
	slices.SortFunc(out, func(a, b *Session) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
	return out
}

// PlayersOnline is the username roster in registration order. Sessions
// that have not picked a name yet are left out.
func (m *Manager) PlayersOnline() []string {
	names := []string{}
	for _, s := range m.Sessions() {
		if name := s.Username(); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// Send encodes and queues one event for s.
func (m *Manager) Send(s *Session, event string, payload any) error {
	data, err := m.codec.Encode(event, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	return m.SendEncoded(s, event, data)
}

// SendEncoded queues an already encoded frame for s.
func (m *Manager) SendEncoded(s *Session, event string, data []byte) error {
	if s == nil {
		return ErrClosed
	}
	err := s.enqueue(Frame{Event: event, Binary: m.codec.Binary(), Data: data})
	switch {
	case err == nil:
		m.metrics.Add("frames_queued", 1)
		m.metrics.Add("bytes_queued", uint64(len(data)))
	case errors.Is(err, ErrBackpressure):
		dropped := s.Dropped()
		m.metrics.Add("frames_dropped", 1)
		if dropped&(dropped-1) == 0 {
			m.logger.Printf("[backpressure] session=%s event=%s dropped=%d", s.id, event, dropped)
			network.SendDropped(context.Background(), m.publisher, sessionRef(s), network.SendDroppedPayload{Event: event, Dropped: dropped})
		}
	}
	return err
}

// SendToClient sends to the session owning conn.
func (m *Manager) SendToClient(conn Conn, event string, payload any) error {
	s, ok := m.Lookup(conn)
	if !ok {
		return ErrUnknownConn
	}
	return m.Send(s, event, payload)
}

// Broadcast encodes once and queues the frame for every session. Slow
// sessions drop the frame; the rest still receive it.
func (m *Manager) Broadcast(event string, payload any) error {
	data, err := m.codec.Encode(event, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	for _, s := range m.Sessions() {
		_ = m.SendEncoded(s, event, data)
	}
	return nil
}

// Dispatch decodes one inbound frame and routes it to its handler.
// Rejected messages are logged and dropped; the session stays connected.
func (m *Manager) Dispatch(s *Session, data []byte) error {
	msg, err := m.codec.Decode(data)
	if err != nil {
		m.reject(s, "", err)
		return err
	}
	m.mu.RLock()
	h, ok := m.handlers[msg.Event]
	m.mu.RUnlock()
	if !ok {
		err := fmt.Errorf("%w: %q", proto.ErrUnknownEvent, msg.Event)
		m.reject(s, msg.Event, err)
		return err
	}
	if err := h(s, msg); err != nil {
		m.reject(s, msg.Event, err)
		return err
	}
	return nil
}

func (m *Manager) reject(s *Session, event string, err error) {
	m.metrics.Add("messages_rejected", 1)
	m.logger.Printf("[session] dropping message from %s: %v", s.id, err)
	network.MessageRejected(context.Background(), m.publisher, sessionRef(s), network.MessageRejectedPayload{Event: event, Reason: err.Error()})
}

func (m *Manager) handleRename(s *Session, msg proto.Inbound) error {
	var raw string
	if err := msg.Bind(&raw); err != nil {
		return err
	}
	name, err := proto.NormalizeUsername(raw)
	if err != nil {
		return err
	}
	previous := s.SetUsername(name)
	lifecycle.PlayerRenamed(context.Background(), m.publisher, 0, sessionRef(s), lifecycle.PlayerRenamedPayload{Previous: previous, Username: name})
	return nil
}

func (m *Manager) handleInput(s *Session, msg proto.Inbound) error {
	var input proto.InputMessage
	if err := msg.Bind(&input); err != nil {
		return err
	}
	if err := input.Validate(); err != nil {
		return err
	}
	if s.InputCount() >= MaxInputKeys {
		if _, known := s.Inputs()[input.Keycode]; !known {
			return fmt.Errorf("%w: too many distinct keys", proto.ErrMalformed)
		}
	}
	s.SetInput(input.Keycode, *input.State)
	return nil
}

func sessionRef(s *Session) logging.EntityRef {
	if s == nil {
		return logging.EntityRef{Kind: logging.EntityKindSession}
	}
	return logging.EntityRef{ID: s.id, Kind: logging.EntityKindSession}
}
