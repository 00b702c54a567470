// Package server is the authoritative simulation: it owns the worlds, the
// connected sessions and the fixed-tick loop that advances them.
package server

import (
	"context"
	"errors"
	"log"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"terrafort/server/internal/entity"
	"terrafort/server/internal/net/proto"
	"terrafort/server/internal/physics"
	"terrafort/server/internal/schedule"
	"terrafort/server/internal/session"
	"terrafort/server/internal/telemetry"
	"terrafort/server/internal/timing"
	"terrafort/server/internal/world"
	"terrafort/server/logging"
	"terrafort/server/logging/lifecycle"
	"terrafort/server/logging/simulation"
)

// ErrTickPanicked wraps a panic raised inside a tick phase.
var ErrTickPanicked = errors.New("server: tick panicked")

// State is the engine lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "idle"
}

// Engine drives the simulation. Every mutation of worlds and entities
// happens while mu is held: the tick holds it for its whole duration and
// the join and disconnect callbacks take it from I/O goroutines.
type Engine struct {
	cfg       Config
	logger    telemetry.Logger
	publisher logging.Publisher
	metrics   telemetry.Metrics
	timer     timing.Collector
	tracer    trace.Tracer
	telemetry *telemetryCounters

	sessions  *session.Manager
	physics   *physics.Engine
	scheduler *schedule.Scheduler

	mu            sync.Mutex
	state         State
	tick          uint64
	dt            float64
	universe      *world.Universe
	ids           entity.IDSource
	overrunStreak uint64
}

// NewEngine builds an idle engine. Call Run to start ticking.
func NewEngine(cfg Config) *Engine {
	cfg = cfg.normalized()
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	timer := cfg.Timer
	if timer == nil {
		timer = timing.Nop()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("terrafort/server")
	}

	e := &Engine{
		cfg:       cfg,
		logger:    logger,
		publisher: publisher,
		metrics:   metrics,
		timer:     timer,
		tracer:    tracer,
		telemetry: newTelemetryCounters(logger, cfg.DebugTelemetry),
		physics:   physics.NewEngine(cfg.Physics),
		universe:  world.NewUniverse(cfg.Terrain),
		dt:        cfg.Period().Seconds(),
	}
	e.scheduler = schedule.New(e.scheduledCallbackFailed)
	e.sessions = session.NewManager(session.Config{
		OutboxSize: cfg.OutboxSize,
		Codec:      cfg.Codec,
		Logger:     logger,
		Publisher:  publisher,
		Metrics:    metrics,
	})
	e.sessions.OnJoin(e.registerSession)
	e.sessions.OnDisconnect(e.disconnectSession)
	return e
}

// Connect registers a new connection and spawns its player.
func (e *Engine) Connect(conn session.Conn) *session.Session {
	return e.sessions.Register(conn)
}

// Receive handles one inbound frame from s. Rejected frames are logged by
// the session manager; the error is informational.
func (e *Engine) Receive(s *session.Session, data []byte) error {
	return e.sessions.Dispatch(s, data)
}

// Disconnect ends s and kills its player. The player is removed from its
// world after the next broadcast has announced the death.
func (e *Engine) Disconnect(s *session.Session, reason string) {
	e.sessions.Disconnect(s, reason)
}

// DisconnectAll ends every active session.
func (e *Engine) DisconnectAll(reason string) {
	for _, s := range e.sessions.Sessions() {
		e.sessions.Disconnect(s, reason)
	}
}

// Sessions exposes the session manager.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}

// Scheduler exposes the engine-owned scheduler.
func (e *Engine) Scheduler() *schedule.Scheduler {
	return e.scheduler
}

func (e *Engine) Config() Config {
	return e.cfg
}

// Tick is the number of completed ticks.
func (e *Engine) Tick() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// DT is the delta time in seconds used by the last tick.
func (e *Engine) DT() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dt
}

// WithWorld runs fn with exclusive access to the world with id.
func (e *Engine) WithWorld(id string, fn func(*world.World)) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	w, ok := e.universe.Get(id)
	if !ok {
		return false
	}
	fn(w)
	return true
}

// registerSession places a new session in the default world, sends it the
// terrain, spawns its player and sends it an initial reset.
func (e *Engine) registerSession(s *session.Session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	// The session may have been closed while waiting for the lock, in which
	// case its disconnect already ran and nothing would kill a new player.
	if s.Closed() {
		return
	}

	ctx := context.Background()
	worldID := e.cfg.WorldID
	s.SetWorldID(worldID)
	w, created := e.universe.GetOrCreate(worldID)
	if created {
		terrain := w.Terrain()
		lifecycle.WorldCreated(ctx, e.publisher, e.tick, worldID, lifecycle.WorldCreatedPayload{Width: terrain.Width, Height: terrain.Height})
		e.logger.Printf("[world] created %s", worldID)
	}
	if err := e.sessions.Send(s, proto.EventUpdateWorld, w.Terrain()); err != nil {
		e.logger.Printf("[session] failed to send terrain to %s: %v", s.ID(), err)
	}

	player := entity.NewPlayer(e.ids.Next(), s.Username(), entity.DefaultSpawn)
	if err := w.RegisterEntity(player); err != nil {
		e.invariantViolation(ctx, "spawn player", err)
		return
	}
	s.SetPlayer(player)
	lifecycle.PlayerJoined(ctx, e.publisher, e.tick, entityRef(player), lifecycle.PlayerJoinedPayload{
		SessionID: s.ID(),
		World:     worldID,
		SpawnX:    player.Position.X(),
		SpawnY:    player.Position.Y(),
	})

	records := worldRecords(w, true, false)
	if err := e.sessions.Send(s, proto.EventReset, resetFrame(records)); err != nil {
		e.logger.Printf("[session] failed to send initial reset to %s: %v", s.ID(), err)
	}
}

func (e *Engine) disconnectSession(s *session.Session, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	player := s.Player()
	if player != nil {
		player.Kill()
	}
	ref := logging.EntityRef{ID: s.ID(), Kind: logging.EntityKindSession}
	if player != nil {
		ref = entityRef(player)
	}
	lifecycle.PlayerDisconnected(context.Background(), e.publisher, e.tick, ref, lifecycle.PlayerDisconnectedPayload{SessionID: s.ID(), Reason: reason})
}

func (e *Engine) scheduledCallbackFailed(handle schedule.Handle, target, tick uint64, err error) {
	e.logger.Printf("[schedule] callback %d for tick %d failed: %v", handle, target, err)
	simulation.ScheduledCallbackFailed(context.Background(), e.publisher, tick, simulation.ScheduledCallbackFailedPayload{
		Handle:     uint64(handle),
		TargetTick: target,
		Error:      err.Error(),
	})
}

func (e *Engine) invariantViolation(ctx context.Context, operation string, err error) {
	e.logger.Printf("[invariant] %s aborted: %v", operation, err)
	e.metrics.Add("invariant_violations", 1)
	simulation.InvariantViolation(ctx, e.publisher, e.tick, simulation.InvariantViolationPayload{Operation: operation, Error: err.Error()})
}

func entityRef(p *entity.Entity) logging.EntityRef {
	kind := logging.EntityKindPlayer
	if p.Kind == entity.KindProjectile {
		kind = logging.EntityKindProjectile
	}
	return logging.EntityRef{ID: p.ID.String(), Kind: kind}
}

func (e *Engine) nowMillis() int64 {
	return e.cfg.Clock().UnixMilli()
}
