// Package physics integrates entity motion over a tick.
package physics

import (
	"context"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"terrafort/server/internal/entity"
	"terrafort/server/internal/geom"
)

// Config bounds the integrator.
type Config struct {
	// MaxMovement caps the distance any entity may travel in one call.
	MaxMovement float64
	// MaxSpeed caps velocity magnitude after acceleration and friction.
	MaxSpeed float64
	MinMass  float64
	// Workers bounds ApplyAll fan-out. Zero means GOMAXPROCS.
	Workers int
}

func DefaultConfig() Config {
	return Config{
		MaxMovement: 64,
		MaxSpeed:    1200,
		MinMass:     0.001,
	}
}

// Engine applies physics to entities. It holds no per-entity state, so a
// single engine may integrate distinct entities concurrently.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.MaxMovement <= 0 {
		cfg.MaxMovement = def.MaxMovement
	}
	if cfg.MaxSpeed <= 0 {
		cfg.MaxSpeed = def.MaxSpeed
	}
	if cfg.MinMass <= 0 {
		cfg.MinMass = def.MinMass
	}
	return &Engine{cfg: cfg}
}

func (p *Engine) Config() Config {
	return p.cfg
}

// Apply integrates a single entity over dt seconds:
//
//	v += a·dt
//	v *= max(0, 1 - friction·dt)
//	p += clamp(v·dt, MaxMovement)
//
// Bad inputs are clamped instead of rejected. The entity is marked dirty
// only when its position or velocity actually changed.
func (p *Engine) Apply(e *entity.Entity, dt float64) {
	if e == nil || e.IsDead() {
		return
	}
	if math.IsNaN(dt) || dt < 0 || math.IsInf(dt, 0) {
		dt = 0
	}
	e.Position = e.Position.Sanitize()
	e.Velocity = e.Velocity.Sanitize()
	e.Acceleration = e.Acceleration.Sanitize()
	if math.IsNaN(e.Mass) || e.Mass < p.cfg.MinMass {
		e.Mass = p.cfg.MinMass
	}
	if math.IsNaN(e.Friction) || e.Friction < 0 {
		e.Friction = 0
	}

	startPos, startVel := e.Position, e.Velocity

	// Finite inputs can still overflow to ±Inf here.
	vel := e.Velocity.Add(e.Acceleration.Scale(dt)).Sanitize()
	damping := 1 - e.Friction*dt
	if damping < 0 || math.IsNaN(damping) {
		damping = 0
	}
	vel = vel.Scale(damping).Sanitize().ClampMagnitude(p.cfg.MaxSpeed)

	step := vel.Scale(dt).Sanitize().ClampMagnitude(p.cfg.MaxMovement)
	pos := e.Position.Add(step)
	if !pos.IsFinite() {
		pos = startPos
	}
	e.Velocity = vel
	e.Position = pos

	if e.Position != startPos || e.Velocity != startVel {
		e.MarkDirty()
	}
}

// ApplyAll integrates every entity and returns once all of them are done.
func (p *Engine) ApplyAll(ctx context.Context, entities []*entity.Entity, dt float64) error {
	if len(entities) == 0 {
		return nil
	}
	workers := p.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	chunk := (len(entities) + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(entities); start += chunk {
		end := min(start+chunk, len(entities))
		batch := entities[start:end]
		g.Go(func() error {
			for _, e := range batch {
				if err := ctx.Err(); err != nil {
					return err
				}
				p.Apply(e, dt)
			}
			return nil
		})
	}
	return g.Wait()
}

// Displacement is how far e moved between two positions.
func Displacement(from, to geom.Vector) float64 {
	return to.Sub(from).Magnitude()
}
