package server

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"terrafort/server/internal/entity"
	"terrafort/server/internal/net/proto"
	"terrafort/server/internal/session"
	"terrafort/server/internal/world"
	"terrafort/server/logging/simulation"
)

// Run ticks at the configured rate until ctx is cancelled. dt is the
// measured time since the previous tick, clamped to CatchupMaxTicks periods
// so a stall lengthens one tick instead of replaying missed ones.
func (e *Engine) Run(ctx context.Context) error {
	period := e.cfg.Period()
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	maxDt := period.Seconds() * float64(e.cfg.CatchupMaxTicks)
	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			now := e.cfg.Clock()
			dt := period.Seconds()
			if !last.IsZero() {
				dt = now.Sub(last).Seconds()
				if dt <= 0 {
					dt = period.Seconds()
				} else if dt > maxDt {
					dt = maxDt
				}
			}
			last = now

			if err := e.safeStep(ctx, dt); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				e.logger.Printf("[tick] fatal: %v", err)
				return err
			}
			e.recordTickDuration(ctx, e.cfg.Clock().Sub(now), period)
		}
	}
}

func (e *Engine) safeStep(ctx context.Context, dt float64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTickPanicked, r)
		}
	}()
	return e.Step(ctx, dt)
}

// Step runs one tick with the given delta time in seconds. Phases run in a
// fixed order and each parallel phase completes before the next starts.
func (e *Engine) Step(ctx context.Context, dt float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tick := e.tick
	ctx, span := e.tracer.Start(ctx, "tick", trace.WithAttributes(attribute.Int64("tick", int64(tick))))
	defer span.End()

	e.state = StateRunning
	e.dt = dt
	e.timer.Start("tick", "")

	sessions := e.sessions.Sessions()
	e.syncSessions(sessions)
	if e.cfg.DebugMessages {
		e.emitDebug(sessions)
	}

	if err := e.runPhase(ctx, "physics", func(ctx context.Context) error {
		return e.physics.ApplyAll(ctx, e.liveEntities(), dt)
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "physics")
		return fmt.Errorf("tick %d physics: %w", tick, err)
	}

	e.timer.Start("input", "tick")
	e.applyInputs(ctx, tick, sessions)
	e.stopTimer("input")

	if err := e.runPhase(ctx, "collision", e.collide); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "collision")
		return fmt.Errorf("tick %d collision: %w", tick, err)
	}

	e.timer.Start("schedule", "tick")
	fired := e.scheduler.Update(tick)
	e.stopTimer("schedule")
	e.timer.Count(int64(fired), "scheduled_callbacks", "tick")

	e.timer.Start("broadcast", "tick")
	e.broadcast(tick%e.cfg.ResetInterval == 0)
	e.stopTimer("broadcast")

	e.collectGarbage()

	e.stopTimer("tick")
	e.tick++
	e.metrics.Store("tick", e.tick)
	return nil
}

// runPhase times a parallel phase and reports it when it outlives the
// phase guard. The phase is always awaited.
func (e *Engine) runPhase(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := e.tracer.Start(ctx, name)
	defer span.End()
	e.timer.Start(name, "tick")
	defer e.stopTimer(name)

	if limit := e.cfg.PhaseTimeout; limit > 0 {
		started := e.cfg.Clock()
		tick := e.tick
		guard := time.AfterFunc(limit, func() {
			e.logger.Printf("[tick] phase %s of tick %d exceeded %s", name, tick, limit)
			simulation.PhaseTimeout(context.Background(), e.publisher, tick, simulation.PhaseTimeoutPayload{
				Phase:          name,
				DurationMillis: e.cfg.Clock().Sub(started).Milliseconds(),
				LimitMillis:    limit.Milliseconds(),
			})
		})
		defer guard.Stop()
	}
	return fn(ctx)
}

func (e *Engine) stopTimer(id string) {
	if err := e.timer.Stop(id); err != nil {
		e.logger.Printf("[timing] %v", err)
	}
}

// syncSessions refreshes each player's name from its session and
// broadcasts the roster.
func (e *Engine) syncSessions(sessions []*session.Session) {
	for _, s := range sessions {
		player := s.Player()
		if player == nil || player.IsDead() {
			continue
		}
		if name := s.Username(); player.Name != name {
			player.Name = name
			player.MarkDirty()
		}
	}
	if err := e.sessions.Broadcast(proto.EventPlayers, e.sessions.PlayersOnline()); err != nil {
		e.logger.Printf("[session] roster broadcast failed: %v", err)
	}
}

func (e *Engine) liveEntities() []*entity.Entity {
	var out []*entity.Entity
	for _, w := range e.universe.Worlds() {
		out = append(out, w.Alive()...)
	}
	return out
}

// collide runs every world's collision pass concurrently.
func (e *Engine) collide(ctx context.Context) error {
	worlds := e.universe.Worlds()
	stats := make([]world.CollisionStats, len(worlds))
	g, ctx := errgroup.WithContext(ctx)
	for i, w := range worlds {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			stats[i] = w.RunCollisionLogic()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	var contacts, kills int
	for _, s := range stats {
		contacts += s.Contacts
		kills += s.Kills
	}
	e.timer.Count(int64(contacts), "contacts", "collision")
	if kills > 0 {
		e.metrics.Add("collision_kills", uint64(kills))
	}
	return nil
}

func (e *Engine) collectGarbage() {
	removed := 0
	for _, w := range e.universe.Worlds() {
		removed += len(w.CollectGarbage())
	}
	if removed > 0 {
		e.metrics.Add("entities_collected", uint64(removed))
	}
	e.metrics.Store("entities", uint64(e.universe.EntityCount()))
}

func (e *Engine) recordTickDuration(ctx context.Context, duration, budget time.Duration) {
	e.telemetry.RecordTickDuration(duration)
	if duration <= budget {
		e.mu.Lock()
		e.overrunStreak = 0
		e.mu.Unlock()
		return
	}
	e.mu.Lock()
	e.overrunStreak++
	streak := e.overrunStreak
	tick := e.tick
	e.mu.Unlock()

	e.telemetry.IncrementOverrun()
	simulation.TickBudgetOverrun(ctx, e.publisher, tick, simulation.TickBudgetOverrunPayload{
		DurationMillis: duration.Milliseconds(),
		BudgetMillis:   budget.Milliseconds(),
		Ratio:          float64(duration) / float64(budget),
		Streak:         streak,
	})
}
