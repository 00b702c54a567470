package server

import (
	"context"

	"terrafort/server/internal/entity"
	"terrafort/server/internal/geom"
	"terrafort/server/internal/session"
)

// applyInputs turns each session's held keys into its player's
// acceleration and fires projectiles.
func (e *Engine) applyInputs(ctx context.Context, tick uint64, sessions []*session.Session) {
	for _, s := range sessions {
		player := s.Player()
		if player == nil || player.IsDead() || player.Kind != entity.KindPlayer {
			continue
		}
		held := canonicalInputs(s.Inputs())

		dir := inputDirection(held)
		if !dir.IsZero() {
			player.Facing = dir
		}
		player.Acceleration = dir.Scale(player.MoveSpeed)

		if held[KeyFire] && tick >= player.NextFireTick {
			e.fire(ctx, tick, s.WorldID(), player)
		}
	}
}

// canonicalInputs folds key aliases onto the arrow keys.
func canonicalInputs(raw map[string]bool) map[string]bool {
	held := make(map[string]bool, len(raw))
	for key, down := range raw {
		if alias, ok := keyAliases[key]; ok {
			key = alias
		}
		held[key] = held[key] || down
	}
	return held
}

// inputDirection sums the held direction keys into a unit vector. Opposite
// keys cancel out.
func inputDirection(held map[string]bool) geom.Vector {
	var dir geom.Vector
	if held[KeyUp] {
		dir.SetY(dir.Y() - 1)
	}
	if held[KeyDown] {
		dir.SetY(dir.Y() + 1)
	}
	if held[KeyLeft] {
		dir.SetX(dir.X() - 1)
	}
	if held[KeyRight] {
		dir.SetX(dir.X() + 1)
	}
	return dir.UnitVector()
}

// fire spawns a projectile travelling along the shooter's facing and
// schedules its expiry.
func (e *Engine) fire(ctx context.Context, tick uint64, worldID string, shooter *entity.Entity) {
	w, ok := e.universe.Get(worldID)
	if !ok {
		return
	}
	facing := shooter.Facing
	if facing.IsZero() {
		facing = entity.DefaultFacing
	}
	velocity := facing.UnitVector().Scale(ProjectileSpeed)
	projectile := entity.NewProjectile(e.ids.Next(), shooter.ID, shooter.Position, velocity)
	if err := w.RegisterEntity(projectile); err != nil {
		e.invariantViolation(ctx, "fire projectile", err)
		return
	}
	shooter.NextFireTick = tick + max(e.cfg.ticksFor(FireCooldown), 1)
	e.scheduler.ScheduleAt(tick+e.cfg.ticksFor(ProjectileTTL), func(uint64) {
		projectile.Kill()
	})
	e.metrics.Add("projectiles_fired", 1)
}
