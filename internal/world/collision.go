package world

import (
	"math"

	"terrafort/server/internal/entity"
	"terrafort/server/internal/geom"
)

// CollisionStats summarises one collision pass.
type CollisionStats struct {
	Contacts int
	Kills    int
}

// RunCollisionLogic resolves overlaps between live entities and against the
// world bounds. Pairs are visited in id order so results are deterministic.
func (w *World) RunCollisionLogic() CollisionStats {
	var stats CollisionStats
	live := w.Alive()
	for i := 0; i < len(live); i++ {
		a := live[i]
		for j := i + 1; j < len(live); j++ {
			b := live[j]
			if a.IsDead() {
				break
			}
			if b.IsDead() || !overlaps(a, b) {
				continue
			}
			stats.Contacts++
			if resolvePair(a, b) {
				stats.Kills++
			}
		}
	}
	if w.terrain.bounded() {
		for _, e := range live {
			if e.IsDead() {
				continue
			}
			if w.confine(e) {
				stats.Kills++
			}
		}
	}
	return stats
}

func overlaps(a, b *entity.Entity) bool {
	aMin, aMax := a.Bounds()
	bMin, bMax := b.Bounds()
	return aMin.X() < bMax.X() && bMin.X() < aMax.X() &&
		aMin.Y() < bMax.Y() && bMin.Y() < aMax.Y()
}

// resolvePair applies the response for one overlapping pair and reports
// whether an entity died.
func resolvePair(a, b *entity.Entity) bool {
	switch {
	case a.Kind == entity.KindPlayer && b.Kind == entity.KindPlayer:
		separate(a, b)
	case a.Kind == entity.KindProjectile && b.Kind == entity.KindPlayer:
		return hit(a, b)
	case a.Kind == entity.KindPlayer && b.Kind == entity.KindProjectile:
		return hit(b, a)
	}
	return false
}

// hit transfers the projectile's momentum to the target and expires it.
func hit(projectile, target *entity.Entity) bool {
	if projectile.OwnerID == target.ID {
		return false
	}
	ratio := projectile.Mass / math.Max(target.Mass, 1e-6)
	target.Velocity = target.Velocity.Add(projectile.Velocity.Scale(ratio))
	target.MarkDirty()
	projectile.Kill()
	return true
}

// separate pushes two bodies apart along the axis of least penetration and
// reflects their approach velocity on that axis.
func separate(a, b *entity.Entity) {
	delta := b.Position.Sub(a.Position)
	ha, hb := a.HalfExtents(), b.HalfExtents()
	penX := ha.X() + hb.X() - math.Abs(delta.X())
	penY := ha.Y() + hb.Y() - math.Abs(delta.Y())
	if penX <= 0 || penY <= 0 {
		return
	}
	if penX < penY {
		dir := sign(delta.X())
		a.Position.SetX(a.Position.X() - dir*penX/2)
		b.Position.SetX(b.Position.X() + dir*penX/2)
		if (b.Velocity.X()-a.Velocity.X())*dir < 0 {
			av, bv := a.Velocity.X(), b.Velocity.X()
			a.Velocity.SetX(-av)
			b.Velocity.SetX(-bv)
		}
	} else {
		dir := sign(delta.Y())
		a.Position.SetY(a.Position.Y() - dir*penY/2)
		b.Position.SetY(b.Position.Y() + dir*penY/2)
		if (b.Velocity.Y()-a.Velocity.Y())*dir < 0 {
			av, bv := a.Velocity.Y(), b.Velocity.Y()
			a.Velocity.SetY(-av)
			b.Velocity.SetY(-bv)
		}
	}
	a.MarkDirty()
	b.MarkDirty()
}

// confine keeps players inside the world and expires projectiles that
// left it. Reports whether the entity died.
func (w *World) confine(e *entity.Entity) bool {
	if e.Kind == entity.KindProjectile {
		p := e.Position
		if p.X() < 0 || p.Y() < 0 || p.X() > w.terrain.Width || p.Y() > w.terrain.Height {
			e.Kill()
			return true
		}
		return false
	}
	half := e.HalfExtents()
	pos, vel := e.Position, e.Velocity
	x, vx := clampAxis(pos.X(), vel.X(), half.X(), w.terrain.Width)
	y, vy := clampAxis(pos.Y(), vel.Y(), half.Y(), w.terrain.Height)
	next := geom.Vec(x, y)
	nextVel := geom.Vec(vx, vy)
	if next != pos || nextVel != vel {
		e.Position = next
		e.Velocity = nextVel
		e.MarkDirty()
	}
	return false
}

func clampAxis(p, v, half, limit float64) (float64, float64) {
	lo, hi := half, limit-half
	if hi < lo {
		return limit / 2, 0
	}
	if p < lo {
		return lo, 0
	}
	if p > hi {
		return hi, 0
	}
	return p, v
}

func sign(f float64) float64 {
	if f < 0 {
		return -1
	}
	return 1
}
