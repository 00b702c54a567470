package physics

import (
	"context"
	"math"
	"testing"

	"pgregory.net/rapid"

	"terrafort/server/internal/entity"
	"terrafort/server/internal/geom"
)

func TestApplyIntegratesAccelerationThenPosition(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	e := entity.NewPlayer(1, "a", geom.Vec(0, 0))
	e.Friction = 0
	e.Acceleration = geom.Vec(5, 0)
	e.ClearDirty()

	engine.Apply(e, 0.1)

	if math.Abs(e.Velocity.X()-0.5) > 1e-9 || e.Velocity.Y() != 0 {
		t.Fatalf("unexpected velocity (%v, %v)", e.Velocity.X(), e.Velocity.Y())
	}
	if math.Abs(e.Position.X()-0.05) > 1e-9 || e.Position.Y() != 0 {
		t.Fatalf("unexpected position (%v, %v)", e.Position.X(), e.Position.Y())
	}
	if !e.ShouldUpdate() {
		t.Fatalf("moving entity should be dirty")
	}
}

func TestApplyLeavesRestingEntityClean(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	e := entity.NewPlayer(1, "a", geom.Vec(3, 4))
	e.ClearDirty()

	engine.Apply(e, 1.0/30)

	if e.ShouldUpdate() {
		t.Fatalf("entity at rest should not be marked dirty")
	}
}

func TestFrictionNeverReversesVelocity(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	e := entity.NewPlayer(1, "a", geom.Vec(0, 0))
	e.Velocity = geom.Vec(10, -10)
	e.Friction = 1000

	engine.Apply(e, 0.5)

	if !e.Velocity.IsZero() {
		t.Fatalf("expected velocity to stop, got (%v, %v)", e.Velocity.X(), e.Velocity.Y())
	}
}

func TestApplyClampsPathologicalInput(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	e := entity.NewPlayer(1, "a", geom.Vec(math.NaN(), 1))
	e.Velocity = geom.Vec(math.Inf(1), 0)
	e.Mass = -5

	engine.Apply(e, math.NaN())
	if e.Mass < engine.Config().MinMass {
		t.Fatalf("mass should be clamped, got %v", e.Mass)
	}

	e.Acceleration = geom.Vec(3, 4)
	engine.Apply(e, 1.0/30)
	if !e.Position.IsFinite() || !e.Velocity.IsFinite() {
		t.Fatalf("expected finite state after integrating, got pos=%v vel=%v", e.Position, e.Velocity)
	}
}

func TestApplyClampsOverflowingVelocity(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	cases := []struct {
		name     string
		vel, acc geom.Vector
	}{
		{"sum overflows", geom.Vec(math.MaxFloat64, 0), geom.Vec(math.MaxFloat64, 0)},
		{"magnitude overflows", geom.Vec(math.MaxFloat64, -math.MaxFloat64), geom.Vec(0, 0)},
		{"opposite extremes", geom.Vec(-math.MaxFloat64, math.MaxFloat64), geom.Vec(-math.MaxFloat64, math.MaxFloat64)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := entity.NewPlayer(1, "a", geom.Vec(0, 0))
			e.Velocity = tc.vel
			e.Acceleration = tc.acc
			e.Friction = 0

			engine.Apply(e, 1.0/30)

			if !e.Position.IsFinite() || !e.Velocity.IsFinite() {
				t.Fatalf("expected finite state, got pos=%v vel=%v", e.Position, e.Velocity)
			}
			if moved := Displacement(geom.Vec(0, 0), e.Position); !(moved <= engine.Config().MaxMovement) {
				t.Fatalf("moved %v, bound is %v", moved, engine.Config().MaxMovement)
			}
			if speed := e.Velocity.Magnitude(); !(speed <= engine.Config().MaxSpeed+1e-6) {
				t.Fatalf("speed %v exceeds %v", speed, engine.Config().MaxSpeed)
			}
		})
	}
}

func TestDisplacementBoundedByMaxMovement(t *testing.T) {
	engine := NewEngine(Config{MaxMovement: 10, MaxSpeed: 1e9})
	rapid.Check(t, func(t *rapid.T) {
		e := entity.NewPlayer(1, "p", geom.Vec(0, 0))
		extreme := rapid.SampledFrom([]float64{-math.MaxFloat64, -1e300, 0, 1e300, math.MaxFloat64})
		component := func(label string, limit float64) float64 {
			if rapid.Bool().Draw(t, label+"_extreme") {
				return extreme.Draw(t, label)
			}
			return rapid.Float64Range(-limit, limit).Draw(t, label)
		}
		e.Velocity = geom.Vec(component("vx", 1e6), component("vy", 1e6))
		e.Acceleration = geom.Vec(component("ax", 1e8), component("ay", 1e8))
		e.Friction = rapid.Float64Range(0, 10).Draw(t, "friction")
		dt := rapid.Float64Range(0, 2).Draw(t, "dt")

		before := e.Position
		engine.Apply(e, dt)

		if moved := Displacement(before, e.Position); !(moved <= 10+1e-9) {
			t.Fatalf("moved %v in one step, bound is 10", moved)
		}
	})
}

func TestApplyAllReachesEveryEntity(t *testing.T) {
	engine := NewEngine(Config{Workers: 3})
	entities := make([]*entity.Entity, 10)
	for i := range entities {
		e := entity.NewProjectile(entity.ID(i+1), 0, geom.Vec(0, 0), geom.Vec(30, 0))
		entities[i] = e
	}

	if err := engine.ApplyAll(context.Background(), entities, 0.1); err != nil {
		t.Fatalf("ApplyAll returned error: %v", err)
	}
	for _, e := range entities {
		if math.Abs(e.Position.X()-3) > 1e-9 {
			t.Fatalf("entity %d not integrated: x=%v", e.ID, e.Position.X())
		}
	}
}

func TestApplyAllStopsOnCancelledContext(t *testing.T) {
	engine := NewEngine(Config{Workers: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	entities := []*entity.Entity{entity.NewProjectile(1, 0, geom.Vec(0, 0), geom.Vec(1, 0))}
	if err := engine.ApplyAll(ctx, entities, 0.1); err == nil {
		t.Fatalf("expected cancellation error")
	}
}
