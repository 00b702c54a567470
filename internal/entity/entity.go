// Package entity defines the mutable simulation objects owned by worlds.
package entity

import (
	"fmt"
	"strconv"
	"sync/atomic"

	"terrafort/server/internal/geom"
)

// Kind tags the closed set of entity variants.
type Kind uint8

const (
	KindPlayer Kind = iota + 1
	KindProjectile
)

func (k Kind) String() string {
	switch k {
	case KindPlayer:
		return "player"
	case KindProjectile:
		return "projectile"
	default:
		return "unknown"
	}
}

const (
	AssetPlayer     = "player"
	AssetProjectile = "rock"

	DefaultPlayerMass      = 10.0
	DefaultPlayerFriction  = 4.0
	DefaultPlayerMoveSpeed = 400.0
	DefaultProjectileMass  = 1.0
)

var (
	DefaultSpawn          = geom.Vec(50, 50)
	DefaultPlayerSize     = geom.Vec(32, 32)
	DefaultProjectileSize = geom.Vec(8, 8)
	DefaultFacing         = geom.Vec(1, 0)
)

// ID identifies an entity for its whole lifetime.
type ID uint64

func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Entity is a simulation object. Kind-specific fields are only meaningful
// for their kind: Facing and NextFireTick for players, OwnerID for
// projectiles.
type Entity struct {
	ID   ID
	Kind Kind
	Name string
	// Asset is opaque to the server and forwarded to clients as-is.
	Asset string

	Position     geom.Vector
	Velocity     geom.Vector
	Acceleration geom.Vector
	Size         geom.Vector
	Mass         float64
	Friction     float64
	MoveSpeed    float64

	Facing       geom.Vector
	NextFireTick uint64

	OwnerID ID

	dead  atomic.Bool
	dirty atomic.Bool
}

// NewPlayer builds a live, dirty player at pos.
func NewPlayer(id ID, name string, pos geom.Vector) *Entity {
	e := &Entity{
		ID:        id,
		Kind:      KindPlayer,
		Name:      name,
		Asset:     AssetPlayer,
		Position:  pos,
		Size:      DefaultPlayerSize,
		Mass:      DefaultPlayerMass,
		Friction:  DefaultPlayerFriction,
		MoveSpeed: DefaultPlayerMoveSpeed,
		Facing:    DefaultFacing,
	}
	e.dirty.Store(true)
	return e
}

// NewProjectile builds a frictionless projectile travelling at vel.
func NewProjectile(id ID, owner ID, pos, vel geom.Vector) *Entity {
	e := &Entity{
		ID:       id,
		Kind:     KindProjectile,
		Asset:    AssetProjectile,
		Position: pos,
		Velocity: vel,
		Size:     DefaultProjectileSize,
		Mass:     DefaultProjectileMass,
		OwnerID:  owner,
	}
	e.dirty.Store(true)
	return e
}

// Kill marks the entity dead. Removal happens later during garbage
// collection so the death is broadcast first. Killing twice is a no-op.
func (e *Entity) Kill() {
	if e == nil {
		return
	}
	if e.dead.CompareAndSwap(false, true) {
		e.dirty.Store(true)
	}
}

func (e *Entity) IsDead() bool {
	return e == nil || e.dead.Load()
}

func (e *Entity) MarkDirty() {
	if e == nil {
		return
	}
	e.dirty.Store(true)
}

// ShouldUpdate reports whether the entity changed since the last broadcast.
func (e *Entity) ShouldUpdate() bool {
	return e != nil && e.dirty.Load()
}

// ClearDirty resets the dirty flag once the change has been broadcast.
func (e *Entity) ClearDirty() {
	if e == nil {
		return
	}
	e.dirty.Store(false)
}

// HalfExtents returns half of the bounding box size.
func (e *Entity) HalfExtents() geom.Vector {
	return e.Size.Scale(0.5)
}

// Bounds returns the axis-aligned box as min and max corners.
func (e *Entity) Bounds() (geom.Vector, geom.Vector) {
	half := e.HalfExtents()
	return e.Position.Sub(half), e.Position.Add(half)
}

func (e *Entity) String() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s%d@(%.2f,%.2f)", e.Kind, e.ID, e.Position.X(), e.Position.Y())
}

// IDSource hands out process-unique entity ids starting at 1.
type IDSource struct {
	next atomic.Uint64
}

func (s *IDSource) Next() ID {
	return ID(s.next.Add(1))
}
