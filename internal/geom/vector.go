// Package geom holds the 2D math primitives shared by the simulation.
package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Vector is a 2D value. Arithmetic returns new vectors; only SetX and SetY
// mutate the receiver.
type Vector struct {
	v mgl64.Vec2
}

// Zero is the origin.
var Zero = Vector{}

// Vec constructs a vector from its components.
func Vec(x, y float64) Vector {
	return Vector{v: mgl64.Vec2{x, y}}
}

func (a Vector) X() float64 { return a.v.X() }
func (a Vector) Y() float64 { return a.v.Y() }

// SetX overwrites the x component in place.
func (a *Vector) SetX(x float64) { a.v[0] = x }

// SetY overwrites the y component in place.
func (a *Vector) SetY(y float64) { a.v[1] = y }

func (a Vector) Add(b Vector) Vector { return Vector{v: a.v.Add(b.v)} }
func (a Vector) Sub(b Vector) Vector { return Vector{v: a.v.Sub(b.v)} }
func (a Vector) Scale(k float64) Vector { return Vector{v: a.v.Mul(k)} }

// Magnitude is the euclidean length.
func (a Vector) Magnitude() float64 {
	return a.v.Len()
}

// UnitVector returns a vector of length 1 pointing the same way. The zero
// vector has no direction and is returned unchanged.
func (a Vector) UnitVector() Vector {
	if a.IsZero() {
		return a
	}
	return Vector{v: a.v.Normalize()}
}

// ClampMagnitude shortens the vector to max when it is longer. A vector with
// a NaN or infinite component clamps to Zero.
func (a Vector) ClampMagnitude(max float64) Vector {
	if max < 0 || math.IsNaN(max) || !a.IsFinite() {
		return Zero
	}
	mag := a.Magnitude()
	if mag <= max || mag == 0 {
		return a
	}
	if math.IsInf(mag, 0) {
		// Components are finite but their squares overflow.
		a = a.Scale(1 / math.Max(math.Abs(a.v[0]), math.Abs(a.v[1])))
		mag = a.Magnitude()
	}
	return a.Scale(max / mag)
}

func (a Vector) IsZero() bool {
	return a.v[0] == 0 && a.v[1] == 0
}

// IsFinite reports whether neither component is NaN or infinite.
func (a Vector) IsFinite() bool {
	return finite(a.v[0]) && finite(a.v[1])
}

// Sanitize replaces non-finite components with zero.
func (a Vector) Sanitize() Vector {
	out := a
	if !finite(out.v[0]) {
		out.v[0] = 0
	}
	if !finite(out.v[1]) {
		out.v[1] = 0
	}
	return out
}

// ApproxEqual compares component-wise within the mathgl epsilon.
func (a Vector) ApproxEqual(b Vector) bool {
	return a.v.ApproxEqual(b.v)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
