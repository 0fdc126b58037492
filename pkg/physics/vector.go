// pkg/physics/vector.go
package physics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Vector2D represents a 2D vector with x and y components.
// It is a value type: every operation returns a new vector.
type Vector2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (v Vector2D) vec() r2.Vec {
	return r2.Vec(v)
}

// Add returns the sum of two vectors
func (v Vector2D) Add(other Vector2D) Vector2D {
	return Vector2D(r2.Add(v.vec(), other.vec()))
}

// Sub returns the difference between two vectors
func (v Vector2D) Sub(other Vector2D) Vector2D {
	return Vector2D(r2.Sub(v.vec(), other.vec()))
}

// Scale multiplies the vector by a scalar value
func (v Vector2D) Scale(factor float64) Vector2D {
	return Vector2D(r2.Scale(factor, v.vec()))
}

// Div divides both components by a scalar value.
func (v Vector2D) Div(divisor float64) Vector2D {
	return Vector2D{
		X: v.X / divisor,
		Y: v.Y / divisor,
	}
}

// Length returns the magnitude of the vector
func (v Vector2D) Length() float64 {
	return r2.Norm(v.vec())
}

// LengthSquared returns magnitude squared (optimization for comparisons)
func (v Vector2D) LengthSquared() float64 {
	return r2.Norm2(v.vec())
}

// Normalize returns a unit vector in the same direction.
// A vector of exactly zero length is returned unchanged.
func (v Vector2D) Normalize() Vector2D {
	length := v.Length()
	if length == 0 {
		return v
	}
	return v.Scale(1.0 / length)
}

// Rotate rotates the vector by angle (in radians) around the origin
func (v Vector2D) Rotate(angle float64) Vector2D {
	return Vector2D(r2.Rotate(v.vec(), angle, r2.Vec{}))
}

// Ortho returns the vector rotated a quarter turn clockwise.
func (v Vector2D) Ortho() Vector2D {
	return Vector2D{X: v.Y, Y: -v.X}
}

// Angle returns the angle of the vector in radians
func (v Vector2D) Angle() float64 {
	return math.Atan2(v.Y, v.X)
}

// Distance returns the distance between two vectors
func (v Vector2D) Distance(other Vector2D) float64 {
	return Dist(v, other)
}

// Dot returns the dot product of two vectors
func (v Vector2D) Dot(other Vector2D) float64 {
	return Dot(v, other)
}

// String formats the vector as "(x, y)" with six decimals.
func (v Vector2D) String() string {
	return fmt.Sprintf("(%f, %f)", v.X, v.Y)
}

// FromAngle creates a vector from an angle and magnitude
func FromAngle(angle float64, magnitude float64) Vector2D {
	return Vector2D{
		X: magnitude * math.Cos(angle),
		Y: magnitude * math.Sin(angle),
	}
}

// Dist returns the euclidean distance between a and b.
func Dist(a, b Vector2D) float64 {
	return r2.Norm(r2.Sub(a.vec(), b.vec()))
}

// Dot returns the dot product of a and b.
func Dot(a, b Vector2D) float64 {
	return r2.Dot(a.vec(), b.vec())
}

// Cross returns the z component of the 3D cross product of a and b.
func Cross(a, b Vector2D) float64 {
	return r2.Cross(a.vec(), b.vec())
}
