// pkg/entity/entity.go
package entity

import (
	"fmt"

	"github.com/opd-ai/go-swingbye/pkg/physics"
)

// DefaultMass is the mass given to entities and planets when none is specified.
const DefaultMass = 1.0

// Entity is a free body, such as a spacecraft, whose state is advanced by an
// integrator. All fields are freely mutable.
type Entity struct {
	Position physics.Vector2D
	Velocity physics.Vector2D
	Mass     float64
}

// NewEntity creates a free body.
func NewEntity(pos, vel physics.Vector2D, mass float64) *Entity {
	return &Entity{
		Position: pos,
		Velocity: vel,
		Mass:     mass,
	}
}

// GetPosition returns the entity's position
func (e *Entity) GetPosition() physics.Vector2D {
	return e.Position
}

// GetVelocity returns the entity's velocity
func (e *Entity) GetVelocity() physics.Vector2D {
	return e.Velocity
}

// GetMass returns the entity's mass
func (e *Entity) GetMass() float64 {
	return e.Mass
}

// SetPosition overwrites the position.
func (e *Entity) SetPosition(pos physics.Vector2D) {
	e.Position = pos
}

// SetVelocity overwrites the velocity.
func (e *Entity) SetVelocity(vel physics.Vector2D) {
	e.Velocity = vel
}

// KineticEnergy returns 0.5*m*|v|^2.
func (e *Entity) KineticEnergy() float64 {
	return 0.5 * e.Mass * e.Velocity.LengthSquared()
}

func (e *Entity) String() string {
	return fmt.Sprintf("Entity(pos=%s, vel=%s, mass=%f)", e.Position, e.Velocity, e.Mass)
}

var _ physics.Movable = (*Entity)(nil)
