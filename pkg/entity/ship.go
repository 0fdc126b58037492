// pkg/entity/ship.go
package entity

import (
	"errors"

	"github.com/opd-ai/go-swingbye/pkg/physics"
)

var (
	// ErrNotDocked is returned for operations that need a docked ship.
	ErrNotDocked = errors.New("ship is not docked")
	// ErrZeroPointing is returned when a pointing direction has no length.
	ErrZeroPointing = errors.New("pointing direction has zero length")
)

// Default launch parameters.
const (
	DefaultLaunchSpeed = 5.0
	DefaultClearance   = 10.0
)

// Ship drives an Entity that starts docked on a planet. While docked the
// entity sits at Clearance from the planet's centre along Pointing; Launch
// releases it with a velocity along Pointing.
type Ship struct {
	*Entity
	// Pointing is the unit launch direction.
	Pointing    physics.Vector2D
	LaunchSpeed float64
	Clearance   float64

	parent *Planet
}

// NewShip docks e on parent pointing along +y.
func NewShip(e *Entity, parent *Planet) *Ship {
	return &Ship{
		Entity:      e,
		Pointing:    physics.Vector2D{X: 0, Y: 1},
		LaunchSpeed: DefaultLaunchSpeed,
		Clearance:   DefaultClearance,
		parent:      parent,
	}
}

// Docked reports whether the ship is still attached to a planet.
func (s *Ship) Docked() bool {
	return s.parent != nil
}

// Parent returns the planet the ship is docked on, or nil after launch.
func (s *Ship) Parent() *Planet {
	return s.parent
}

// Heading returns Pointing while docked and the direction of travel after
// launch. A launched ship at rest heads along +y.
func (s *Ship) Heading() physics.Vector2D {
	if s.Docked() {
		return s.Pointing
	}
	speed := s.Velocity.Length()
	if speed == 0 {
		return physics.Vector2D{X: 0, Y: 1}
	}
	return s.Velocity.Div(speed)
}

// Point sets the launch direction. dir need not be normalised.
func (s *Ship) Point(dir physics.Vector2D) error {
	if !s.Docked() {
		return ErrNotDocked
	}
	if dir.Length() == 0 {
		return ErrZeroPointing
	}
	s.Pointing = dir.Normalize()
	return nil
}

// PointAt aims the ship from its planet's cached position toward target.
func (s *Ship) PointAt(target physics.Vector2D) error {
	if !s.Docked() {
		return ErrNotDocked
	}
	return s.Point(target.Sub(s.parent.GetPosition()))
}

// Follow places a docked ship on its planet for time t and matches the
// planet's velocity. It does nothing after launch.
func (s *Ship) Follow(t float64) {
	if !s.Docked() {
		return
	}
	s.Position = s.parent.PosAt(t).Add(s.Pointing.Scale(s.Clearance))
	s.Velocity = s.parent.VelAt(t)
}

// LaunchVelocity is the velocity Launch would assign: along Pointing, with
// LaunchSpeed plus the planet's current speed.
func (s *Ship) LaunchVelocity() physics.Vector2D {
	if !s.Docked() {
		return s.Velocity
	}
	return s.Pointing.Scale(s.LaunchSpeed + s.parent.GetVelocity().Length())
}

// Launch releases the ship.
func (s *Ship) Launch() error {
	if !s.Docked() {
		return ErrNotDocked
	}
	s.Velocity = s.LaunchVelocity()
	s.parent = nil
	return nil
}
