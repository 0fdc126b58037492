// pkg/entity/planet.go
package entity

import (
	"errors"
	"fmt"
	"sync"

	"github.com/opd-ai/go-swingbye/pkg/physics"
)

// ErrParentCycle is returned when attaching a parent would make the chain loop.
var ErrParentCycle = errors.New("parent chain would form a cycle")

// fallbackSolver evaluates planets built as struct literals.
var fallbackSolver = sync.OnceValue(physics.DefaultSolver)

// OrbitDriven is a body whose position and velocity are pure functions of
// absolute time. It exposes no setters for either.
type OrbitDriven interface {
	physics.Massive
	GetVelocity() physics.Vector2D
	PosAt(t float64) physics.Vector2D
	VelAt(t float64) physics.Vector2D
	SetTime(t float64)
}

// Planet follows a prescribed Keplerian orbit around an optional parent.
//
// Position and velocity are cached outputs refreshed only by SetTime. The
// orbital elements may be edited at any time; the cache picks the change up
// on the next SetTime.
//
// A parent may be shared by several planets and outlives any World list it
// was removed from for as long as a child still references it.
type Planet struct {
	Mass float64
	physics.Orbit
	// Anchor is added once, at the parentless end of the chain.
	Anchor physics.Vector2D

	parent *Planet
	solver *physics.Solver

	time     float64
	position physics.Vector2D
	velocity physics.Vector2D
}

// NewPlanet creates a planet evaluated by solver. A nil solver selects
// physics.DefaultSolver. The cached state is computed for time 0.
func NewPlanet(solver *physics.Solver, mass float64, orbit physics.Orbit, anchor physics.Vector2D) *Planet {
	if solver == nil {
		solver = physics.DefaultSolver()
	}
	p := &Planet{
		Mass:   mass,
		Orbit:  orbit,
		Anchor: anchor,
		solver: solver,
	}
	p.SetTime(0)
	return p
}

// Validate checks the mass and the orbital elements.
func (p *Planet) Validate() error {
	if p.Mass <= 0 {
		return fmt.Errorf("%w: %g", physics.ErrNonPositiveMass, p.Mass)
	}
	return p.Orbit.Validate()
}

// Parent returns the planet this one orbits, or nil.
func (p *Planet) Parent() *Planet {
	return p.parent
}

// SetParent attaches p to parent. Passing nil is equivalent to RemoveParent.
// The cached state is not refreshed until the next SetTime.
func (p *Planet) SetParent(parent *Planet) error {
	for q := parent; q != nil; q = q.parent {
		if q == p {
			return ErrParentCycle
		}
	}
	p.parent = parent
	return nil
}

// RemoveParent detaches p, making it the root of its chain.
func (p *Planet) RemoveParent() {
	p.parent = nil
}

// Solver returns the solver evaluating this planet. A planet built without
// NewPlanet shares one default solver.
func (p *Planet) Solver() *physics.Solver {
	if p.solver == nil {
		return fallbackSolver()
	}
	return p.solver
}

// SetSolver rebinds the planet to solver, or to the default one for nil.
// The cached state is not refreshed until the next SetTime.
func (p *Planet) SetSolver(solver *physics.Solver) {
	p.solver = solver
}

// RelPosAt returns the offset from the parent at absolute time t, in the
// parent's frame. A parentless planet has a zero offset.
func (p *Planet) RelPosAt(t float64) physics.Vector2D {
	if p.parent == nil {
		return physics.Vector2D{}
	}
	return p.Solver().Offset(p.Orbit, p.Mass+p.parent.Mass, t)
}

// PosAt returns the absolute position at time t: the sum of the relative
// offsets along the parent chain plus the anchor of the root.
func (p *Planet) PosAt(t float64) physics.Vector2D {
	var ret physics.Vector2D
	for q := p; q != nil; q = q.parent {
		ret = ret.Add(q.RelPosAt(t))
		if q.parent == nil {
			ret = ret.Add(q.Anchor)
		}
	}
	return ret
}

// VelAt approximates the velocity at time t with a central difference of
// PosAt over the solver's VelocityStep.
func (p *Planet) VelAt(t float64) physics.Vector2D {
	h := p.Solver().Params().VelocityStep
	return p.PosAt(t + h/2.0).Sub(p.PosAt(t - h/2.0)).Div(h)
}

// SetTime recomputes and caches position and velocity for time t.
func (p *Planet) SetTime(t float64) {
	p.time = t
	p.position = p.PosAt(t)
	p.velocity = p.VelAt(t)
}

// Time returns the instant the cache was last computed for.
func (p *Planet) Time() float64 {
	return p.time
}

// GetPosition returns the cached position.
func (p *Planet) GetPosition() physics.Vector2D {
	return p.position
}

// GetVelocity returns the cached velocity.
func (p *Planet) GetVelocity() physics.Vector2D {
	return p.velocity
}

// GetMass returns the planet's mass.
func (p *Planet) GetMass() float64 {
	return p.Mass
}

func (p *Planet) String() string {
	return fmt.Sprintf("Planet(mass=%f, maxis=%f, ecc=%f, time0=%f, incl=%f, parg=%f, anchor=%s)",
		p.Mass, p.SemiMajorAxis, p.Eccentricity, p.Epoch, p.Inclination, p.PeriapsisArg, p.Anchor)
}

var _ OrbitDriven = (*Planet)(nil)
