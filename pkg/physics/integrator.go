package physics

// Massive is anything the force model can act on: a point with a mass.
type Massive interface {
	GetPosition() Vector2D
	GetMass() float64
}

// Movable is a free body whose state an integrator may overwrite.
// Orbit-driven bodies deliberately do not implement it.
type Movable interface {
	Massive
	GetVelocity() Vector2D
	SetPosition(pos Vector2D)
	SetVelocity(vel Vector2D)
}

// ForceFunc returns the net force on body at absolute time t.
type ForceFunc func(body Massive, t float64) Vector2D

// Integrator advances body in place from time t by dt.
type Integrator func(body Movable, force ForceFunc, t, dt float64)

// Euler is the first-order step: position moves with the old velocity, then
// velocity takes one force sample taken at the pre-step position.
func Euler(body Movable, force ForceFunc, t, dt float64) {
	f := force(body, t)
	body.SetPosition(body.GetPosition().Add(body.GetVelocity().Scale(dt)))
	body.SetVelocity(body.GetVelocity().Add(f.Div(body.GetMass()).Scale(dt)))
}

// RK4 is the three-sample Simpson-weighted step used by the world.
//
// The force is sampled at (pos, t), at (pos + vel*dt/2, t+dt/2) and at
// (pos + vel*dt, t). The third sample reuses t rather than t+dt; this is the
// established behaviour and is kept until the product owner decides otherwise.
func RK4(body Movable, force ForceFunc, t, dt float64) {
	vel := body.GetVelocity()

	fStart := force(body, t)
	body.SetPosition(body.GetPosition().Add(vel.Scale(dt / 2.0)))
	fHalf := force(body, t+dt/2.0)
	body.SetPosition(body.GetPosition().Add(vel.Scale(dt / 2.0)))
	fEnd := force(body, t)

	sum := fStart.Div(6.0).Add(fHalf.Scale(4.0).Div(6.0)).Add(fEnd.Div(6.0))
	body.SetVelocity(vel.Add(sum.Div(body.GetMass()).Scale(dt)))
}
