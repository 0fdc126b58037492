package physics

// Params holds the tuning constants of one simulation. Independent
// simulations may use different values without interfering.
type Params struct {
	// Gravity is the gravitational constant G.
	Gravity float64 `json:"gravity"`
	// Softening is added to the separation distance in the force law.
	Softening float64 `json:"softening"`
	// Tolerance is the Newton-Raphson stopping threshold on |dE|.
	Tolerance float64 `json:"tolerance"`
	// MaxIterations caps the Newton-Raphson loop.
	MaxIterations int `json:"maxIterations"`
	// VelocityStep is the full width of the central difference used for
	// orbit-driven velocities.
	VelocityStep float64 `json:"velocityStep"`
}

// DefaultParams returns the stock tuning.
func DefaultParams() Params {
	return Params{
		Gravity:       1.0,
		Softening:     1.0,
		Tolerance:     1e-5,
		MaxIterations: 1000,
		VelocityStep:  0.16666,
	}
}

// WithDefaults fills zero fields from DefaultParams. Zero therefore means
// unset; scenario files reject an explicit zero before it gets here.
func (p Params) WithDefaults() Params {
	d := DefaultParams()
	if p.Gravity == 0 {
		p.Gravity = d.Gravity
	}
	if p.Softening == 0 {
		p.Softening = d.Softening
	}
	if p.Tolerance == 0 {
		p.Tolerance = d.Tolerance
	}
	if p.MaxIterations == 0 {
		p.MaxIterations = d.MaxIterations
	}
	if p.VelocityStep == 0 {
		p.VelocityStep = d.VelocityStep
	}
	return p
}
