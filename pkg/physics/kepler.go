package physics

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrParabolicOrbit is returned for eccentricity exactly 1, which has no closed form here.
	ErrParabolicOrbit = errors.New("parabolic orbits (ecc == 1) are not supported")
	// ErrNegativeEccentricity is returned for ecc < 0.
	ErrNegativeEccentricity = errors.New("eccentricity must not be negative")
	// ErrInvalidSemiMajorAxis is returned when the sign of maxis does not match the orbit kind.
	ErrInvalidSemiMajorAxis = errors.New("invalid semi-major axis")
	// ErrNonPositiveMass is returned for a mass <= 0.
	ErrNonPositiveMass = errors.New("mass must be positive")
)

// OrbitKind classifies an orbit by eccentricity.
type OrbitKind int

const (
	OrbitElliptic OrbitKind = iota
	OrbitParabolic
	OrbitHyperbolic
)

func (k OrbitKind) String() string {
	switch k {
	case OrbitElliptic:
		return "elliptic"
	case OrbitParabolic:
		return "parabolic"
	case OrbitHyperbolic:
		return "hyperbolic"
	default:
		return fmt.Sprintf("OrbitKind(%d)", int(k))
	}
}

// Orbit holds Keplerian elements relative to a parent body.
type Orbit struct {
	SemiMajorAxis float64 `json:"maxis"`
	Eccentricity  float64 `json:"ecc"`
	Epoch         float64 `json:"time0"`
	Inclination   float64 `json:"incl"`
	PeriapsisArg  float64 `json:"parg"`
}

// Kind reports which branch of the solver the orbit takes.
func (o Orbit) Kind() OrbitKind {
	switch {
	case o.Eccentricity < 1:
		return OrbitElliptic
	case o.Eccentricity == 1:
		return OrbitParabolic
	default:
		return OrbitHyperbolic
	}
}

// Validate checks the elements against what the solver can evaluate.
// Hyperbolic orbits use the negative semi-major axis convention.
func (o Orbit) Validate() error {
	if o.Eccentricity < 0 {
		return fmt.Errorf("%w: %g", ErrNegativeEccentricity, o.Eccentricity)
	}
	switch o.Kind() {
	case OrbitParabolic:
		return ErrParabolicOrbit
	case OrbitElliptic:
		if o.SemiMajorAxis <= 0 {
			return fmt.Errorf("%w: elliptic orbit needs maxis > 0, got %g", ErrInvalidSemiMajorAxis, o.SemiMajorAxis)
		}
	case OrbitHyperbolic:
		if o.SemiMajorAxis >= 0 {
			return fmt.Errorf("%w: hyperbolic orbit needs maxis < 0, got %g", ErrInvalidSemiMajorAxis, o.SemiMajorAxis)
		}
	}
	return nil
}

// SolveReport describes one Kepler equation solve.
type SolveReport struct {
	Kind         OrbitKind
	Eccentricity float64
	MeanAnomaly  float64
	Anomaly      float64
	Iterations   int
	Converged    bool
	// Unsupported is set when no closed form applied and the offset fell back to zero.
	Unsupported  bool
}

// Observer receives a report for every solve, including parabolic fall-throughs.
type Observer interface {
	ObserveSolve(report SolveReport)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(report SolveReport)

// ObserveSolve calls f(report).
func (f ObserverFunc) ObserveSolve(report SolveReport) {
	f(report)
}

// Solver evaluates Keplerian orbits with a fixed set of Params.
// A Solver holds no mutable state and may be shared between planets.
type Solver struct {
	params   Params
	observer Observer
}

// NewSolver creates a solver. A nil observer discards reports.
func NewSolver(params Params, observer Observer) *Solver {
	return &Solver{
		params:   params.WithDefaults(),
		observer: observer,
	}
}

// Params returns the solver tuning.
func (s *Solver) Params() Params {
	return s.params
}

func (s *Solver) report(r SolveReport) {
	if s.observer != nil {
		s.observer.ObserveSolve(r)
	}
}

// Eccentric solves M = E - ecc*sin(E) for E by Newton-Raphson seeded at M.
// On hitting the iteration cap, or when the iterate stops being finite, the
// last iterate is returned and the report is marked as not converged.
func (s *Solver) Eccentric(meanAnomaly, ecc float64) float64 {
	E := meanAnomaly
	dE := s.params.Tolerance + 1
	i := 0
	for math.Abs(dE) > s.params.Tolerance && i < s.params.MaxIterations {
		dE = (meanAnomaly - E + ecc*math.Sin(E)) / (1 - ecc*math.Cos(E))
		E += dE
		i++
	}
	s.report(SolveReport{
		Kind:         OrbitElliptic,
		Eccentricity: ecc,
		MeanAnomaly:  meanAnomaly,
		Anomaly:      E,
		Iterations:   i,
		Converged:    i < s.params.MaxIterations && isFinite(E),
	})
	return E
}

// Hyperbolic solves M = ecc*sinh(H) - H for H by Newton-Raphson seeded at M.
// Far from periapsis sinh overflows and the iterate turns NaN after one step.
func (s *Solver) Hyperbolic(meanAnomaly, ecc float64) float64 {
	H := meanAnomaly
	dH := s.params.Tolerance + 1
	i := 0
	for math.Abs(dH) > s.params.Tolerance && i < s.params.MaxIterations {
		dH = (meanAnomaly - ecc*math.Sinh(H) + H) / (ecc*math.Cosh(H) - 1)
		H += dH
		i++
	}
	s.report(SolveReport{
		Kind:         OrbitHyperbolic,
		Eccentricity: ecc,
		MeanAnomaly:  meanAnomaly,
		Anomaly:      H,
		Iterations:   i,
		Converged:    i < s.params.MaxIterations && isFinite(H),
	})
	return H
}

// Offset returns the position at absolute time t of a body on orbit o,
// relative to a parent, where mass is the sum of both masses.
// Parabolic orbits fall through to the zero vector.
func (s *Solver) Offset(o Orbit, mass, t float64) Vector2D {
	mu := s.params.Gravity * mass
	a := o.SemiMajorAxis
	ecc := o.Eccentricity

	var cosTheta, sinTheta, r float64

	switch {
	case 0 <= ecc && ecc < 1:
		period := math.Sqrt(4 * math.Pi * math.Pi * a * a * a / mu)
		tau := math.Mod(t-o.Epoch, period)
		M := 2 * math.Pi / period * tau
		E := s.Eccentric(M, ecc)

		denom := 1 - ecc*math.Cos(E)
		cosTheta = (math.Cos(E) - ecc) / denom
		sinTheta = math.Sqrt(1-ecc*ecc) * math.Sin(E) / denom
		r = a * denom

	case ecc > 1:
		n := math.Sqrt(-mu / (a * a * a))
		M := n * (t - o.Epoch)
		H := s.Hyperbolic(M, ecc)

		cosTheta = (ecc - math.Cosh(H)) / (ecc*math.Cosh(H) - 1)
		sinTheta = math.Copysign(1, H) * math.Sin(math.Acos(cosTheta))
		r = a * (1 - ecc*math.Cosh(H))

	default:
		s.report(SolveReport{Kind: o.Kind(), Eccentricity: ecc, Unsupported: true})
	}

	ret := Vector2D{X: r * cosTheta, Y: r * sinTheta}.Rotate(o.PeriapsisArg)
	// inclination is a foreshortening of x only
	ret.X *= math.Cos(o.Inclination)
	return ret
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
