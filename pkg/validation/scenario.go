package validation

import (
	"errors"
	"fmt"

	"github.com/opd-ai/go-swingbye/pkg/config"
	"github.com/opd-ai/go-swingbye/pkg/entity"
	"github.com/opd-ai/go-swingbye/pkg/physics"
)

var (
	// ErrUnknownPlanet is returned when a parent or dock names no planet.
	ErrUnknownPlanet = errors.New("unknown planet")
	// ErrDuplicateName is returned when two planets share a name.
	ErrDuplicateName = errors.New("duplicate planet name")
	// ErrInvalidSimulation is returned for unusable timing settings.
	ErrInvalidSimulation = errors.New("invalid simulation settings")
	// ErrInvalidPhysics is returned for tuning constants that are not positive.
	ErrInvalidPhysics = errors.New("invalid physics settings")
)

// ValidateScenario checks a scenario before a world is built from it and
// returns every problem found, joined.
func ValidateScenario(cfg *config.ScenarioConfig) error {
	var errs []error

	errs = append(errs, validatePhysics(cfg.Physics)...)
	errs = append(errs, validateSimulation(cfg.Simulation)...)

	parents := make(map[string]string, len(cfg.Planets))
	for i, p := range cfg.Planets {
		if _, err := ValidateName(p.Name); err != nil {
			errs = append(errs, fmt.Errorf("planet %d: %w", i, err))
			continue
		}
		name := p.Name
		if _, dup := parents[name]; dup {
			errs = append(errs, fmt.Errorf("planet %q: %w", name, ErrDuplicateName))
			continue
		}
		parents[name] = p.Parent

		if p.Mass <= 0 {
			errs = append(errs, fmt.Errorf("planet %q: %w: %g", name, physics.ErrNonPositiveMass, p.Mass))
		}
		// a root's elements are never evaluated
		if p.Parent != "" {
			if err := p.Orbit.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("planet %q: %w", name, err))
			}
		}
		if err := ValidateFinite("anchor", p.Anchor[0], p.Anchor[1]); err != nil {
			errs = append(errs, fmt.Errorf("planet %q: %w", name, err))
		}
	}

	for name, parent := range parents {
		if parent == "" {
			continue
		}
		if _, ok := parents[parent]; !ok {
			errs = append(errs, fmt.Errorf("planet %q parent %q: %w", name, parent, ErrUnknownPlanet))
			continue
		}
		if inCycle(name, parents) {
			errs = append(errs, fmt.Errorf("planet %q: %w", name, entity.ErrParentCycle))
		}
	}

	for i, e := range cfg.Entities {
		label := fmt.Sprintf("entity %d", i)
		if e.Name != "" {
			name, err := ValidateName(e.Name)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", label, err))
			} else {
				label = fmt.Sprintf("entity %q", name)
			}
		}
		if e.Mass <= 0 {
			errs = append(errs, fmt.Errorf("%s: %w: %g", label, physics.ErrNonPositiveMass, e.Mass))
		}
		if err := ValidateFinite("state", e.Pos[0], e.Pos[1], e.Vel[0], e.Vel[1]); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", label, err))
		}
		if e.DockedOn != "" {
			if _, ok := parents[e.DockedOn]; !ok {
				errs = append(errs, fmt.Errorf("%s docked on %q: %w", label, e.DockedOn, ErrUnknownPlanet))
			}
			if e.LaunchSpeed < 0 || e.Clearance < 0 {
				errs = append(errs, fmt.Errorf("%s: launch speed and clearance must not be negative", label))
			}
			if e.PointingAngle != nil {
				if err := ValidateFinite("pointingAngle", *e.PointingAngle); err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", label, err))
				}
			}
		}
	}

	return errors.Join(errs...)
}

// inCycle reports whether following parent names from start revisits a name.
func inCycle(start string, parents map[string]string) bool {
	seen := map[string]bool{start: true}
	for cur := parents[start]; cur != ""; cur = parents[cur] {
		if seen[cur] {
			return true
		}
		seen[cur] = true
	}
	return false
}

func validatePhysics(p physics.Params) []error {
	var errs []error
	if p.Gravity <= 0 || p.Softening <= 0 || p.Tolerance <= 0 || p.VelocityStep <= 0 {
		errs = append(errs, fmt.Errorf("%w: constants must be positive: %+v", ErrInvalidPhysics, p))
	}
	if p.MaxIterations <= 0 {
		errs = append(errs, fmt.Errorf("%w: maxIterations %d", ErrInvalidPhysics, p.MaxIterations))
	}
	return errs
}

func validateSimulation(s config.SimulationConfig) []error {
	var errs []error
	if s.DT <= 0 {
		errs = append(errs, fmt.Errorf("%w: dt must be positive, got %g", ErrInvalidSimulation, s.DT))
	}
	if s.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("%w: tickRate must be positive, got %g", ErrInvalidSimulation, s.TickRate))
	}
	if s.PredictionSteps < 0 || s.PredictionHorizon < 0 {
		errs = append(errs, fmt.Errorf("%w: prediction settings must not be negative", ErrInvalidSimulation))
	}
	return errs
}
