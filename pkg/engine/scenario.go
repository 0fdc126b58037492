// pkg/engine/scenario.go
package engine

import (
	"fmt"

	"github.com/opd-ai/go-swingbye/pkg/config"
	"github.com/opd-ai/go-swingbye/pkg/entity"
	"github.com/opd-ai/go-swingbye/pkg/physics"
	"github.com/opd-ai/go-swingbye/pkg/validation"
)

// Scenario is a World built from a config together with the indices of
// its named bodies at build time.
type Scenario struct {
	World *World
	// Planets, Entities and Ships map names to list indices. Removals
	// from the World are not reflected here.
	Planets  map[string]int
	Entities map[string]int
	Ships    map[string]int
}

// NewScenario validates cfg and builds its world at cfg's start time.
func NewScenario(cfg *config.ScenarioConfig, opts ...Option) (*Scenario, error) {
	if err := validation.ValidateScenario(cfg); err != nil {
		return nil, fmt.Errorf("invalid scenario %q: %w", cfg.Name, err)
	}

	w := NewWorld(cfg.Physics, opts...)
	s := &Scenario{
		World:    w,
		Planets:  make(map[string]int, len(cfg.Planets)),
		Entities: make(map[string]int, len(cfg.Entities)),
		Ships:    make(map[string]int),
	}

	byName := make(map[string]*entity.Planet, len(cfg.Planets))
	for _, pc := range cfg.Planets {
		byName[pc.Name] = w.NewPlanet(pc.Mass, pc.Orbit, config.Vec(pc.Anchor))
	}
	for _, pc := range cfg.Planets {
		if pc.Parent == "" {
			continue
		}
		if err := byName[pc.Name].SetParent(byName[pc.Parent]); err != nil {
			return nil, fmt.Errorf("planet %q: %w", pc.Name, err)
		}
	}
	for _, pc := range cfg.Planets {
		s.Planets[pc.Name] = w.AddPlanetExisting(byName[pc.Name])
	}

	for _, ec := range cfg.Entities {
		if ec.DockedOn == "" {
			i := w.AddEntity(config.Vec(ec.Pos), config.Vec(ec.Vel), ec.Mass)
			if ec.Name != "" {
				s.Entities[ec.Name] = i
			}
			continue
		}

		i := w.AddShipOn(byName[ec.DockedOn], ec.Mass)
		ship := w.ships[i]
		if ec.LaunchSpeed > 0 {
			ship.LaunchSpeed = ec.LaunchSpeed
		}
		if ec.Clearance > 0 {
			ship.Clearance = ec.Clearance
		}
		pointing := config.Vec(ec.Pointing)
		if ec.Pointing == [2]float64{} && ec.PointingAngle != nil {
			pointing = physics.FromAngle(*ec.PointingAngle, 1)
		}
		if pointing != (physics.Vector2D{}) {
			if err := ship.Point(pointing); err != nil {
				return nil, fmt.Errorf("ship %q: %w", ec.Name, err)
			}
		}
		if ec.Name != "" {
			s.Ships[ec.Name] = i
			s.Entities[ec.Name] = len(w.entities) - 1
		}
	}

	w.SetTime(cfg.Simulation.StartTime)
	return s, nil
}
