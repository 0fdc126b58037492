package validation

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/opd-ai/go-swingbye/pkg/config"
	"github.com/opd-ai/go-swingbye/pkg/entity"
	"github.com/opd-ai/go-swingbye/pkg/physics"
)

func TestValidateScenario_Default(t *testing.T) {
	if err := ValidateScenario(config.DefaultConfig()); err != nil {
		t.Errorf("default scenario should be valid, got %v", err)
	}
}

func TestValidateScenario_Errors(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*config.ScenarioConfig)
		wantErr error
	}{
		{
			name:    "zero dt",
			modify:  func(c *config.ScenarioConfig) { c.Simulation.DT = 0 },
			wantErr: ErrInvalidSimulation,
		},
		{
			name:    "negative tick rate",
			modify:  func(c *config.ScenarioConfig) { c.Simulation.TickRate = -1 },
			wantErr: ErrInvalidSimulation,
		},
		{
			name:    "negative prediction steps",
			modify:  func(c *config.ScenarioConfig) { c.Simulation.PredictionSteps = -5 },
			wantErr: ErrInvalidSimulation,
		},
		{
			name:    "negative gravity",
			modify:  func(c *config.ScenarioConfig) { c.Physics.Gravity = -1 },
			wantErr: ErrInvalidPhysics,
		},
		{
			name:    "zero softening",
			modify:  func(c *config.ScenarioConfig) { c.Physics.Softening = 0 },
			wantErr: ErrInvalidPhysics,
		},
		{
			name:    "zero gravity",
			modify:  func(c *config.ScenarioConfig) { c.Physics.Gravity = 0 },
			wantErr: ErrInvalidPhysics,
		},
		{
			name:    "negative iteration cap",
			modify:  func(c *config.ScenarioConfig) { c.Physics.MaxIterations = -1 },
			wantErr: ErrInvalidPhysics,
		},
		{
			name:    "planet without mass",
			modify:  func(c *config.ScenarioConfig) { c.Planets[1].Mass = 0 },
			wantErr: physics.ErrNonPositiveMass,
		},
		{
			name:    "parabolic child",
			modify:  func(c *config.ScenarioConfig) { c.Planets[1].Eccentricity = 1 },
			wantErr: physics.ErrParabolicOrbit,
		},
		{
			name:    "hyperbolic with positive axis",
			modify:  func(c *config.ScenarioConfig) { c.Planets[3].SemiMajorAxis = 300 },
			wantErr: physics.ErrInvalidSemiMajorAxis,
		},
		{
			name:    "unknown parent",
			modify:  func(c *config.ScenarioConfig) { c.Planets[2].Parent = "vulcan" },
			wantErr: ErrUnknownPlanet,
		},
		{
			name:    "duplicate name",
			modify:  func(c *config.ScenarioConfig) { c.Planets[2].Name = "terra" },
			wantErr: ErrDuplicateName,
		},
		{
			name: "parent cycle",
			modify: func(c *config.ScenarioConfig) {
				c.Planets[0].Parent = "luna"
				c.Planets[0].Orbit = physics.Orbit{SemiMajorAxis: 5}
			},
			wantErr: entity.ErrParentCycle,
		},
		{
			name:    "self parent",
			modify:  func(c *config.ScenarioConfig) { c.Planets[1].Parent = "terra" },
			wantErr: entity.ErrParentCycle,
		},
		{
			name:    "entity without mass",
			modify:  func(c *config.ScenarioConfig) { c.Entities[1].Mass = -1 },
			wantErr: physics.ErrNonPositiveMass,
		},
		{
			name:    "docked on unknown planet",
			modify:  func(c *config.ScenarioConfig) { c.Entities[0].DockedOn = "pluto" },
			wantErr: ErrUnknownPlanet,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.modify(cfg)

			err := ValidateScenario(cfg)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateScenario() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateScenario_PointingAngle(t *testing.T) {
	cfg := config.DefaultConfig()
	angle := math.NaN()
	cfg.Entities[0].PointingAngle = &angle

	err := ValidateScenario(cfg)
	if err == nil || !strings.Contains(err.Error(), "pointingAngle must be finite") {
		t.Errorf("ValidateScenario() error = %v, want a non-finite pointingAngle error", err)
	}

	angle = 1.25
	if err := ValidateScenario(cfg); err != nil {
		t.Errorf("ValidateScenario() error = %v, want nil", err)
	}
}

func TestValidateScenario_RootOrbitIgnored(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Planets[0].Orbit = physics.Orbit{Eccentricity: 1}

	if err := ValidateScenario(cfg); err != nil {
		t.Errorf("root orbit elements should not be validated, got %v", err)
	}
}

func TestValidateScenario_JoinsAllErrors(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Simulation.DT = 0
	cfg.Planets[1].Mass = 0
	cfg.Entities[0].DockedOn = "pluto"

	err := ValidateScenario(cfg)
	for _, want := range []error{ErrInvalidSimulation, physics.ErrNonPositiveMass, ErrUnknownPlanet} {
		if !errors.Is(err, want) {
			t.Errorf("joined error %v does not contain %v", err, want)
		}
	}
}
