// pkg/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/opd-ai/go-swingbye/pkg/physics"
)

// ScenarioConfig describes a starting world: constants, timing, planets
// and free bodies.
type ScenarioConfig struct {
	Name       string           `json:"name"`
	Physics    physics.Params   `json:"physics"`
	Simulation SimulationConfig `json:"simulation"`
	Planets    []PlanetConfig   `json:"planets"`
	Entities   []EntityConfig   `json:"entities"`
}

// SimulationConfig contains stepping and forecast settings
type SimulationConfig struct {
	// DT is the simulated time advanced per tick.
	DT float64 `json:"dt"`
	// TickRate is the number of ticks per wall-clock second.
	TickRate          float64 `json:"tickRate"`
	StartTime         float64 `json:"startTime"`
	PredictionSteps   int     `json:"predictionSteps"`
	PredictionHorizon float64 `json:"predictionHorizon"`
}

// PlanetConfig contains configuration for a planet. Parent names another
// planet of the same scenario; an empty Parent makes a root sitting at
// Anchor.
type PlanetConfig struct {
	Name   string  `json:"name"`
	Parent string  `json:"parent,omitempty"`
	Mass   float64 `json:"mass"`
	physics.Orbit
	Anchor [2]float64 `json:"anchor"`
}

// EntityConfig contains configuration for a free body. When DockedOn names
// a planet the body starts as a ship docked there and Pos/Vel are ignored.
type EntityConfig struct {
	Name        string     `json:"name"`
	Pos         [2]float64 `json:"pos"`
	Vel         [2]float64 `json:"vel"`
	Mass        float64    `json:"mass"`
	DockedOn    string     `json:"dockedOn,omitempty"`
	Pointing    [2]float64 `json:"pointing,omitempty"`
	LaunchSpeed float64    `json:"launchSpeed,omitempty"`
	Clearance   float64    `json:"clearance,omitempty"`

	// PointingAngle is the launch direction in radians from +x, used when
	// Pointing is unset.
	PointingAngle *float64 `json:"pointingAngle,omitempty"`
}

// Vec converts a JSON pair to a vector.
func Vec(a [2]float64) physics.Vector2D {
	return physics.Vector2D{X: a[0], Y: a[1]}
}

// LoadConfig loads a scenario from a file
func LoadConfig(path string) (*ScenarioConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// physics fields left out of the file keep their defaults; explicit
	// values, including zero, are kept for validation to judge
	config := ScenarioConfig{Physics: physics.DefaultParams()}
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveConfig saves a scenario to a file
func SaveConfig(config *ScenarioConfig, path string) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfig returns a star with a planet, a moon and a passing comet,
// a ship docked on the planet and one free drifter.
func DefaultConfig() *ScenarioConfig {
	return &ScenarioConfig{
		Name:    "sol",
		Physics: physics.DefaultParams(),
		Simulation: SimulationConfig{
			DT:                0.1,
			TickRate:          30,
			StartTime:         0,
			PredictionSteps:   200,
			PredictionHorizon: 50,
		},
		Planets: []PlanetConfig{
			{
				Name: "sun",
				Mass: 1000,
			},
			{
				Name:   "terra",
				Parent: "sun",
				Mass:   10,
				Orbit: physics.Orbit{
					SemiMajorAxis: 200,
					Eccentricity:  0.1,
				},
			},
			{
				Name:   "luna",
				Parent: "terra",
				Mass:   1,
				Orbit: physics.Orbit{
					SemiMajorAxis: 20,
					PeriapsisArg:  1.5,
				},
			},
			{
				Name:   "comet",
				Parent: "sun",
				Mass:   0.1,
				Orbit: physics.Orbit{
					SemiMajorAxis: -300,
					Eccentricity:  1.5,
					Epoch:         -50,
					PeriapsisArg:  2.5,
				},
			},
		},
		Entities: []EntityConfig{
			{
				Name:        "probe",
				Mass:        1,
				DockedOn:    "terra",
				Pointing:    [2]float64{1, 0},
				LaunchSpeed: 5,
				Clearance:   10,
			},
			{
				Name: "drifter",
				Pos:  [2]float64{400, 0},
				Vel:  [2]float64{0, 1.5},
				Mass: 1,
			},
		},
	}
}
