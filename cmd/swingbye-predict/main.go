// cmd/swingbye-predict/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/opd-ai/go-swingbye/pkg/config"
	"github.com/opd-ai/go-swingbye/pkg/engine"
	"github.com/opd-ai/go-swingbye/pkg/logging"
	"github.com/opd-ai/go-swingbye/pkg/physics"
)

// Forecast is the document written to stdout.
type Forecast struct {
	Scenario string         `json:"scenario"`
	From     float64        `json:"from"`
	To       float64        `json:"to"`
	Planets  []BodyForecast `json:"planets"`
	Entities []BodyForecast `json:"entities"`
}

// BodyForecast is the sampled path of one planet or entity.
type BodyForecast struct {
	Index  int                `json:"index"`
	Name   string             `json:"name,omitempty"`
	Docked bool               `json:"docked,omitempty"`
	Path   []physics.Vector2D `json:"path"`
}

func main() {
	logger := logging.NewLogger()
	ctx := context.Background()

	configPath := flag.String("config", "", "Path to scenario file (default scenario when empty)")
	steps := flag.Int("steps", 0, "Samples per body (scenario predictionSteps when 0)")
	horizon := flag.Float64("horizon", 0, "Forecast length in simulation time (scenario predictionHorizon when 0)")
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(*configPath); err != nil {
			logger.Error(ctx, "Failed to load scenario", err, "config_path", *configPath)
			os.Exit(1)
		}
	}
	if *steps > 0 {
		cfg.Simulation.PredictionSteps = *steps
	}
	if *horizon > 0 {
		cfg.Simulation.PredictionHorizon = *horizon
	}

	scenario, err := engine.NewScenario(cfg, engine.WithLogger(logger))
	if err != nil {
		logger.Error(ctx, "Failed to build world", err, "scenario", cfg.Name)
		os.Exit(1)
	}

	if err := writeForecast(os.Stdout, cfg.Name, scenario, cfg.Simulation); err != nil {
		logger.Error(ctx, "Failed to write forecast", err)
		os.Exit(1)
	}
}

// writeForecast samples every planet path and every entity trajectory over
// the scenario's horizon. Docked ships are forecast as if launched now.
func writeForecast(out io.Writer, name string, s *engine.Scenario, sim config.SimulationConfig) error {
	n := sim.PredictionSteps
	if n <= 0 || sim.PredictionHorizon <= 0 {
		return fmt.Errorf("prediction steps and horizon must be positive, got %d and %g", n, sim.PredictionHorizon)
	}
	w := s.World
	from := w.Time()
	to := from + sim.PredictionHorizon

	f := Forecast{
		Scenario: name,
		From:     from,
		To:       to,
		Planets:  make([]BodyForecast, 0, w.PlanetCount()),
		Entities: make([]BodyForecast, 0, w.EntityCount()),
	}

	planetNames := invert(s.Planets)
	for i := 0; i < w.PlanetCount(); i++ {
		path, err := w.PlanetPath(i, from, to, n)
		if err != nil {
			return err
		}
		f.Planets = append(f.Planets, BodyForecast{Index: i, Name: planetNames[i], Path: path})
	}

	shipDT := sim.PredictionHorizon
	if n > 1 {
		shipDT /= float64(n - 1)
	}

	entityNames := invert(s.Entities)
	shipOf := make(map[int]int, len(s.Ships))
	for i := 0; i < w.ShipCount(); i++ {
		ship, _ := w.GetShip(i)
		for j := 0; j < w.EntityCount(); j++ {
			if e, _ := w.GetEntity(j); e == ship.Entity {
				shipOf[j] = i
			}
		}
	}

	for i := 0; i < w.EntityCount(); i++ {
		bf := BodyForecast{Index: i, Name: entityNames[i]}
		if si, ok := shipOf[i]; ok {
			ship, _ := w.GetShip(si)
			bf.Docked = ship.Docked()
			path, err := w.ShipLaunchPredictions(si, n, shipDT)
			if err != nil {
				return err
			}
			bf.Path = path
		} else {
			e, _ := w.GetEntity(i)
			bf.Path = w.Predict(*e, from, to, n)
		}
		f.Entities = append(f.Entities, bf)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(f)
}

func invert(m map[string]int) map[int]string {
	ret := make(map[int]string, len(m))
	for k, v := range m {
		ret[v] = k
	}
	return ret
}
