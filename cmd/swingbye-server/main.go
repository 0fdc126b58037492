// cmd/swingbye-server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/opd-ai/go-swingbye/pkg/config"
	"github.com/opd-ai/go-swingbye/pkg/engine"
	"github.com/opd-ai/go-swingbye/pkg/event"
	"github.com/opd-ai/go-swingbye/pkg/health"
	"github.com/opd-ai/go-swingbye/pkg/logging"
	"github.com/opd-ai/go-swingbye/pkg/network"
)

func main() {
	logger := logging.NewLogger()
	ctx := logging.WithRunID(context.Background(), logging.GenerateRunID())

	configPath := flag.String("config", "scenario.json", "Path to scenario file")
	createDefault := flag.Bool("default", false, "Write the default scenario file and exit")
	flag.Parse()

	if *createDefault {
		if err := config.SaveConfig(config.DefaultConfig(), *configPath); err != nil {
			logger.Error(ctx, "Failed to create default scenario", err, "config_path", *configPath)
			os.Exit(1)
		}
		logger.Info(ctx, "Created default scenario file", "config_path", *configPath)
		return
	}

	scenarioConfig, err := loadScenario(ctx, logger, *configPath)
	if err != nil {
		logger.Error(ctx, "Failed to load scenario", err, "config_path", *configPath)
		os.Exit(1)
	}

	env, err := config.LoadConfigFromEnv()
	if err != nil {
		logger.Error(ctx, "Failed to load environment configuration", err)
		os.Exit(1)
	}
	config.ApplyEnvironmentOverrides(scenarioConfig, env)

	scenario, err := engine.NewScenario(scenarioConfig,
		engine.WithLogger(logger),
		engine.WithWarningLimiter(rate.NewLimiter(rate.Limit(env.WarnRate), env.WarnBurst)),
	)
	if err != nil {
		logger.Error(ctx, "Failed to build world", err, "scenario", scenarioConfig.Name)
		os.Exit(1)
	}
	world := scenario.World
	world.EventBus.Subscribe(event.ShipLaunched, func(e event.Event) {
		logger.Info(ctx, "ship launched", "ship", e.(*event.BodyEvent).Index, "time", world.Time())
	})

	sim := scenarioConfig.Simulation
	runner, err := engine.NewRunner(world, sim.DT, sim.TickRate, logger)
	if err != nil {
		logger.Error(ctx, "Invalid simulation timing", err, "dt", sim.DT, "tick_rate", sim.TickRate)
		os.Exit(1)
	}

	stream := network.NewStreamServer(runner, world.Metrics, network.NewStreamConfig(env, sim), logger)
	runner.OnSnapshot(stream.Broadcast)

	listener, err := net.Listen("tcp", env.HTTPAddr)
	if err != nil {
		logger.Error(ctx, "Failed to listen", err, "address", env.HTTPAddr)
		os.Exit(1)
	}

	healthChecker := health.NewHealthChecker()
	healthChecker.AddCheck(health.NewRunnerHealthCheck(runner.Running))
	healthChecker.AddCheck(health.NewTickHealthCheck(runner.LastTick, 10*runner.Interval()+time.Second))
	healthChecker.AddCheck(health.NewSolverHealthCheck(runner.Divergences, int64(sim.TickRate)))
	healthChecker.AddCheck(health.NewStreamHealthCheck(func() string { return listener.Addr().String() }))
	healthChecker.AddCheck(health.NewMemoryHealthCheck(500, nil))

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthChecker.LivenessHandler)
	mux.HandleFunc("/ready", healthChecker.ReadinessHandler)
	mux.Handle("/metrics", world.Metrics.Handler())
	mux.Handle("/stream", stream)

	httpServer := &http.Server{
		Handler:     mux,
		ReadTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info(ctx, "Starting HTTP server", "address", listener.Addr().String())
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "HTTP server failed", err)
		}
	}()

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "Starting simulation",
		"scenario", scenarioConfig.Name,
		"planets", world.PlanetCount(),
		"entities", world.EntityCount(),
		"ships", world.ShipCount(),
	)
	if err := runner.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(ctx, "Simulation stopped unexpectedly", err)
	}

	logger.Info(ctx, "Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stream.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "HTTP server shutdown failed", err)
	}
}

// loadScenario reads the scenario at path, or the default one when the
// file does not exist.
func loadScenario(ctx context.Context, logger *logging.Logger, path string) (*config.ScenarioConfig, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.Info(ctx, "Scenario file not found, using default scenario", "config_path", path)
		return config.DefaultConfig(), nil
	}
	return config.LoadConfig(path)
}
