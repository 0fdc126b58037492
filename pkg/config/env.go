// pkg/config/env.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Environment variable names.
const (
	EnvHTTPAddr           = "SWINGBYE_HTTP_ADDR"
	EnvTickRate           = "SWINGBYE_TICK_RATE"
	EnvDT                 = "SWINGBYE_DT"
	EnvWarnRate           = "SWINGBYE_WARN_RATE"
	EnvWarnBurst          = "SWINGBYE_WARN_BURST"
	EnvBreakerMaxFailures = "SWINGBYE_BREAKER_MAX_FAILURES"
	EnvBreakerTimeout     = "SWINGBYE_BREAKER_TIMEOUT"
	EnvWriteTimeout       = "SWINGBYE_WRITE_TIMEOUT"
)

// EnvironmentConfig holds process settings read from the environment.
type EnvironmentConfig struct {
	HTTPAddr string
	// TickRate and DT override the scenario when non-zero.
	TickRate float64
	DT       float64

	// Solver warning throttle
	WarnRate  float64
	WarnBurst int

	// Stream subscriber circuit breaker
	BreakerMaxFailures uint32
	BreakerTimeout     time.Duration
	WriteTimeout       time.Duration
}

// ValidationError reports an invalid environment setting.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Message)
}

// LoadConfigFromEnv reads the SWINGBYE_* variables, applying defaults for
// unset ones. Malformed or out-of-range values are errors.
func LoadConfigFromEnv() (*EnvironmentConfig, error) {
	var err error
	cfg := &EnvironmentConfig{
		HTTPAddr: getEnvOrDefault(EnvHTTPAddr, ":8080"),
	}

	if cfg.TickRate, err = getEnvAsFloat(EnvTickRate, 0); err != nil {
		return nil, err
	}
	if cfg.DT, err = getEnvAsFloat(EnvDT, 0); err != nil {
		return nil, err
	}
	if cfg.WarnRate, err = getEnvAsFloat(EnvWarnRate, 1); err != nil {
		return nil, err
	}
	if cfg.WarnBurst, err = getEnvAsInt(EnvWarnBurst, 5); err != nil {
		return nil, err
	}
	failures, err := getEnvAsInt(EnvBreakerMaxFailures, 5)
	if err != nil {
		return nil, err
	}
	if failures < 1 {
		return nil, &ValidationError{Field: EnvBreakerMaxFailures, Value: failures, Message: "must be at least 1"}
	}
	cfg.BreakerMaxFailures = uint32(failures)
	if cfg.BreakerTimeout, err = getEnvAsDuration(EnvBreakerTimeout, 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.WriteTimeout, err = getEnvAsDuration(EnvWriteTimeout, 5*time.Second); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges.
func (c *EnvironmentConfig) Validate() error {
	switch {
	case c.HTTPAddr == "":
		return &ValidationError{Field: EnvHTTPAddr, Value: c.HTTPAddr, Message: "must not be empty"}
	case c.TickRate < 0:
		return &ValidationError{Field: EnvTickRate, Value: c.TickRate, Message: "must not be negative"}
	case c.DT < 0:
		return &ValidationError{Field: EnvDT, Value: c.DT, Message: "must not be negative"}
	case c.WarnRate <= 0:
		return &ValidationError{Field: EnvWarnRate, Value: c.WarnRate, Message: "must be positive"}
	case c.WarnBurst < 1:
		return &ValidationError{Field: EnvWarnBurst, Value: c.WarnBurst, Message: "must be at least 1"}
	case c.BreakerMaxFailures < 1:
		return &ValidationError{Field: EnvBreakerMaxFailures, Value: c.BreakerMaxFailures, Message: "must be at least 1"}
	case c.BreakerTimeout <= 0:
		return &ValidationError{Field: EnvBreakerTimeout, Value: c.BreakerTimeout, Message: "must be positive"}
	case c.WriteTimeout <= 0:
		return &ValidationError{Field: EnvWriteTimeout, Value: c.WriteTimeout, Message: "must be positive"}
	}
	return nil
}

// ApplyEnvironmentOverrides replaces the scenario timing with the
// environment's where set.
func ApplyEnvironmentOverrides(scenario *ScenarioConfig, env *EnvironmentConfig) {
	if env.DT > 0 {
		scenario.Simulation.DT = env.DT
	}
	if env.TickRate > 0 {
		scenario.Simulation.TickRate = env.TickRate
	}
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &ValidationError{Field: key, Value: v, Message: "not an integer"}
	}
	return n, nil
}

func getEnvAsFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, &ValidationError{Field: key, Value: v, Message: "not a number"}
	}
	return f, nil
}

func getEnvAsDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, &ValidationError{Field: key, Value: v, Message: "not a duration"}
	}
	return d, nil
}
