// Package health provides liveness and readiness probes for the simulation
// server, backed by pluggable checks on the runner, the solver and the
// stream listener.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"
)

// Status values reported by probes.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// readinessTimeout bounds a single readiness probe.
const readinessTimeout = 5 * time.Second

// HealthCheck defines the interface for individual health checks.
type HealthCheck interface {
	// Name returns the unique name of this health check
	Name() string
	// Check performs the health check and returns an error if unhealthy
	Check(ctx context.Context) error
}

// HealthStatus represents the overall health status of the server.
type HealthStatus struct {
	Status string                     `json:"status"`
	Checks map[string]ComponentHealth `json:"checks"`
}

// ComponentHealth represents the health status of an individual component.
type ComponentHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthChecker manages and executes health checks.
type HealthChecker struct {
	checks map[string]HealthCheck
	mu     sync.RWMutex
}

// NewHealthChecker creates a new health checker instance.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		checks: make(map[string]HealthCheck),
	}
}

// AddCheck registers a health check, replacing any with the same name.
func (hc *HealthChecker) AddCheck(check HealthCheck) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks[check.Name()] = check
}

// RemoveCheck removes a health check by name.
func (hc *HealthChecker) RemoveCheck(name string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	delete(hc.checks, name)
}

// CheckHealth executes all registered checks. The overall status is
// healthy only if every check passes.
func (hc *HealthChecker) CheckHealth(ctx context.Context) HealthStatus {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	status := HealthStatus{
		Status: StatusHealthy,
		Checks: make(map[string]ComponentHealth, len(hc.checks)),
	}

	for name, check := range hc.checks {
		if err := check.Check(ctx); err != nil {
			status.Status = StatusUnhealthy
			status.Checks[name] = ComponentHealth{
				Status:  StatusUnhealthy,
				Message: err.Error(),
			}
			continue
		}
		status.Checks[name] = ComponentHealth{Status: StatusHealthy}
	}

	return status
}

// LivenessHandler returns 200 while the process can serve HTTP at all.
func (hc *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
}

// ReadinessHandler runs every check and returns 200 when all pass, 503
// otherwise, with the per-check status in the body.
func (hc *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	health := hc.CheckHealth(ctx)

	w.Header().Set("Content-Type", "application/json")
	if health.Status == StatusHealthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(health)
}

// RunnerHealthCheck fails while the simulation loop is not running.
type RunnerHealthCheck struct {
	running func() bool
}

// NewRunnerHealthCheck creates a health check for the simulation loop.
func NewRunnerHealthCheck(running func() bool) *RunnerHealthCheck {
	return &RunnerHealthCheck{running: running}
}

// Name returns the name of this health check.
func (c *RunnerHealthCheck) Name() string {
	return "runner"
}

// Check verifies that the simulation loop is running.
func (c *RunnerHealthCheck) Check(ctx context.Context) error {
	if !c.running() {
		return fmt.Errorf("simulation loop is not running")
	}
	return nil
}

// TickHealthCheck fails when the last completed tick is older than maxAge,
// which catches a loop that is running but stuck.
type TickHealthCheck struct {
	lastTick func() time.Time
	maxAge   time.Duration
	now      func() time.Time
}

// NewTickHealthCheck creates a health check on tick recency.
func NewTickHealthCheck(lastTick func() time.Time, maxAge time.Duration) *TickHealthCheck {
	return &TickHealthCheck{
		lastTick: lastTick,
		maxAge:   maxAge,
		now:      time.Now,
	}
}

// Name returns the name of this health check.
func (c *TickHealthCheck) Name() string {
	return "tick"
}

// Check verifies that a tick completed within maxAge.
func (c *TickHealthCheck) Check(ctx context.Context) error {
	last := c.lastTick()
	if last.IsZero() {
		return fmt.Errorf("no tick completed yet")
	}
	if age := c.now().Sub(last); age > c.maxAge {
		return fmt.Errorf("last tick %s ago exceeds %s", age.Round(time.Millisecond), c.maxAge)
	}
	return nil
}

// SolverHealthCheck fails when more than maxNew Kepler solves diverged
// since the previous check.
type SolverHealthCheck struct {
	divergences func() int64
	maxNew      int64

	mu   sync.Mutex
	seen int64
}

// NewSolverHealthCheck creates a health check on the solver divergence
// count. Divergences that happened before creation are not held against it.
func NewSolverHealthCheck(divergences func() int64, maxNew int64) *SolverHealthCheck {
	return &SolverHealthCheck{
		divergences: divergences,
		maxNew:      maxNew,
		seen:        divergences(),
	}
}

// Name returns the name of this health check.
func (c *SolverHealthCheck) Name() string {
	return "solver"
}

// Check compares the divergence count against the previous check.
func (c *SolverHealthCheck) Check(ctx context.Context) error {
	current := c.divergences()

	c.mu.Lock()
	delta := current - c.seen
	c.seen = current
	c.mu.Unlock()

	if delta > c.maxNew {
		return fmt.Errorf("%d kepler solves diverged since last check (limit %d)", delta, c.maxNew)
	}
	return nil
}

// StreamHealthCheck fails while the stream listener has no address.
type StreamHealthCheck struct {
	listenerAddr func() string
}

// NewStreamHealthCheck creates a health check for the snapshot stream.
func NewStreamHealthCheck(listenerAddr func() string) *StreamHealthCheck {
	return &StreamHealthCheck{listenerAddr: listenerAddr}
}

// Name returns the name of this health check.
func (c *StreamHealthCheck) Name() string {
	return "stream"
}

// Check verifies that the stream listener is active.
func (c *StreamHealthCheck) Check(ctx context.Context) error {
	if c.listenerAddr() == "" {
		return fmt.Errorf("stream listener is not active")
	}
	return nil
}

// MemoryHealthCheck implements HealthCheck for memory usage monitoring.
type MemoryHealthCheck struct {
	maxMemoryMB    int64
	getMemoryUsage func() int64
}

// NewMemoryHealthCheck creates a health check for memory usage. A nil
// getMemoryUsage reads the heap in use from the runtime.
func NewMemoryHealthCheck(maxMemoryMB int64, getMemoryUsage func() int64) *MemoryHealthCheck {
	if getMemoryUsage == nil {
		getMemoryUsage = HeapInUseMB
	}
	return &MemoryHealthCheck{
		maxMemoryMB:    maxMemoryMB,
		getMemoryUsage: getMemoryUsage,
	}
}

// Name returns the name of this health check.
func (m *MemoryHealthCheck) Name() string {
	return "memory"
}

// Check verifies that memory usage is within acceptable limits.
func (m *MemoryHealthCheck) Check(ctx context.Context) error {
	currentMB := m.getMemoryUsage()
	if currentMB > m.maxMemoryMB {
		return fmt.Errorf("memory usage %dMB exceeds limit %dMB", currentMB, m.maxMemoryMB)
	}
	return nil
}

// HeapInUseMB returns the bytes in in-use heap spans, in megabytes.
func HeapInUseMB() int64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return int64(ms.HeapInuse / (1024 * 1024))
}
