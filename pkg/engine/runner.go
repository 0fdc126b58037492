// pkg/engine/runner.go
package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opd-ai/go-swingbye/pkg/event"
	"github.com/opd-ai/go-swingbye/pkg/logging"
)

// ErrInvalidTiming is returned for a non-positive step or tick rate.
var ErrInvalidTiming = errors.New("dt and tick rate must be positive")

// SnapshotHandler receives the snapshot taken after every tick.
type SnapshotHandler func(*Snapshot)

// Runner steps a World in real time at a fixed rate. It is the single
// writer of the World: other goroutines reach it through Do.
type Runner struct {
	world    *World
	dt       float64
	interval time.Duration
	logger   *logging.Logger

	mu       sync.Mutex
	handlers []SnapshotHandler

	ticks    atomic.Uint64
	lastTick atomic.Int64
	running  atomic.Bool
}

// NewRunner creates a runner advancing world by dt every 1/tickRate seconds.
func NewRunner(world *World, dt, tickRate float64, logger *logging.Logger) (*Runner, error) {
	if dt <= 0 || tickRate <= 0 {
		return nil, ErrInvalidTiming
	}
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &Runner{
		world:    world,
		dt:       dt,
		interval: time.Duration(float64(time.Second) / tickRate),
		logger:   logger,
	}, nil
}

// OnSnapshot registers a handler called after every tick, outside the lock.
// Handlers must be registered before Run.
func (r *Runner) OnSnapshot(h SnapshotHandler) {
	r.handlers = append(r.handlers, h)
}

// Run ticks until ctx is done and returns ctx.Err().
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.running.Store(true)
	defer r.running.Store(false)

	r.Do(func(w *World) {
		w.EventBus.Publish(&event.BaseEvent{EventType: event.SimulationStarted, Source: w})
	})
	r.logger.Info(ctx, "simulation started", "dt", r.dt, "interval", r.interval.String())

	for {
		select {
		case <-ctx.Done():
			r.Do(func(w *World) {
				w.EventBus.Publish(&event.BaseEvent{EventType: event.SimulationStopped, Source: w})
			})
			r.logger.Info(ctx, "simulation stopped", "ticks", r.Ticks())
			return ctx.Err()
		case <-ticker.C:
			r.Tick()
		}
	}
}

// Tick advances the world by one step and hands the resulting snapshot to
// the registered handlers.
func (r *Runner) Tick() {
	var snap *Snapshot
	r.Do(func(w *World) {
		w.Step(r.dt)
		snap = w.Snapshot()
	})

	r.ticks.Add(1)
	r.lastTick.Store(time.Now().UnixNano())

	for _, h := range r.handlers {
		h(snap)
	}
}

// Do runs fn with exclusive access to the world.
func (r *Runner) Do(fn func(w *World)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.world)
}

// Snapshot returns the current state under the lock.
func (r *Runner) Snapshot() *Snapshot {
	var snap *Snapshot
	r.Do(func(w *World) { snap = w.Snapshot() })
	return snap
}

// Ticks returns the number of completed ticks.
func (r *Runner) Ticks() uint64 {
	return r.ticks.Load()
}

// LastTick returns when the last tick completed, or the zero time.
func (r *Runner) LastTick() time.Time {
	ns := r.lastTick.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Running reports whether Run is active.
func (r *Runner) Running() bool {
	return r.running.Load()
}

// Interval returns the wall time between ticks.
func (r *Runner) Interval() time.Duration {
	return r.interval
}

// Divergences returns the world's divergence count without taking the lock.
func (r *Runner) Divergences() int64 {
	return r.world.Divergences()
}
