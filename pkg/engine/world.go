// pkg/engine/world.go
package engine

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
	"gonum.org/v1/gonum/floats"

	"github.com/opd-ai/go-swingbye/pkg/entity"
	"github.com/opd-ai/go-swingbye/pkg/event"
	"github.com/opd-ai/go-swingbye/pkg/logging"
	"github.com/opd-ai/go-swingbye/pkg/metrics"
	"github.com/opd-ai/go-swingbye/pkg/physics"
)

// ErrIndexOutOfRange is returned for list indices outside [0, len).
var ErrIndexOutOfRange = errors.New("index out of range")

// World owns the simulation clock, the planets and the free entities.
//
// A World is not safe for concurrent use. All mutation, including SetTime
// and Step, must come from a single goroutine; Runner provides that
// discipline for hosts that need concurrent readers.
type World struct {
	EventBus *event.Bus
	Metrics  *metrics.Collector

	params  physics.Params
	solver  *physics.Solver
	logger  *logging.Logger
	limiter *rate.Limiter

	time     float64
	planets  []*entity.Planet
	entities []*entity.Entity
	ships    []*entity.Ship

	divergences atomic.Int64
}

// Option configures a World at construction.
type Option func(*World)

// WithLogger sets the logger used for solver warnings.
func WithLogger(logger *logging.Logger) Option {
	return func(w *World) { w.logger = logger }
}

// WithWarningLimiter sets the token bucket throttling solver warnings.
func WithWarningLimiter(limiter *rate.Limiter) Option {
	return func(w *World) { w.limiter = limiter }
}

// WithMetrics sets the collector the world reports to.
func WithMetrics(collector *metrics.Collector) Option {
	return func(w *World) { w.Metrics = collector }
}

// WithEventBus sets the bus the world publishes to.
func WithEventBus(bus *event.Bus) Option {
	return func(w *World) { w.EventBus = bus }
}

// NewWorld creates an empty world at time 0. Zero fields in params take
// their defaults.
func NewWorld(params physics.Params, opts ...Option) *World {
	w := &World{
		params: params.WithDefaults(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logging.NewLogger()
	}
	if w.limiter == nil {
		w.limiter = physics.NewDefaultLimiter()
	}
	if w.Metrics == nil {
		w.Metrics = metrics.NewCollector()
	}
	if w.EventBus == nil {
		w.EventBus = event.NewEventBus()
	}
	w.solver = physics.NewSolver(w.params, w.diagnostics())
	w.recordCounts()
	return w
}

// Params returns the world's physical constants and solver tuning.
func (w *World) Params() physics.Params {
	return w.params
}

// Solver returns the solver shared by planets built through this world.
func (w *World) Solver() *physics.Solver {
	return w.solver
}

// Time returns the simulation clock.
func (w *World) Time() float64 {
	return w.time
}

// SetTime moves the clock to t and recomputes every planet's cached state.
// Docked ships are moved with their planets.
func (w *World) SetTime(t float64) {
	previous := w.time
	w.setTime(t)
	w.Metrics.SetTime(t)
	w.EventBus.Publish(event.NewTimeEvent(w, previous, t))
}

func (w *World) setTime(t float64) {
	w.time = t
	for _, p := range w.planets {
		p.SetTime(t)
	}
	for _, s := range w.ships {
		s.Follow(t)
	}
}

// Step advances every entity by dt with RK4, then advances the clock.
func (w *World) Step(dt float64) {
	start := time.Now()
	for _, e := range w.entities {
		physics.RK4(e, w.ForcesOn, w.time, dt)
	}
	w.setTime(w.time + dt)

	w.Metrics.RecordStep(time.Since(start), w.time)
	w.Metrics.SetEnergy(w.KineticEnergy(), w.PotentialEnergy())
}

// ForcesOn returns the softened gravitational force every planet exerts on
// body at time t. Planet positions are evaluated at t, not read from the
// cache. The numerator uses the combined mass of body and planet.
//
// A body exactly at a planet's centre gets no contribution from that planet.
func (w *World) ForcesOn(body physics.Massive, t float64) physics.Vector2D {
	var f physics.Vector2D
	pos := body.GetPosition()
	mass := body.GetMass()

	for _, p := range w.planets {
		r := p.PosAt(t).Sub(pos)
		d := r.Length()
		if d == 0 {
			continue
		}
		n := r.Div(d)
		doff := d + w.params.Softening
		f = f.Add(n.Scale(w.params.Gravity).Scale(mass + p.Mass).Div(doff * doff))
	}
	return f
}

// Predict forecasts the positions of a copy of e over n RK4 steps from
// tFrom to tTo. Neither e nor the world is modified. n <= 0 yields an
// empty slice.
func (w *World) Predict(e entity.Entity, tFrom, tTo float64, n int) []physics.Vector2D {
	if n <= 0 {
		return []physics.Vector2D{}
	}
	dt := (tTo - tFrom) / float64(n)
	ret := make([]physics.Vector2D, 0, n)
	for i := 0; i < n; i++ {
		physics.RK4(&e, w.ForcesOn, tFrom+float64(i)*dt, dt)
		ret = append(ret, e.Position)
	}
	return ret
}

// PlanetPath samples the absolute position of planet i at n evenly spaced
// instants from tFrom to tTo inclusive. The planet's cache is untouched.
func (w *World) PlanetPath(i int, tFrom, tTo float64, n int) ([]physics.Vector2D, error) {
	p, err := w.GetPlanet(i)
	if err != nil {
		return nil, err
	}
	switch {
	case n <= 0:
		return []physics.Vector2D{}, nil
	case n == 1:
		return []physics.Vector2D{p.PosAt(tFrom)}, nil
	}

	times := floats.Span(make([]float64, n), tFrom, tTo)
	ret := make([]physics.Vector2D, n)
	for j, t := range times {
		ret[j] = p.PosAt(t)
	}
	return ret, nil
}

// KineticEnergy returns the sum of 0.5*m*|v|^2 over the entities.
func (w *World) KineticEnergy() float64 {
	terms := make([]float64, len(w.entities))
	for i, e := range w.entities {
		terms[i] = e.KineticEnergy()
	}
	return floats.Sum(terms)
}

// PotentialEnergy returns -G*m_p*m_e/|p - e| summed over every planet and
// entity pair, using the planets' cached positions. It is not softened: a
// coincident pair makes the result -Inf.
func (w *World) PotentialEnergy() float64 {
	terms := make([]float64, 0, len(w.entities)*len(w.planets))
	for _, e := range w.entities {
		for _, p := range w.planets {
			d := p.GetPosition().Distance(e.Position)
			terms = append(terms, -w.params.Gravity*p.Mass*e.Mass/d)
		}
	}
	return floats.Sum(terms)
}

// Divergences returns how many Kepler solves hit the iteration cap or had
// no closed form since the world was created.
func (w *World) Divergences() int64 {
	return w.divergences.Load()
}

func (w *World) String() string {
	var b strings.Builder
	b.WriteString("Planets:\n")
	for _, p := range w.planets {
		fmt.Fprintf(&b, "\t%s\n", p)
	}
	b.WriteString("Entities:\n")
	for _, e := range w.entities {
		fmt.Fprintf(&b, "\t%s\n", e)
	}
	return b.String()
}

func (w *World) recordCounts() {
	w.Metrics.SetCounts(len(w.planets), len(w.entities), len(w.ships))
}

func indexError(kind string, i, n int) error {
	return fmt.Errorf("%s %d of %d: %w", kind, i, n, ErrIndexOutOfRange)
}
