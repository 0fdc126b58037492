// pkg/metrics/metrics.go
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opd-ai/go-swingbye/pkg/physics"
)

const namespace = "swingbye"

// Solve outcomes used as the "outcome" label.
const (
	OutcomeConverged   = "converged"
	OutcomeDiverged    = "diverged"
	OutcomeUnsupported = "unsupported"
)

// Collector owns the simulation's Prometheus series. Each Collector has its
// own registry so several worlds can coexist in one process.
type Collector struct {
	registry *prometheus.Registry

	solvesTotal     *prometheus.CounterVec
	solveIterations *prometheus.HistogramVec
	stepsTotal      prometheus.Counter
	stepDuration    prometheus.Histogram
	simTime         prometheus.Gauge
	energy          *prometheus.GaugeVec
	bodies          *prometheus.GaugeVec
	streamClients   prometheus.Gauge
	streamMessages  *prometheus.CounterVec
}

// NewCollector creates and registers the simulation metrics.
func NewCollector() *Collector {
	m := &Collector{
		registry: prometheus.NewRegistry(),
		solvesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "kepler_solves_total",
				Help:      "Kepler equation solves by orbit kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		solveIterations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "kepler_solve_iterations",
				Help:      "Newton-Raphson iterations per Kepler solve",
				Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 50, 100, 1000},
			},
			[]string{"kind"},
		),
		stepsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_total",
				Help:      "Total number of world steps",
			},
		),
		stepDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Wall time spent in one world step",
				Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
			},
		),
		simTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "simulation_time",
				Help:      "Current simulation clock",
			},
		),
		energy: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "energy",
				Help:      "Total kinetic and potential energy of the free entities",
			},
			[]string{"kind"},
		),
		bodies: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "bodies",
				Help:      "Number of bodies in the world",
			},
			[]string{"kind"},
		),
		streamClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stream_clients",
				Help:      "Connected snapshot stream clients",
			},
		),
		streamMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stream_messages_total",
				Help:      "Snapshot messages by delivery result",
			},
			[]string{"result"},
		),
	}

	m.registry.MustRegister(
		m.solvesTotal,
		m.solveIterations,
		m.stepsTotal,
		m.stepDuration,
		m.simTime,
		m.energy,
		m.bodies,
		m.streamClients,
		m.streamMessages,
	)

	return m
}

// ObserveSolve records a Kepler solve. It implements physics.Observer.
func (m *Collector) ObserveSolve(report physics.SolveReport) {
	kind := report.Kind.String()
	switch {
	case report.Unsupported:
		m.solvesTotal.WithLabelValues(kind, OutcomeUnsupported).Inc()
		return
	case report.Converged:
		m.solvesTotal.WithLabelValues(kind, OutcomeConverged).Inc()
	default:
		m.solvesTotal.WithLabelValues(kind, OutcomeDiverged).Inc()
	}
	m.solveIterations.WithLabelValues(kind).Observe(float64(report.Iterations))
}

// RecordStep records one world step that ended at simTime.
func (m *Collector) RecordStep(duration time.Duration, simTime float64) {
	m.stepsTotal.Inc()
	m.stepDuration.Observe(duration.Seconds())
	m.simTime.Set(simTime)
}

// SetTime records the simulation clock after an explicit time change.
func (m *Collector) SetTime(simTime float64) {
	m.simTime.Set(simTime)
}

// SetEnergy records the entity energies.
func (m *Collector) SetEnergy(kinetic, potential float64) {
	m.energy.WithLabelValues("kinetic").Set(kinetic)
	m.energy.WithLabelValues("potential").Set(potential)
}

// SetCounts records the size of each world list.
func (m *Collector) SetCounts(planets, entities, ships int) {
	m.bodies.WithLabelValues("planet").Set(float64(planets))
	m.bodies.WithLabelValues("entity").Set(float64(entities))
	m.bodies.WithLabelValues("ship").Set(float64(ships))
}

// SetStreamClients records the number of connected stream clients.
func (m *Collector) SetStreamClients(n int) {
	m.streamClients.Set(float64(n))
}

// RecordStreamMessage counts one snapshot delivery attempt.
func (m *Collector) RecordStreamMessage(sent bool) {
	if sent {
		m.streamMessages.WithLabelValues("sent").Inc()
		return
	}
	m.streamMessages.WithLabelValues("dropped").Inc()
}

// Registry returns the registry the series live in.
func (m *Collector) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collector's registry in the Prometheus text format.
func (m *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

var _ physics.Observer = (*Collector)(nil)
