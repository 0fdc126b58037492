package physics

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/opd-ai/go-swingbye/pkg/logging"
)

// LoggingObserver writes a warning for every solve that did not converge or
// fell back to the zero offset. Warnings are throttled by a token bucket and
// the number of dropped warnings is attached to the next one written.
type LoggingObserver struct {
	logger  *logging.Logger
	limiter *rate.Limiter

	mu         sync.Mutex
	suppressed int
}

// NewLoggingObserver creates an observer. A nil limiter disables throttling.
func NewLoggingObserver(logger *logging.Logger, limiter *rate.Limiter) *LoggingObserver {
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &LoggingObserver{
		logger:  logger,
		limiter: limiter,
	}
}

// NewDefaultLimiter returns the stock warning throttle: one per second, burst of five.
func NewDefaultLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(1), 5)
}

// ObserveSolve implements Observer.
func (o *LoggingObserver) ObserveSolve(report SolveReport) {
	if report.Converged {
		return
	}

	o.mu.Lock()
	if o.limiter != nil && !o.limiter.Allow() {
		o.suppressed++
		o.mu.Unlock()
		return
	}
	suppressed := o.suppressed
	o.suppressed = 0
	o.mu.Unlock()

	ctx := context.Background()
	if report.Unsupported {
		o.logger.Warn(ctx, "orbit has no closed-form solution, using zero offset",
			"kind", report.Kind.String(),
			"eccentricity", report.Eccentricity,
			"suppressed", suppressed,
		)
		return
	}
	o.logger.Warn(ctx, "kepler solver did not converge",
		"kind", report.Kind.String(),
		"eccentricity", report.Eccentricity,
		"mean_anomaly", report.MeanAnomaly,
		"iterations", report.Iterations,
		"suppressed", suppressed,
	)
}

// Suppressed returns the number of warnings dropped since the last one written.
func (o *LoggingObserver) Suppressed() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.suppressed
}

// MultiObserver fans a report out to several observers in order.
type MultiObserver []Observer

// ObserveSolve implements Observer.
func (m MultiObserver) ObserveSolve(report SolveReport) {
	for _, o := range m {
		if o != nil {
			o.ObserveSolve(report)
		}
	}
}

// DefaultSolver returns a solver with DefaultParams that logs throttled warnings to stdout.
func DefaultSolver() *Solver {
	return NewSolver(DefaultParams(), NewLoggingObserver(logging.NewLogger(), NewDefaultLimiter()))
}
