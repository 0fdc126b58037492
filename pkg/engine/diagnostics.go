// pkg/engine/diagnostics.go
package engine

import (
	"github.com/opd-ai/go-swingbye/pkg/event"
	"github.com/opd-ai/go-swingbye/pkg/physics"
)

// diagnostics builds the observer every solve made through the world's
// solver is reported to: throttled log warnings, Prometheus series, and a
// SolverDiverged event plus divergence count for failed solves.
func (w *World) diagnostics() physics.Observer {
	return physics.MultiObserver{
		physics.NewLoggingObserver(w.logger, w.limiter),
		w.Metrics,
		physics.ObserverFunc(w.observeSolve),
	}
}

func (w *World) observeSolve(report physics.SolveReport) {
	if report.Converged && !report.Unsupported {
		return
	}
	w.divergences.Add(1)
	w.EventBus.Publish(event.NewSolverEvent(w, report))
}
