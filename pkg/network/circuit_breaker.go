// Package network streams world snapshots to websocket clients and applies
// the ship commands they send back.
package network

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/opd-ai/go-swingbye/pkg/logging"
)

// Breaker wraps a client's writes with a circuit breaker so a stalled or
// broken connection stops costing a write timeout per snapshot.
type Breaker struct {
	breaker *gobreaker.CircuitBreaker
	logger  *logging.Logger
}

// Operation is a single guarded write.
type Operation func() error

// NewBreaker creates a breaker that opens after maxFailures consecutive
// failures and lets a probe through after timeout.
func NewBreaker(name string, maxFailures uint32, timeout time.Duration, logger *logging.Logger) *Breaker {
	if logger == nil {
		logger = logging.NewLogger()
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info(context.Background(), "circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &Breaker{
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

// Execute runs op through the breaker. While the circuit is open it fails
// immediately with an error wrapping gobreaker.ErrOpenState.
func (b *Breaker) Execute(ctx context.Context, op Operation) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, op()
	})
	if err != nil {
		b.logger.LogWithContext(ctx, slog.LevelDebug, "guarded write failed",
			"error", err,
			"state", b.breaker.State().String(),
		)
		return fmt.Errorf("circuit breaker: %w", err)
	}
	return nil
}

// State returns the current state of the circuit breaker.
func (b *Breaker) State() gobreaker.State {
	return b.breaker.State()
}

// Counts returns the failure and success counts of the current generation.
func (b *Breaker) Counts() gobreaker.Counts {
	return b.breaker.Counts()
}
