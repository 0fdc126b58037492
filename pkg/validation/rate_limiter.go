package validation

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleWindow is how long a client may stay silent before its bucket is dropped.
const idleWindow = time.Minute

// RateLimiter keeps one token bucket per client
type RateLimiter struct {
	limit       rate.Limit
	burst       int
	clients     map[string]*clientLimiter
	mu          sync.Mutex
	cleanupTick *time.Ticker
	done        chan struct{}
	closeOnce   sync.Once
}

// clientLimiter tracks rate limiting state for a single client
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing perSecond events per client
// with the given burst.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		clients: make(map[string]*clientLimiter),
		done:    make(chan struct{}),
	}

	// Start cleanup goroutine to remove inactive clients
	rl.cleanupTick = time.NewTicker(idleWindow)
	go rl.cleanup()

	return rl
}

// Allow checks if a request should be allowed for the given client ID
func (rl *RateLimiter) Allow(clientID string) bool {
	now := time.Now()

	rl.mu.Lock()
	cl, exists := rl.clients[clientID]
	if !exists {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[clientID] = cl
	}
	cl.lastSeen = now
	rl.mu.Unlock()

	return cl.limiter.AllowN(now, 1)
}

// Remove forgets a client
func (rl *RateLimiter) Remove(clientID string) {
	rl.mu.Lock()
	delete(rl.clients, clientID)
	rl.mu.Unlock()
}

// Clients returns the number of tracked clients
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// cleanup removes inactive clients to prevent memory leaks
func (rl *RateLimiter) cleanup() {
	for {
		select {
		case <-rl.cleanupTick.C:
			rl.removeInactiveClients(time.Now().Add(-idleWindow))
		case <-rl.done:
			return
		}
	}
}

// removeInactiveClients removes clients not seen since cutoff
func (rl *RateLimiter) removeInactiveClients(cutoff time.Time) {
	rl.mu.Lock()
	for clientID, cl := range rl.clients {
		if cl.lastSeen.Before(cutoff) {
			delete(rl.clients, clientID)
		}
	}
	rl.mu.Unlock()
}

// Close stops the rate limiter and cleans up resources
func (rl *RateLimiter) Close() {
	rl.closeOnce.Do(func() {
		close(rl.done)
		rl.cleanupTick.Stop()
	})
}
