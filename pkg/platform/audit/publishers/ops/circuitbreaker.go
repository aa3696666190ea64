package ops

import (
	"sync"
	"time"
)

const (
	defaultTripThreshold = 5
	defaultCooldown      = time.Minute
)

// CircuitBreaker sheds audit writes while the store is down. After threshold
// consecutive failures it rejects everything for the cooldown period, then
// lets probes through; a failed probe trips it again immediately, a success
// closes it.
//
// Open state is derived from failures and the cooldown deadline rather than
// stored, so there is no separate flag to fall out of sync.
type CircuitBreaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration

	failures  int // consecutive
	openUntil time.Time
}

// NewCircuitBreaker returns a breaker that trips after threshold consecutive
// failures and rejects for cooldown. Non-positive arguments take defaults.
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = defaultTripThreshold
	}
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	return &CircuitBreaker{threshold: threshold, cooldown: cooldown}
}

// Allow reports whether a write may proceed. When the cooldown has passed it
// admits probes, leaving the breaker one failure away from tripping again.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if time.Now().Before(cb.openUntil) {
		return false
	}
	if cb.failures >= cb.threshold {
		cb.failures = cb.threshold - 1
	}
	return true
}

// RecordSuccess closes the breaker.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.openUntil = time.Time{}
}

// RecordFailure counts a failed write; reaching the threshold starts (or
// extends) the cooldown.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures++
	if cb.failures >= cb.threshold {
		cb.openUntil = time.Now().Add(cb.cooldown)
	}
}

// IsOpen reports whether writes are currently rejected.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return time.Now().Before(cb.openUntil)
}
