package ops

import (
	"math/rand/v2"
	"sync"
)

// Sampler decides which operational events are worth keeping. Rates are
// per-action with a package-wide default, so a chatty action can be thinned
// without losing the rest of the activity log.
type Sampler struct {
	mu    sync.RWMutex
	rates map[string]float64 // keyed by action; "" holds the default
}

// NewSampler creates a sampler keeping the given fraction of events by
// default. Rates clamp to [0, 1].
func NewSampler(defaultRate float64) *Sampler {
	return &Sampler{rates: map[string]float64{"": clamp01(defaultRate)}}
}

// SetRate overrides the keep rate for one action.
func (s *Sampler) SetRate(action string, rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates[action] = clamp01(rate)
}

// ShouldSample reports whether an event with this action should be kept.
// Rates of 0 and 1 are deterministic; anything between is a coin flip.
func (s *Sampler) ShouldSample(action string) bool {
	s.mu.RLock()
	rate, ok := s.rates[action]
	if !ok {
		rate = s.rates[""]
	}
	s.mu.RUnlock()

	switch {
	case rate <= 0:
		return false
	case rate >= 1:
		return true
	}
	return rand.Float64() < rate
}

func clamp01(rate float64) float64 {
	return max(0, min(1, rate))
}
