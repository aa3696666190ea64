package memory

import (
	"context"
	"slices"
	"sync"

	id "parapet/pkg/domain"
	audit "parapet/pkg/platform/audit"
)

// InMemoryStore records audit events in emission order. It backs unit tests
// and the DSN-less dev mode in place of the outbox-backed Postgres store.
type InMemoryStore struct {
	mu  sync.RWMutex
	log []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, event)
	return nil
}

// ListByRisk returns the events attributed to one risk, oldest first.
func (s *InMemoryStore) ListByRisk(_ context.Context, riskID id.RiskID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Event
	for _, event := range s.log {
		if event.RiskID == riskID {
			out = append(out, event)
		}
	}
	return out, nil
}

// ListRecent returns up to limit of the newest events across all risks,
// oldest of the window first.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := max(len(s.log)-limit, 0)
	return slices.Clone(s.log[start:]), nil
}
