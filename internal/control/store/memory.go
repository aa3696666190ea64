package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"parapet/internal/control/models"
	id "parapet/pkg/domain"
	"parapet/pkg/platform/sentinel"
)

// InMemory is a thread-safe in-memory control store for tests and local runs.
type InMemory struct {
	mu       sync.RWMutex
	controls map[id.ControlID]*models.Control
	byRef    map[string]id.ControlID
}

// NewInMemory creates an empty in-memory control store.
func NewInMemory() *InMemory {
	return &InMemory{
		controls: make(map[id.ControlID]*models.Control),
		byRef:    make(map[string]id.ControlID),
	}
}

func (s *InMemory) Create(_ context.Context, control *models.Control) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(control.Reference)
	if _, taken := s.byRef[key]; taken {
		return fmt.Errorf("control reference %q: %w", control.Reference, sentinel.ErrConflict)
	}

	clone := *control
	s.controls[control.ID] = &clone
	s.byRef[key] = control.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, controlID id.ControlID) (*models.Control, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	control, ok := s.controls[controlID]
	if !ok {
		return nil, fmt.Errorf("control %s: %w", controlID, sentinel.ErrNotFound)
	}
	clone := *control
	return &clone, nil
}

func (s *InMemory) List(_ context.Context) ([]*models.Control, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Control, 0, len(s.controls))
	for _, control := range s.controls {
		clone := *control
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Reference < out[j].Reference })
	return out, nil
}
