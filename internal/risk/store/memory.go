package store

import (
	"context"
	"fmt"
	"sync"

	"parapet/internal/risk/models"
	id "parapet/pkg/domain"
	"parapet/pkg/platform/sentinel"
)

// InMemory stores risks in memory for tests and development. Insertion order
// is preserved so paged listings are deterministic. Returned risks are deep
// copies; the stored state changes only through Save and Execute.
type InMemory struct {
	mu    sync.RWMutex
	risks map[id.RiskID]*models.Risk
	order []id.RiskID
}

// NewInMemory constructs an empty in-memory risk store.
func NewInMemory() *InMemory {
	return &InMemory{risks: make(map[id.RiskID]*models.Risk)}
}

func (s *InMemory) Save(_ context.Context, risk *models.Risk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.risks[risk.ID]; !exists {
		s.order = append(s.order, risk.ID)
	}
	s.risks[risk.ID] = cloneRisk(risk)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, riskID id.RiskID) (*models.Risk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	risk, ok := s.risks[riskID]
	if !ok {
		return nil, fmt.Errorf("risk %s: %w", riskID, sentinel.ErrNotFound)
	}
	return cloneRisk(risk), nil
}

func (s *InMemory) FindPage(_ context.Context, filter Filter, page, limit int) (*Page, error) {
	if page < 1 || limit < 1 {
		return nil, fmt.Errorf("page and limit must be positive: %w", sentinel.ErrInvalidState)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matching []*models.Risk
	for _, riskID := range s.order {
		risk := s.risks[riskID]
		if filter.matches(risk) {
			matching = append(matching, risk)
		}
	}

	totalPages := (len(matching) + limit - 1) / limit

	start := (page - 1) * limit
	if start >= len(matching) {
		return &Page{Items: []*models.Risk{}, TotalPages: totalPages}, nil
	}
	end := start + limit
	if end > len(matching) {
		end = len(matching)
	}

	items := make([]*models.Risk, 0, end-start)
	for _, risk := range matching[start:end] {
		items = append(items, cloneRisk(risk))
	}
	return &Page{Items: items, TotalPages: totalPages}, nil
}

// Execute atomically validates and mutates a risk while holding the store
// lock, then persists the mutated state. The lock covers the whole
// validate-mutate window, so concurrent transitions on the same risk
// serialize and the loser fails its precondition check.
func (s *InMemory) Execute(ctx context.Context, riskID id.RiskID, validate func(*models.Risk) error, mutate func(ctx context.Context, risk *models.Risk) error) (*models.Risk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.risks[riskID]
	if !ok {
		return nil, fmt.Errorf("risk %s: %w", riskID, sentinel.ErrNotFound)
	}

	// Work on a copy so a failed callback leaves the stored state untouched.
	working := cloneRisk(stored)
	if err := validate(working); err != nil {
		return nil, err
	}
	if err := mutate(ctx, working); err != nil {
		return nil, err
	}

	s.risks[riskID] = working
	return cloneRisk(working), nil
}

func (f Filter) matches(risk *models.Risk) bool {
	if f.Status != nil && risk.Status != *f.Status {
		return false
	}
	if f.Archived != nil && risk.Archived != *f.Archived {
		return false
	}
	if f.DueBefore != nil {
		if risk.NextReviewDate == nil || risk.NextReviewDate.After(*f.DueBefore) {
			return false
		}
	}
	return true
}

// cloneRisk copies the aggregate including its slice and pointer fields.
func cloneRisk(r *models.Risk) *models.Risk {
	c := *r

	c.ControlIDs = make([]id.ControlID, len(r.ControlIDs))
	copy(c.ControlIDs, r.ControlIDs)

	c.OwnerID = copyPtr(r.OwnerID)
	c.MergedInto = copyPtr(r.MergedInto)
	c.ExpiryDate = copyPtr(r.ExpiryDate)
	c.LastReviewDate = copyPtr(r.LastReviewDate)
	c.NextReviewDate = copyPtr(r.NextReviewDate)

	c.Mitigation.Confidentiality = copyPtr(r.Mitigation.Confidentiality)
	c.Mitigation.Integrity = copyPtr(r.Mitigation.Integrity)
	c.Mitigation.Availability = copyPtr(r.Mitigation.Availability)
	c.Mitigation.Likelihood = copyPtr(r.Mitigation.Likelihood)
	c.Mitigation.Result = copyPtr(r.Mitigation.Result)

	return &c
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
