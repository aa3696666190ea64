// Package store persists Risk aggregates. Two implementations share one
// contract: InMemory for tests and development, Postgres for production.
//
// Error Contract:
// All store methods follow this pattern:
//   - Return sentinel.ErrNotFound (wrapped with context) when the requested
//     risk does not exist
//   - Return nil for successful operations
//   - Return wrapped driver errors for infrastructure failures; stores never
//     translate these into domain codes - that judgement belongs to callers
package store

import (
	"context"
	"time"

	"parapet/internal/risk/models"
	id "parapet/pkg/domain"
)

// Filter narrows FindPage results. Nil fields match everything.
type Filter struct {
	Status    *models.RiskStatus
	Archived  *bool
	DueBefore *time.Time // matches risks whose next review date is at or before this instant
}

// Page is one slice of a filtered listing. TotalPages is recomputed on every
// call from the current matching row count, so callers paging to completion
// observe shrinkage or growth between fetches. That cross-page inconsistency
// is accepted; see the review aggregator for the safety bound that contains it.
type Page struct {
	Items      []*models.Risk
	TotalPages int
}

// RiskStore is the persistence contract for Risk aggregates.
//
// Save is the single upsert policy: insert when the ID is unknown, replace
// the full row when it exists. There is no partial update - the aggregate is
// written whole, which is what makes "no partial writes" hold at this layer.
//
// Execute is the concurrency guard for workflow transitions. It loads the
// risk, runs validate, and only if validate passes runs mutate and persists -
// all while holding the record lock (mutex in memory, row lock in Postgres).
// Two racing approvals therefore serialize: the second sees the already
// transitioned state and fails its validation.
//
// The ctx passed to mutate carries the open transaction in the Postgres
// implementation, so writes made through it (such as audit outbox entries)
// commit or roll back together with the risk row. A mutate error aborts the
// whole operation.
type RiskStore interface {
	Save(ctx context.Context, risk *models.Risk) error
	FindByID(ctx context.Context, riskID id.RiskID) (*models.Risk, error)
	FindPage(ctx context.Context, filter Filter, page, limit int) (*Page, error)
	Execute(ctx context.Context, riskID id.RiskID, validate func(*models.Risk) error, mutate func(ctx context.Context, risk *models.Risk) error) (*models.Risk, error)
}

// StatusFilter is a convenience constructor for the common by-status listing.
func StatusFilter(status models.RiskStatus) Filter {
	return Filter{Status: &status}
}
