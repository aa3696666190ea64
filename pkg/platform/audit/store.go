package audit

import (
	"context"

	id "parapet/pkg/domain"
)

// Store is the persistence boundary for audit events. The production
// implementation writes to the transactional outbox; the in-memory one backs
// unit tests.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByRisk(ctx context.Context, riskID id.RiskID) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
