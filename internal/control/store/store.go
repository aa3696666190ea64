// Package store persists the control catalog.
//
// Error Contract:
//   - Create returns sentinel.ErrConflict when the reference is already taken
//     (case-insensitive).
//   - FindByID returns sentinel.ErrNotFound for unknown IDs.
package store

import (
	"context"

	"parapet/internal/control/models"
	id "parapet/pkg/domain"
)

// ControlStore is the persistence boundary for the control catalog.
type ControlStore interface {
	// Create inserts a control if its reference is available.
	Create(ctx context.Context, control *models.Control) error

	// FindByID returns the control with the given ID.
	FindByID(ctx context.Context, controlID id.ControlID) (*models.Control, error)

	// List returns the whole catalog ordered by reference.
	List(ctx context.Context) ([]*models.Control, error)
}
