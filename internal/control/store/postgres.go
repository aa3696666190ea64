package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"parapet/internal/control/models"
	id "parapet/pkg/domain"
	"parapet/pkg/platform/sentinel"
)

// Postgres persists controls in the controls table. Reference uniqueness is
// enforced by a unique index on LOWER(reference).
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a control store backed by the given database handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Create(ctx context.Context, control *models.Control) error {
	query := `
		INSERT INTO controls (id, reference, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(control.ID),
		control.Reference,
		control.Name,
		control.Description,
		control.CreatedAt,
		control.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert control: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert control result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("control reference %q: %w", control.Reference, sentinel.ErrConflict)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, controlID id.ControlID) (*models.Control, error) {
	query := `
		SELECT id, reference, name, description, created_at, updated_at
		FROM controls
		WHERE id = $1
	`
	control, err := scanControl(s.db.QueryRowContext(ctx, query, uuid.UUID(controlID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("control %s: %w", controlID, sentinel.ErrNotFound)
		}
		return nil, err
	}
	return control, nil
}

func (s *Postgres) List(ctx context.Context) ([]*models.Control, error) {
	query := `
		SELECT id, reference, name, description, created_at, updated_at
		FROM controls
		ORDER BY reference
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query controls: %w", err)
	}
	defer rows.Close()

	out := []*models.Control{}
	for rows.Next() {
		control, err := scanControl(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, control)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate controls: %w", err)
	}
	return out, nil
}

func scanControl(row interface{ Scan(dest ...any) error }) (*models.Control, error) {
	var (
		control     models.Control
		controlUUID uuid.UUID
	)
	err := row.Scan(
		&controlUUID,
		&control.Reference,
		&control.Name,
		&control.Description,
		&control.CreatedAt,
		&control.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan control: %w", err)
	}
	control.ID = id.ControlID(controlUUID)
	return &control, nil
}
