// Package models defines the control catalog entities.
//
// Controls are reference data: risks link to them by ID, and a control's
// lifecycle is independent of any risk that references it.
package models

import (
	"fmt"
	"strings"
	"time"

	id "parapet/pkg/domain"
	dErrors "parapet/pkg/domain-errors"
)

const (
	maxReferenceLength = 64
	maxNameLength      = 200
)

// Control is a safeguard from the organisation's control catalog, e.g. an
// ISO 27001 Annex A control or an internal policy measure.
type Control struct {
	ID          id.ControlID `json:"id"`
	Reference   string       `json:"reference"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// NewControl validates inputs and constructs a catalog entry.
// Reference is the stable human-facing identifier (e.g. "A.8.16") and must be
// unique within the catalog; uniqueness is enforced by the store.
func NewControl(controlID id.ControlID, reference, name, description string, now time.Time) (*Control, error) {
	reference = strings.TrimSpace(reference)
	name = strings.TrimSpace(name)

	if reference == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "control reference is required")
	}
	if len(reference) > maxReferenceLength {
		return nil, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("control reference exceeds %d characters", maxReferenceLength))
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "control name is required")
	}
	if len(name) > maxNameLength {
		return nil, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("control name exceeds %d characters", maxNameLength))
	}

	return &Control{
		ID:          controlID,
		Reference:   reference,
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
