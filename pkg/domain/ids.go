// Package domain holds the typed identifiers shared across modules. IDs are
// distinct types over uuid.UUID so the compiler rejects cross-type assignment:
// a ControlID can never be passed where a RiskID is expected.
//
// Construct IDs from external input via the Parse functions; they enforce the
// invariant that IDs are valid, non-nil UUIDs. Direct conversion bypasses
// validation and is reserved for trusted sources (store scans, generators).
package domain

import (
	"github.com/google/uuid"

	dErrors "parapet/pkg/domain-errors"
)

// RiskID identifies a risk aggregate.
type RiskID uuid.UUID

// ControlID identifies a mitigating control.
type ControlID uuid.UUID

// UserID identifies an actor (author, reviewer) for attribution.
type UserID uuid.UUID

// NewRiskID generates a random RiskID.
func NewRiskID() RiskID { return RiskID(uuid.New()) }

// NewControlID generates a random ControlID.
func NewControlID() ControlID { return ControlID(uuid.New()) }

// NewUserID generates a random UserID.
func NewUserID() UserID { return UserID(uuid.New()) }

func (id RiskID) String() string    { return uuid.UUID(id).String() }
func (id ControlID) String() string { return uuid.UUID(id).String() }
func (id UserID) String() string    { return uuid.UUID(id).String() }

// IsNil reports whether the ID is the zero UUID.
func (id RiskID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ControlID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// MarshalText renders IDs as canonical UUID strings in JSON and text
// encodings. Without these, a defined type over uuid.UUID would marshal as a
// byte array.
func (id RiskID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id ControlID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id UserID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }

func (id *RiskID) UnmarshalText(b []byte) error {
	parsed, err := ParseRiskID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *ControlID) UnmarshalText(b []byte) error {
	parsed, err := ParseControlID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *UserID) UnmarshalText(b []byte) error {
	parsed, err := ParseUserID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseRiskID parses external input into a RiskID.
//
// Errors: CodeInvalidInput when the value is empty, malformed, or the nil UUID.
func ParseRiskID(s string) (RiskID, error) {
	u, err := parseUUID(s, "risk id")
	if err != nil {
		return RiskID{}, err
	}
	return RiskID(u), nil
}

// ParseControlID parses external input into a ControlID.
//
// Errors: CodeInvalidInput when the value is empty, malformed, or the nil UUID.
func ParseControlID(s string) (ControlID, error) {
	u, err := parseUUID(s, "control id")
	if err != nil {
		return ControlID{}, err
	}
	return ControlID(u), nil
}

// ParseUserID parses external input into a UserID.
//
// Errors: CodeInvalidInput when the value is empty, malformed, or the nil UUID.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	if err != nil {
		return UserID{}, err
	}
	return UserID(u), nil
}

// parseUUID is the single validation path for all ID types. Keeping one
// implementation guarantees every type rejects the same inputs.
func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" is not a valid uuid")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be the nil uuid")
	}
	return u, nil
}
