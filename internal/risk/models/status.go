package models

import (
	"fmt"

	dErrors "parapet/pkg/domain-errors"
)

// RiskStatus is the lifecycle state of a risk.
//
// State machine:
//
//	DRAFT ──────> PROPOSED ──────> ACTIVE
//	                  │ ├────────> REJECTED
//	                  │ └────────> MERGED
//	  └───────────────┴─(any)────> ARCHIVED
//
// ACTIVE, REJECTED, and MERGED are terminal apart from archival. ARCHIVED is
// reachable from every state unconditionally (soft retirement) and is itself
// final.
type RiskStatus string

const (
	StatusDraft    RiskStatus = "DRAFT"
	StatusProposed RiskStatus = "PROPOSED"
	StatusActive   RiskStatus = "ACTIVE"
	StatusRejected RiskStatus = "REJECTED"
	StatusMerged   RiskStatus = "MERGED"
	StatusArchived RiskStatus = "ARCHIVED"
)

// legalTransitions is the single source of truth for the state machine.
// Archival is intentionally absent here: any state may archive, which
// CanTransitionTo special-cases rather than repeating ARCHIVED in every row.
var legalTransitions = map[RiskStatus]map[RiskStatus]bool{
	StatusDraft: {
		StatusProposed: true,
	},
	StatusProposed: {
		StatusActive:   true,
		StatusRejected: true,
		StatusMerged:   true,
	},
	StatusActive:   {},
	StatusRejected: {},
	StatusMerged:   {},
	StatusArchived: {},
}

// CanTransitionTo reports whether moving from s to target is legal.
func (s RiskStatus) CanTransitionTo(target RiskStatus) bool {
	if target == StatusArchived {
		return true
	}
	return legalTransitions[s][target]
}

// IsTerminal reports whether no workflow transition leads out of s.
// Archival is orthogonal and still permitted from terminal states.
func (s RiskStatus) IsTerminal() bool {
	return len(legalTransitions[s]) == 0
}

// IsValid reports whether s is one of the defined lifecycle states.
func (s RiskStatus) IsValid() bool {
	_, ok := legalTransitions[s]
	return ok
}

func (s RiskStatus) String() string {
	return string(s)
}

// ParseRiskStatus constructs a RiskStatus from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or not a defined
// state.
func ParseRiskStatus(v string) (RiskStatus, error) {
	if v == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "status cannot be empty")
	}
	s := RiskStatus(v)
	if !s.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid status")
	}
	return s, nil
}

// transitionError builds the invariant violation raised for an illegal move,
// naming both the current and the requested state.
func transitionError(from, to RiskStatus) error {
	return dErrors.New(dErrors.CodeInvariantViolation,
		fmt.Sprintf("illegal transition from %s to %s", from, to))
}
