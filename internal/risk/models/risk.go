package models

import (
	"strings"
	"time"

	"parapet/internal/risk/scoring"
	id "parapet/pkg/domain"
	dErrors "parapet/pkg/domain-errors"
)

// Risk is the aggregate root for a register entry.
//
// Invariants:
//   - Title is non-empty and at most 200 characters
//   - Assessment is always scoring.Compute over Scores; never set directly
//     and never trusted from client input
//   - Mitigation.Result is non-nil if and only if all four mitigation inputs
//     are set, and is always scoring.Compute over those inputs
//   - Status moves only along the transitions defined in status.go
//   - RejectionReason is non-empty iff Status is REJECTED
//   - MergedInto is set iff Status is MERGED, and never references the risk
//     itself
//   - CreatedAt and DateAdded are immutable after construction
//
// Mutation goes exclusively through the workflow methods below. Handlers and
// stores must never write Status, Assessment, or Mitigation.Result directly;
// the store's Execute callback is the only place Apply* methods run, which is
// what keeps racing reviewers from double-transitioning a risk.
type Risk struct {
	ID                id.RiskID  `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	ThreatDescription string     `json:"threat_description"`
	Category          string     `json:"risk_category"`
	Nature            RiskNature `json:"risk_nature"`
	Department        string     `json:"department"`
	OwnerID           *id.UserID `json:"owner_user_id,omitempty"`

	Scores     ScoreSet       `json:"scores"`
	Assessment scoring.Result `json:"assessment"`

	Treatment  Treatment  `json:"treatment"`
	Mitigation Mitigation `json:"mitigation"`

	Status          RiskStatus `json:"status"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	MergedInto      *id.RiskID `json:"merged_into_risk_id,omitempty"`
	Archived        bool       `json:"archived"`

	ControlIDs []id.ControlID `json:"control_ids"`

	ExpiryDate     *time.Time `json:"expiry_date,omitempty"`
	LastReviewDate *time.Time `json:"last_review_date,omitempty"`
	NextReviewDate *time.Time `json:"next_review_date,omitempty"`

	DateAdded time.Time `json:"date_added"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ScoreSet groups the four assessment factors. It doubles as the revised
// score payload a reviewer may supply at approval time.
type ScoreSet struct {
	Confidentiality int `json:"confidentiality"`
	Integrity       int `json:"integrity"`
	Availability    int `json:"availability"`
	Likelihood      int `json:"likelihood"`
}

// Clamped returns a copy with every factor forced into the valid range.
func (s ScoreSet) Clamped() ScoreSet {
	return ScoreSet{
		Confidentiality: scoring.Clamp(s.Confidentiality),
		Integrity:       scoring.Clamp(s.Integrity),
		Availability:    scoring.Clamp(s.Availability),
		Likelihood:      scoring.Clamp(s.Likelihood),
	}
}

// Compute runs the scoring formula over the set.
func (s ScoreSet) Compute() scoring.Result {
	return scoring.Compute(s.Confidentiality, s.Integrity, s.Availability, s.Likelihood)
}

// Mitigation is the optional residual assessment overlay. The four inputs are
// independently optional; Result is the derived all-or-nothing pair and is
// only ever written by recompute, so a partial input set can never carry a
// stale score.
type Mitigation struct {
	Confidentiality *int            `json:"confidentiality,omitempty"`
	Integrity       *int            `json:"integrity,omitempty"`
	Availability    *int            `json:"availability,omitempty"`
	Likelihood      *int            `json:"likelihood,omitempty"`
	Result          *scoring.Result `json:"result,omitempty"`
}

// Complete reports whether all four inputs are present.
func (m Mitigation) Complete() bool {
	return m.Confidentiality != nil && m.Integrity != nil &&
		m.Availability != nil && m.Likelihood != nil
}

// Empty reports whether no input is present.
func (m Mitigation) Empty() bool {
	return m.Confidentiality == nil && m.Integrity == nil &&
		m.Availability == nil && m.Likelihood == nil
}

// recompute maintains the all-or-nothing invariant: Result is set exactly
// when the input set is complete. This is the single assignment site for
// Result.
func (m *Mitigation) recompute() {
	if !m.Complete() {
		m.Result = nil
		return
	}
	res := scoring.Compute(*m.Confidentiality, *m.Integrity, *m.Availability, *m.Likelihood)
	m.Result = &res
}

// RiskDetails carries the descriptive fields for construction.
type RiskDetails struct {
	Title             string
	Description       string
	ThreatDescription string
	Category          string
	Nature            RiskNature
	Department        string
	OwnerID           *id.UserID
}

// NewRisk constructs a risk in its initial lifecycle state. The authoring
// flow may create directly into DRAFT or PROPOSED; any other initial status
// is rejected. Scores are clamped and the assessment computed here, so a risk
// never exists without a consistent score.
func NewRisk(riskID id.RiskID, details RiskDetails, scores ScoreSet, treatment Treatment, initialStatus RiskStatus, now time.Time) (*Risk, error) {
	if strings.TrimSpace(details.Title) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "risk title cannot be empty")
	}
	if len(details.Title) > 200 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "risk title must be 200 characters or less")
	}
	if !details.Nature.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid risk nature")
	}
	if !treatment.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid treatment category")
	}
	if initialStatus != StatusDraft && initialStatus != StatusProposed {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "a risk must start in DRAFT or PROPOSED")
	}

	clamped := scores.Clamped()
	return &Risk{
		ID:                riskID,
		Title:             details.Title,
		Description:       details.Description,
		ThreatDescription: details.ThreatDescription,
		Category:          details.Category,
		Nature:            details.Nature,
		Department:        details.Department,
		OwnerID:           details.OwnerID,
		Scores:            clamped,
		Assessment:        clamped.Compute(),
		Treatment:         treatment,
		Status:            initialStatus,
		ControlIDs:        []id.ControlID{},
		DateAdded:         now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

func (r *Risk) IsActive() bool {
	return r.Status == StatusActive
}

// IsMitigated reports whether a complete residual assessment is recorded.
func (r *Risk) IsMitigated() bool {
	return r.Mitigation.Result != nil
}

// RequiresMitigation reports whether policy mandates a residual assessment:
// a risk treated with MODIFY whose initial level is HIGH must be mitigated.
// The flag is advisory and never persisted.
func (r *Risk) RequiresMitigation() bool {
	return r.Treatment == TreatmentModify && r.Assessment.Level == scoring.LevelHigh
}

// PolicyNonConformant reports the advisory warning surfaced by the mitigation
// flow: mitigation is mandatory for this risk but absent.
func (r *Risk) PolicyNonConformant() bool {
	return r.RequiresMitigation() && !r.IsMitigated()
}

// -----------------------------------------------------------------------------
// Submission (DRAFT -> PROPOSED)
// -----------------------------------------------------------------------------

// CanSubmit checks if the risk can enter the review queue.
// Use with ApplySubmission in Execute callbacks.
func (r *Risk) CanSubmit() error {
	if !r.Status.CanTransitionTo(StatusProposed) {
		return transitionError(r.Status, StatusProposed)
	}
	return nil
}

// ApplySubmission moves the risk into the review queue.
// Call CanSubmit first to validate the transition.
func (r *Risk) ApplySubmission(now time.Time) {
	r.Status = StatusProposed
	r.UpdatedAt = now
}

// Submit validates and applies submission in one call.
// Prefer CanSubmit + ApplySubmission for the Execute callback pattern.
func (r *Risk) Submit(now time.Time) error {
	if err := r.CanSubmit(); err != nil {
		return err
	}
	r.ApplySubmission(now)
	return nil
}

// -----------------------------------------------------------------------------
// Approval (PROPOSED -> ACTIVE)
// -----------------------------------------------------------------------------

// CanApprove checks if the risk can be activated.
// Use with ApplyApproval in Execute callbacks.
func (r *Risk) CanApprove() error {
	if !r.Status.CanTransitionTo(StatusActive) {
		return transitionError(r.Status, StatusActive)
	}
	return nil
}

// ApplyApproval activates the risk. When the reviewer supplies revised scores
// they replace the initial inputs before recomputation; either way the
// assessment is recomputed, never carried over from client input. Any prior
// rejection reason is cleared.
// Call CanApprove first to validate the transition.
func (r *Risk) ApplyApproval(revised *ScoreSet, now time.Time) {
	if revised != nil {
		r.Scores = revised.Clamped()
	}
	r.Assessment = r.Scores.Compute()
	r.Status = StatusActive
	r.RejectionReason = ""
	r.UpdatedAt = now
}

// Approve validates and applies approval in one call.
// Prefer CanApprove + ApplyApproval for the Execute callback pattern.
func (r *Risk) Approve(revised *ScoreSet, now time.Time) error {
	if err := r.CanApprove(); err != nil {
		return err
	}
	r.ApplyApproval(revised, now)
	return nil
}

// -----------------------------------------------------------------------------
// Rejection (PROPOSED -> REJECTED)
// -----------------------------------------------------------------------------

// CanReject checks if the risk can be rejected with the given reason.
// The transition is checked before the reason so a reviewer acting on a
// settled risk hears about the state problem, not the reason format.
func (r *Risk) CanReject(reason string) error {
	if !r.Status.CanTransitionTo(StatusRejected) {
		return transitionError(r.Status, StatusRejected)
	}
	if strings.TrimSpace(reason) == "" {
		return dErrors.New(dErrors.CodeValidation, "rejection reason cannot be empty")
	}
	return nil
}

// ApplyRejection rejects the risk, recording the reason verbatim. Scores are
// left untouched; rejection does not alter the original assessment.
// Call CanReject first to validate transition and reason.
func (r *Risk) ApplyRejection(reason string, now time.Time) {
	r.Status = StatusRejected
	r.RejectionReason = reason
	r.UpdatedAt = now
}

// Reject validates and applies rejection in one call.
// Prefer CanReject + ApplyRejection for the Execute callback pattern.
func (r *Risk) Reject(reason string, now time.Time) error {
	if err := r.CanReject(reason); err != nil {
		return err
	}
	r.ApplyRejection(reason, now)
	return nil
}

// -----------------------------------------------------------------------------
// Merge (PROPOSED -> MERGED)
// -----------------------------------------------------------------------------

// CanMergeInto checks if the risk can be folded into the given target.
// The target must exist, be a different risk, and be ACTIVE at merge time,
// which structurally rules out merging into a MERGED risk.
func (r *Risk) CanMergeInto(target *Risk) error {
	if !r.Status.CanTransitionTo(StatusMerged) {
		return transitionError(r.Status, StatusMerged)
	}
	if target == nil {
		return dErrors.New(dErrors.CodeNotFound, "merge target not found")
	}
	if target.ID == r.ID {
		return dErrors.New(dErrors.CodeValidation, "a risk cannot be merged into itself")
	}
	if target.Status != StatusActive {
		return dErrors.New(dErrors.CodeValidation, "merge target must be an active risk")
	}
	return nil
}

// ApplyMerge retires the risk as a duplicate of targetID. Merge records
// provenance only: the target's own fields are never touched, and chains are
// not walked if the target itself later merges.
// Call CanMergeInto first to validate the transition.
func (r *Risk) ApplyMerge(targetID id.RiskID, now time.Time) {
	tid := targetID
	r.Status = StatusMerged
	r.MergedInto = &tid
	r.UpdatedAt = now
}

// -----------------------------------------------------------------------------
// Archival (any -> ARCHIVED)
// -----------------------------------------------------------------------------

// ApplyArchive soft-retires the risk. Archival is unconditional from every
// state and idempotent; there is no Can counterpart.
func (r *Risk) ApplyArchive(now time.Time) {
	if r.Status == StatusArchived && r.Archived {
		return
	}
	r.Status = StatusArchived
	r.Archived = true
	r.UpdatedAt = now
}

// -----------------------------------------------------------------------------
// Mitigation overlay
// -----------------------------------------------------------------------------

// SetMitigation records the residual assessment inputs and recomputes the
// derived result. Inputs may be partial; the result only materializes once
// all four are present. Present inputs are clamped like initial scores.
func (r *Risk) SetMitigation(confidentiality, integrity, availability, likelihood *int, now time.Time) {
	r.Mitigation = Mitigation{
		Confidentiality: clampOptional(confidentiality),
		Integrity:       clampOptional(integrity),
		Availability:    clampOptional(availability),
		Likelihood:      clampOptional(likelihood),
	}
	r.Mitigation.recompute()
	r.UpdatedAt = now
}

// ClearMitigation returns the risk to the not-yet-mitigated state. Clearing
// an already-clear mitigation is a no-op, not an error.
func (r *Risk) ClearMitigation(now time.Time) {
	if r.Mitigation.Empty() && r.Mitigation.Result == nil {
		return
	}
	r.Mitigation = Mitigation{}
	r.UpdatedAt = now
}

func clampOptional(v *int) *int {
	if v == nil {
		return nil
	}
	c := scoring.Clamp(*v)
	return &c
}

// -----------------------------------------------------------------------------
// Control linkage
// -----------------------------------------------------------------------------

// LinkControl adds a control reference, reporting whether the set changed.
// Linking an already-linked control is a no-op.
func (r *Risk) LinkControl(controlID id.ControlID, now time.Time) bool {
	for _, existing := range r.ControlIDs {
		if existing == controlID {
			return false
		}
	}
	r.ControlIDs = append(r.ControlIDs, controlID)
	r.UpdatedAt = now
	return true
}

// UnlinkControl removes a control reference, reporting whether the set
// changed. Unlinking an absent control is a no-op.
func (r *Risk) UnlinkControl(controlID id.ControlID, now time.Time) bool {
	for i, existing := range r.ControlIDs {
		if existing == controlID {
			r.ControlIDs = append(r.ControlIDs[:i], r.ControlIDs[i+1:]...)
			r.UpdatedAt = now
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// Review scheduling
// -----------------------------------------------------------------------------

// CanMarkReviewed checks if review scheduling applies to this risk.
// Only STATIC register entries carry a review cycle.
func (r *Risk) CanMarkReviewed() error {
	if r.Nature != NatureStatic {
		return dErrors.New(dErrors.CodeValidation, "review scheduling applies to static risks only")
	}
	return nil
}

// ApplyReview stamps the review cycle: last review becomes now, next review
// is the caller's choice (nil clears the schedule).
// Call CanMarkReviewed first to validate.
func (r *Risk) ApplyReview(nextReview *time.Time, now time.Time) {
	t := now
	r.LastReviewDate = &t
	r.NextReviewDate = nextReview
	r.UpdatedAt = now
}
