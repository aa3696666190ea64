package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	cmodels "parapet/internal/control/models"
	"parapet/internal/risk/metrics"
	"parapet/internal/risk/models"
	"parapet/internal/risk/store"
	id "parapet/pkg/domain"
	dErrors "parapet/pkg/domain-errors"
	"parapet/pkg/platform/audit"
	"parapet/pkg/platform/sentinel"
	"parapet/pkg/requestcontext"
)

// WarningMitigationRequired is the advisory surfaced when policy mandates a
// residual assessment and none is recorded: a HIGH risk treated with MODIFY
// must carry a complete mitigation. The warning never blocks the operation.
const WarningMitigationRequired = "policy requires a complete mitigation for HIGH risks treated with MODIFY"

// Transition outcomes for the metrics counter.
const (
	outcomeApplied = "applied"
	outcomeDenied  = "denied"
)

type RiskStore interface {
	Save(ctx context.Context, risk *models.Risk) error
	FindByID(ctx context.Context, riskID id.RiskID) (*models.Risk, error)
	FindPage(ctx context.Context, filter store.Filter, page, limit int) (*store.Page, error)
	Execute(ctx context.Context, riskID id.RiskID, validate func(*models.Risk) error, mutate func(ctx context.Context, risk *models.Risk) error) (*models.Risk, error)
}

type ControlStore interface {
	FindByID(ctx context.Context, controlID id.ControlID) (*cmodels.Control, error)
}

// EventStore reads the materialized audit trail.
type EventStore interface {
	ListByRisk(ctx context.Context, riskID id.RiskID) ([]audit.Event, error)
}

// CompliancePublisher persists register mutations fail-closed. Inside an
// Execute callback the emit runs on the transaction-carrying context, so a
// failed audit write aborts the mutation it describes.
type CompliancePublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

// SecurityPublisher queues security events. It never blocks the caller.
type SecurityPublisher interface {
	Emit(ctx context.Context, event audit.SecurityEvent)
}

// OpsPublisher records operational events fire-and-forget.
type OpsPublisher interface {
	Track(ctx context.Context, event audit.OpsEvent)
}

// Service orchestrates the risk register: authoring, the review workflow,
// treatment, and the audit trail around them.
type Service struct {
	risks      RiskStore
	controls   ControlStore
	events     EventStore
	logger     *slog.Logger
	compliance CompliancePublisher
	security   SecurityPublisher
	ops        OpsPublisher
	metrics    *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithCompliancePublisher(publisher CompliancePublisher) Option {
	return func(s *Service) {
		s.compliance = publisher
	}
}

func WithSecurityPublisher(publisher SecurityPublisher) Option {
	return func(s *Service) {
		s.security = publisher
	}
}

func WithOpsPublisher(publisher OpsPublisher) Option {
	return func(s *Service) {
		s.ops = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service. The event store may be nil, in which case the
// per-risk history reads as empty.
func New(risks RiskStore, controls ControlStore, events EventStore, opts ...Option) *Service {
	s := &Service{risks: risks, controls: controls, events: events}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a new risk in DRAFT or PROPOSED. An empty initial status
// defaults to DRAFT. Scores are clamped and the assessment computed by the
// constructor, never taken from the caller.
//
// The risk_created event is emitted after the save. Creation has no
// surrounding transaction, so a failed emit surfaces as an error even though
// the row already exists; callers see the create fail closed rather than
// lose the trail.
func (s *Service) Create(ctx context.Context, details models.RiskDetails, scores models.ScoreSet, treatment models.Treatment, initialStatus models.RiskStatus) (*models.Risk, error) {
	defer s.observe("create", time.Now())

	if initialStatus == "" {
		initialStatus = models.StatusDraft
	}

	// Use constructor which validates invariants
	risk, err := models.NewRisk(id.NewRiskID(), details, scores, treatment, initialStatus, requestcontext.Now(ctx))
	if err != nil {
		// Convert invariant violations to validation errors for API response
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	if err := s.risks.Save(ctx, risk); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save risk")
	}

	if err := s.emitCompliance(ctx, audit.ComplianceEvent{
		RiskID:   risk.ID,
		Subject:  risk.Title,
		Action:   string(audit.EventRiskCreated),
		Decision: "created",
	}); err != nil {
		s.logError(ctx, "risk created but audit emit failed", err, "risk_id", risk.ID)
		return nil, err
	}

	s.metrics.IncScoreComputed(string(risk.Assessment.Level))
	s.logAudit(ctx, string(audit.EventRiskCreated), "risk_id", risk.ID, "status", risk.Status)
	return risk, nil
}

// Get returns a single risk by ID.
func (s *Service) Get(ctx context.Context, riskID id.RiskID) (*models.Risk, error) {
	risk, err := s.risks.FindByID(ctx, riskID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "risk not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load risk")
	}
	return risk, nil
}

// List returns one page of the register. Page defaults to 1 and limit to 20,
// capped at 100.
func (s *Service) List(ctx context.Context, filter store.Filter, page, limit int) (*store.Page, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	result, err := s.risks.FindPage(ctx, filter, page, limit)
	if err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return nil, dErrors.New(dErrors.CodeValidation, "invalid page or limit")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list risks")
	}
	return result, nil
}

// Submit moves a DRAFT risk into the review queue.
func (s *Service) Submit(ctx context.Context, riskID id.RiskID) (*models.Risk, error) {
	defer s.observe("submit", time.Now())
	now := requestcontext.Now(ctx)

	risk, err := s.risks.Execute(ctx, riskID,
		func(r *models.Risk) error { return r.CanSubmit() },
		func(_ context.Context, r *models.Risk) error {
			r.ApplySubmission(now)
			return nil
		})
	if err != nil {
		s.metrics.IncTransition(string(audit.EventRiskSubmitted), outcomeDenied)
		return nil, s.translateWorkflowErr(err, "submit risk")
	}

	s.metrics.IncTransition(string(audit.EventRiskSubmitted), outcomeApplied)
	s.trackOps(ctx, audit.OpsEvent{
		RiskID:  risk.ID,
		Subject: risk.Title,
		Action:  string(audit.EventRiskSubmitted),
	})
	s.logAudit(ctx, string(audit.EventRiskSubmitted), "risk_id", risk.ID)
	return risk, nil
}

// Approve activates a PROPOSED risk. Revised scores, when supplied, replace
// the initial inputs before the assessment is recomputed. The approval event
// commits in the same transaction as the status change.
func (s *Service) Approve(ctx context.Context, riskID id.RiskID, revised *models.ScoreSet) (*models.Risk, error) {
	defer s.observe("approve", time.Now())
	now := requestcontext.Now(ctx)

	risk, err := s.risks.Execute(ctx, riskID,
		func(r *models.Risk) error { return r.CanApprove() },
		func(txCtx context.Context, r *models.Risk) error {
			r.ApplyApproval(revised, now)
			return s.emitCompliance(txCtx, audit.ComplianceEvent{
				RiskID:   r.ID,
				Subject:  r.Title,
				Action:   string(audit.EventRiskApproved),
				Decision: "approved",
			})
		})
	if err != nil {
		s.metrics.IncTransition(string(audit.EventRiskApproved), outcomeDenied)
		return nil, s.translateWorkflowErr(err, "approve risk")
	}

	s.metrics.IncTransition(string(audit.EventRiskApproved), outcomeApplied)
	s.metrics.IncScoreComputed(string(risk.Assessment.Level))
	s.logAudit(ctx, string(audit.EventRiskApproved), "risk_id", risk.ID, "level", risk.Assessment.Level)
	return risk, nil
}

// Reject turns a PROPOSED risk away with a mandatory reason. The rejection
// event commits in the same transaction as the status change.
func (s *Service) Reject(ctx context.Context, riskID id.RiskID, reason string) (*models.Risk, error) {
	defer s.observe("reject", time.Now())
	now := requestcontext.Now(ctx)

	risk, err := s.risks.Execute(ctx, riskID,
		func(r *models.Risk) error { return r.CanReject(reason) },
		func(txCtx context.Context, r *models.Risk) error {
			r.ApplyRejection(reason, now)
			return s.emitCompliance(txCtx, audit.ComplianceEvent{
				RiskID:   r.ID,
				Subject:  r.Title,
				Action:   string(audit.EventRiskRejected),
				Decision: "rejected",
				Reason:   reason,
			})
		})
	if err != nil {
		s.metrics.IncTransition(string(audit.EventRiskRejected), outcomeDenied)
		return nil, s.translateWorkflowErr(err, "reject risk")
	}

	s.metrics.IncTransition(string(audit.EventRiskRejected), outcomeApplied)
	s.logAudit(ctx, string(audit.EventRiskRejected), "risk_id", risk.ID)
	return risk, nil
}

// Merge retires a PROPOSED risk as a duplicate of an ACTIVE target. The
// target is loaded inside the transaction so the activity check and the merge
// see the same state. Only provenance is recorded; the target is not touched.
func (s *Service) Merge(ctx context.Context, riskID, targetID id.RiskID) (*models.Risk, error) {
	defer s.observe("merge", time.Now())
	now := requestcontext.Now(ctx)

	risk, err := s.risks.Execute(ctx, riskID,
		func(r *models.Risk) error {
			if targetID == r.ID {
				return dErrors.New(dErrors.CodeValidation, "a risk cannot be merged into itself")
			}
			return nil
		},
		func(txCtx context.Context, r *models.Risk) error {
			target, err := s.risks.FindByID(txCtx, targetID)
			if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load merge target")
			}
			if err := r.CanMergeInto(target); err != nil {
				return err
			}
			r.ApplyMerge(target.ID, now)
			return s.emitCompliance(txCtx, audit.ComplianceEvent{
				RiskID:   r.ID,
				Subject:  r.Title,
				Action:   string(audit.EventRiskMerged),
				Decision: "merged",
				Reason:   "merged into " + target.ID.String(),
			})
		})
	if err != nil {
		s.metrics.IncTransition(string(audit.EventRiskMerged), outcomeDenied)
		return nil, s.translateWorkflowErr(err, "merge risk")
	}

	s.metrics.IncTransition(string(audit.EventRiskMerged), outcomeApplied)
	s.logAudit(ctx, string(audit.EventRiskMerged), "risk_id", risk.ID, "target_id", targetID)
	return risk, nil
}

// Archive soft-retires a risk from any state. Archiving an archived risk is
// a no-op and emits nothing.
func (s *Service) Archive(ctx context.Context, riskID id.RiskID) (*models.Risk, error) {
	defer s.observe("archive", time.Now())
	now := requestcontext.Now(ctx)

	archived := false
	risk, err := s.risks.Execute(ctx, riskID,
		func(*models.Risk) error { return nil },
		func(txCtx context.Context, r *models.Risk) error {
			if r.Status == models.StatusArchived && r.Archived {
				return nil
			}
			r.ApplyArchive(now)
			archived = true
			return s.emitCompliance(txCtx, audit.ComplianceEvent{
				RiskID:   r.ID,
				Subject:  r.Title,
				Action:   string(audit.EventRiskArchived),
				Decision: "archived",
			})
		})
	if err != nil {
		s.metrics.IncTransition(string(audit.EventRiskArchived), outcomeDenied)
		return nil, s.translateWorkflowErr(err, "archive risk")
	}

	if archived {
		s.metrics.IncTransition(string(audit.EventRiskArchived), outcomeApplied)
		s.logAudit(ctx, string(audit.EventRiskArchived), "risk_id", risk.ID)
	}
	return risk, nil
}

// UpdateMitigation records the residual assessment inputs. Partial input is
// allowed; the residual score only materializes once all four factors are
// present. The returned warning is non-empty when policy flags the risk as
// requiring a mitigation it does not have - the update itself still applies.
func (s *Service) UpdateMitigation(ctx context.Context, riskID id.RiskID, confidentiality, integrity, availability, likelihood *int) (*models.Risk, string, error) {
	defer s.observe("update_mitigation", time.Now())
	now := requestcontext.Now(ctx)

	risk, err := s.risks.Execute(ctx, riskID,
		func(*models.Risk) error { return nil },
		func(txCtx context.Context, r *models.Risk) error {
			r.SetMitigation(confidentiality, integrity, availability, likelihood, now)
			decision := "partial"
			if r.IsMitigated() {
				decision = "complete"
			}
			return s.emitCompliance(txCtx, audit.ComplianceEvent{
				RiskID:   r.ID,
				Subject:  r.Title,
				Action:   string(audit.EventMitigationUpdated),
				Decision: decision,
			})
		})
	if err != nil {
		return nil, "", s.translateWorkflowErr(err, "update mitigation")
	}

	if risk.IsMitigated() {
		s.metrics.IncScoreComputed(string(risk.Mitigation.Result.Level))
	}

	warning := ""
	if risk.PolicyNonConformant() {
		warning = WarningMitigationRequired
		s.metrics.IncPolicyNonConformance()
		s.emitSecurity(ctx, audit.SecurityEvent{
			Subject:  risk.ID.String(),
			Action:   string(audit.EventPolicyNonConformance),
			Reason:   warning,
			Severity: audit.SeverityWarning,
		})
	}

	s.logAudit(ctx, string(audit.EventMitigationUpdated), "risk_id", risk.ID, "mitigated", risk.IsMitigated())
	return risk, warning, nil
}

// ClearMitigation removes the residual assessment. Clearing an already-clear
// mitigation is a no-op and emits nothing.
func (s *Service) ClearMitigation(ctx context.Context, riskID id.RiskID) (*models.Risk, error) {
	defer s.observe("clear_mitigation", time.Now())
	now := requestcontext.Now(ctx)

	cleared := false
	risk, err := s.risks.Execute(ctx, riskID,
		func(*models.Risk) error { return nil },
		func(txCtx context.Context, r *models.Risk) error {
			if r.Mitigation.Empty() && r.Mitigation.Result == nil {
				return nil
			}
			r.ClearMitigation(now)
			cleared = true
			return s.emitCompliance(txCtx, audit.ComplianceEvent{
				RiskID:   r.ID,
				Subject:  r.Title,
				Action:   string(audit.EventMitigationCleared),
				Decision: "cleared",
			})
		})
	if err != nil {
		return nil, s.translateWorkflowErr(err, "clear mitigation")
	}

	if cleared {
		s.logAudit(ctx, string(audit.EventMitigationCleared), "risk_id", risk.ID)
	}
	return risk, nil
}

// LinkControl attaches a mitigating control to the risk. The control must
// exist; linking one that is already linked is a no-op.
func (s *Service) LinkControl(ctx context.Context, riskID id.RiskID, controlID id.ControlID) (*models.Risk, error) {
	defer s.observe("link_control", time.Now())

	if _, err := s.controls.FindByID(ctx, controlID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "control not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load control")
	}

	now := requestcontext.Now(ctx)
	linked := false
	risk, err := s.risks.Execute(ctx, riskID,
		func(*models.Risk) error { return nil },
		func(_ context.Context, r *models.Risk) error {
			linked = r.LinkControl(controlID, now)
			return nil
		})
	if err != nil {
		return nil, s.translateWorkflowErr(err, "link control")
	}

	if linked {
		s.trackOps(ctx, audit.OpsEvent{
			RiskID:  risk.ID,
			Subject: controlID.String(),
			Action:  string(audit.EventControlLinked),
		})
		s.logAudit(ctx, string(audit.EventControlLinked), "risk_id", risk.ID, "control_id", controlID)
	}
	return risk, nil
}

// UnlinkControl detaches a control reference. No existence check here: a
// control deleted from the register must still be unlinkable. Unlinking an
// absent reference is a no-op.
func (s *Service) UnlinkControl(ctx context.Context, riskID id.RiskID, controlID id.ControlID) (*models.Risk, error) {
	defer s.observe("unlink_control", time.Now())
	now := requestcontext.Now(ctx)

	unlinked := false
	risk, err := s.risks.Execute(ctx, riskID,
		func(*models.Risk) error { return nil },
		func(_ context.Context, r *models.Risk) error {
			unlinked = r.UnlinkControl(controlID, now)
			return nil
		})
	if err != nil {
		return nil, s.translateWorkflowErr(err, "unlink control")
	}

	if unlinked {
		s.trackOps(ctx, audit.OpsEvent{
			RiskID:  risk.ID,
			Subject: controlID.String(),
			Action:  string(audit.EventControlUnlinked),
		})
		s.logAudit(ctx, string(audit.EventControlUnlinked), "risk_id", risk.ID, "control_id", controlID)
	}
	return risk, nil
}

// MarkReviewed stamps the review cycle on a STATIC risk: last review becomes
// the request time, next review is the caller's choice (nil clears it).
func (s *Service) MarkReviewed(ctx context.Context, riskID id.RiskID, nextReview *time.Time) (*models.Risk, error) {
	defer s.observe("mark_reviewed", time.Now())
	now := requestcontext.Now(ctx)

	risk, err := s.risks.Execute(ctx, riskID,
		func(r *models.Risk) error { return r.CanMarkReviewed() },
		func(_ context.Context, r *models.Risk) error {
			r.ApplyReview(nextReview, now)
			return nil
		})
	if err != nil {
		return nil, s.translateWorkflowErr(err, "mark risk reviewed")
	}

	s.trackOps(ctx, audit.OpsEvent{
		RiskID:  risk.ID,
		Subject: risk.Title,
		Action:  string(audit.EventRiskReviewed),
	})
	s.logAudit(ctx, string(audit.EventRiskReviewed), "risk_id", risk.ID)
	return risk, nil
}

// ListEvents returns the audit trail for a risk, newest first. The risk must
// exist; a configured-but-empty trail reads as an empty slice.
func (s *Service) ListEvents(ctx context.Context, riskID id.RiskID) ([]audit.Event, error) {
	if _, err := s.risks.FindByID(ctx, riskID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "risk not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load risk")
	}
	if s.events == nil {
		return []audit.Event{}, nil
	}

	events, err := s.events.ListByRisk(ctx, riskID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit events")
	}
	return events, nil
}

// translateWorkflowErr maps Execute failures onto API error codes. Workflow
// validation errors already carry a code and pass through unchanged; a missing
// risk becomes CodeNotFound; anything else is an infrastructure failure.
func (s *Service) translateWorkflowErr(err error, action string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "risk not found")
	}
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to "+action)
}

// emitCompliance persists a compliance event through the configured
// publisher, stamping actor and request correlation from the context. A nil
// publisher disables the trail. The error propagates so in-transaction
// callers abort the mutation with it.
func (s *Service) emitCompliance(ctx context.Context, event audit.ComplianceEvent) error {
	if s.compliance == nil {
		return nil
	}
	event.RequestID = requestcontext.RequestID(ctx)
	if event.ActorID == "" {
		if actorID := requestcontext.ActorID(ctx); !actorID.IsNil() {
			event.ActorID = actorID.String()
		}
	}
	if err := s.compliance.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

func (s *Service) emitSecurity(ctx context.Context, event audit.SecurityEvent) {
	if s.security == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	if event.IP == "" {
		event.IP = requestcontext.ClientIP(ctx)
	}
	if event.UserAgent == "" {
		event.UserAgent = requestcontext.UserAgent(ctx)
	}
	if event.ActorID == "" {
		if actorID := requestcontext.ActorID(ctx); !actorID.IsNil() {
			event.ActorID = actorID.String()
		}
	}
	s.security.Emit(ctx, event)
}

func (s *Service) trackOps(ctx context.Context, event audit.OpsEvent) {
	if s.ops == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	s.ops.Track(ctx, event)
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if s.logger == nil {
		return
	}
	// Add request_id from context if available
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}

func (s *Service) logError(ctx context.Context, msg string, err error, attributes ...any) {
	if s.logger == nil {
		return
	}
	args := append(attributes, "error", err)
	s.logger.ErrorContext(ctx, msg, args...)
}

func (s *Service) observe(operation string, start time.Time) {
	s.metrics.ObserveOperation(operation, time.Since(start))
}
