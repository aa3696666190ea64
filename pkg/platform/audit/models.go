package audit

import (
	"time"

	id "parapet/pkg/domain"
)

// EventCategory assigns an audit event to one of the three streams. The
// category decides the Kafka topic, the retention table, and how much loss
// the pipeline tolerates on the way there.
type EventCategory string

const (
	// CategoryCompliance is the fail-closed stream: register mutations a
	// regulator can ask about years later. Never sampled, never dropped.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity feeds monitoring and forensics. Buffered and
	// asynchronous; under sustained pressure the oldest entries give way.
	CategorySecurity EventCategory = "security"

	// CategoryOperations is debugging visibility. Sampled, fire-and-forget,
	// short retention.
	CategoryOperations EventCategory = "operations"
)

// Severity grades security events for downstream alert routing.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Kafka topics per category. The outbox relay publishes to these and the
// consumers materialize them into their retention tables.
const (
	TopicCompliance = "parapet.audit.compliance"
	TopicSecurity   = "parapet.audit.security"
	TopicOps        = "parapet.audit.ops"
)

// Topic returns the Kafka topic for this category.
func (c EventCategory) Topic() string {
	switch c {
	case CategoryCompliance:
		return TopicCompliance
	case CategorySecurity:
		return TopicSecurity
	default:
		return TopicOps
	}
}

// AuditEvent names a recorded action. The name becomes the Action field of
// the emitted event and keys the category routing below.
type AuditEvent string

const (
	// Register lifecycle events
	EventRiskCreated   AuditEvent = "risk_created"
	EventRiskSubmitted AuditEvent = "risk_submitted"
	EventRiskApproved  AuditEvent = "risk_approved"
	EventRiskRejected  AuditEvent = "risk_rejected"
	EventRiskMerged    AuditEvent = "risk_merged"
	EventRiskArchived  AuditEvent = "risk_archived"

	// Treatment events
	EventMitigationUpdated AuditEvent = "risk_mitigation_updated"
	EventMitigationCleared AuditEvent = "risk_mitigation_cleared"
	EventControlLinked     AuditEvent = "risk_control_linked"
	EventControlUnlinked   AuditEvent = "risk_control_unlinked"

	// Review events
	EventRiskReviewed         AuditEvent = "risk_reviewed"
	EventReviewInboxTruncated AuditEvent = "review_inbox_truncated"

	// Security events
	EventActorAuthFailed      AuditEvent = "actor_auth_failed"
	EventPolicyNonConformance AuditEvent = "policy_nonconformance_flagged"
)

var categoryByEvent = map[AuditEvent]EventCategory{
	EventRiskCreated:       CategoryCompliance,
	EventRiskApproved:      CategoryCompliance,
	EventRiskRejected:      CategoryCompliance,
	EventRiskMerged:        CategoryCompliance,
	EventRiskArchived:      CategoryCompliance,
	EventMitigationUpdated: CategoryCompliance,
	EventMitigationCleared: CategoryCompliance,

	EventActorAuthFailed:      CategorySecurity,
	EventPolicyNonConformance: CategorySecurity,

	EventRiskSubmitted:        CategoryOperations,
	EventControlLinked:        CategoryOperations,
	EventControlUnlinked:      CategoryOperations,
	EventRiskReviewed:         CategoryOperations,
	EventReviewInboxTruncated: CategoryOperations,
}

// Category routes an audit event to its stream. Events missing from the
// routing table land in operations, the only stream that tolerates loss.
func (e AuditEvent) Category() EventCategory {
	if c := categoryByEvent[e]; c != "" {
		return c
	}
	return CategoryOperations
}

// Event is the shared shape the store layer and the outbox relay work with.
// The three publisher-facing types below widen into it via ToEvent.
type Event struct {
	Category  EventCategory
	Timestamp time.Time

	// What happened, to which risk.
	RiskID   id.RiskID
	Subject  string
	Action   string
	Decision string
	Reason   string

	// Request provenance. ActorID is a string so service principals can act
	// alongside human reviewers.
	IP        string
	UserAgent string
	RequestID string
	ActorID   string

	// Severity is meaningful for security events only.
	Severity Severity
}

// ComplianceEvent is a register mutation that must be durably recorded before
// the mutation itself commits. A zero Timestamp is stamped at emission.
type ComplianceEvent struct {
	Timestamp time.Time
	RiskID    id.RiskID // required; a compliance event always names a risk
	Subject   string    // usually the risk title
	Action    string
	Decision  string // outcome, e.g. "approved", "rejected"
	Reason    string // supplied rationale, e.g. the rejection reason
	RequestID string
	ActorID   string
}

func (e ComplianceEvent) Category() EventCategory { return CategoryCompliance }

// ToEvent widens into the shared Event shape for the store layer.
func (e ComplianceEvent) ToEvent() Event {
	return Event{
		Category:  CategoryCompliance,
		Timestamp: e.Timestamp,
		RiskID:    e.RiskID,
		Subject:   e.Subject,
		Action:    e.Action,
		Decision:  e.Decision,
		Reason:    e.Reason,
		RequestID: e.RequestID,
		ActorID:   e.ActorID,
	}
}

// SecurityEvent is buffered and written asynchronously. It carries the client
// fingerprint the forensics queries need; when the buffer fills, the oldest
// entries are overwritten rather than blocking the request path.
type SecurityEvent struct {
	Timestamp time.Time
	Subject   string // entity involved: actor ID, IP, or risk ID
	Action    string
	Reason    string // e.g. "token_expired"
	IP        string
	UserAgent string
	RequestID string
	ActorID   string // set when the actor differs from the subject
	Severity  Severity
}

func (e SecurityEvent) Category() EventCategory { return CategorySecurity }

// ToEvent widens into the shared Event shape for the store layer.
func (e SecurityEvent) ToEvent() Event {
	return Event{
		Category:  CategorySecurity,
		Timestamp: e.Timestamp,
		Subject:   e.Subject,
		Action:    e.Action,
		Reason:    e.Reason,
		IP:        e.IP,
		UserAgent: e.UserAgent,
		RequestID: e.RequestID,
		ActorID:   e.ActorID,
		Severity:  e.Severity,
	}
}

// OpsEvent is the cheapest emission: sampled, fire-and-forget, no outcome
// fields. A zero Timestamp is stamped at emission.
type OpsEvent struct {
	Timestamp time.Time
	RiskID    id.RiskID // the risk involved, when there is one
	Subject   string
	Action    string
	RequestID string
}

func (e OpsEvent) Category() EventCategory { return CategoryOperations }

// ToEvent widens into the shared Event shape for the store layer.
func (e OpsEvent) ToEvent() Event {
	return Event{
		Category:  CategoryOperations,
		Timestamp: e.Timestamp,
		RiskID:    e.RiskID,
		Subject:   e.Subject,
		Action:    e.Action,
		RequestID: e.RequestID,
	}
}
