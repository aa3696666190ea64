package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "parapet/pkg/domain"
	audit "parapet/pkg/platform/audit"
	txcontext "parapet/pkg/platform/tx"
)

// Store is the Postgres audit trail. Writes go through the outbox table and
// reach Kafka via the relay; reads come from audit_events, the materialized
// view the consumer maintains. The category retention tables
// (audit_compliance, audit_security, audit_ops) are consumer-only.
type Store struct {
	db *sql.DB
}

// New returns a Store over the given pool.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type sqlRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// runner picks the transaction carried in ctx when there is one, so an Append
// issued inside a store.Execute mutation commits or rolls back with it.
func (s *Store) runner(ctx context.Context) sqlRunner {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// outboxEnvelope is what the relay ships to Kafka, keyed by event ID.
// JSON keys mirror audit.Event field names; the consumer payload structs
// decode by the same keys.
type outboxEnvelope struct {
	ID        string `json:"ID"`
	Category  string `json:"Category"`
	Timestamp string `json:"Timestamp"`
	RiskID    string `json:"RiskID,omitempty"`
	Subject   string `json:"Subject"`
	Action    string `json:"Action"`
	Decision  string `json:"Decision,omitempty"`
	Reason    string `json:"Reason,omitempty"`
	IP        string `json:"IP,omitempty"`
	UserAgent string `json:"UserAgent,omitempty"`
	RequestID string `json:"RequestID,omitempty"`
	ActorID   string `json:"ActorID,omitempty"`
	Severity  string `json:"Severity,omitempty"`
}

func encodeEnvelope(eventID uuid.UUID, event audit.Event) ([]byte, error) {
	// Category comes from the action's registration, not from the caller.
	env := outboxEnvelope{
		ID:        eventID.String(),
		Category:  string(audit.AuditEvent(event.Action).Category()),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		Subject:   event.Subject,
		Action:    event.Action,
		Decision:  event.Decision,
		Reason:    event.Reason,
		IP:        event.IP,
		UserAgent: event.UserAgent,
		RequestID: event.RequestID,
		ActorID:   event.ActorID,
		Severity:  string(event.Severity),
	}
	if !event.RiskID.IsNil() {
		env.RiskID = uuid.UUID(event.RiskID).String()
	}
	return json.Marshal(env)
}

// aggregate names the entity an outbox row belongs to. Events tied to a risk
// group under it; everything else stands alone under the event's own ID.
func aggregate(eventID uuid.UUID, event audit.Event) (kind, ref string) {
	if !event.RiskID.IsNil() {
		return "risk", uuid.UUID(event.RiskID).String()
	}
	return "audit", eventID.String()
}

// Append stages an event in the outbox. When ctx carries a transaction the
// row joins it, which is how compliance events commit atomically with the
// register mutation they describe.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()

	payload, err := encodeEnvelope(eventID, event)
	if err != nil {
		return fmt.Errorf("encode outbox payload: %w", err)
	}
	kind, ref := aggregate(eventID, event)

	const q = `
		INSERT INTO outbox (id, event_id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := s.runner(ctx).ExecContext(ctx, q,
		uuid.New(), eventID, kind, ref, event.Action, payload, time.Now(),
	); err != nil {
		return fmt.Errorf("stage outbox row: %w", err)
	}
	return nil
}

// AppendWithID materializes an event into audit_events under the ID it was
// published with. The consumer calls this; ON CONFLICT DO NOTHING makes
// redelivery a no-op.
func (s *Store) AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error {
	const q = `
		INSERT INTO audit_events (id, category, timestamp, risk_id, subject, action,
		                          decision, reason, request_id, actor_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`

	if _, err := s.db.ExecContext(ctx, q,
		eventID,
		string(event.Category),
		event.Timestamp,
		nullableRisk(event.RiskID),
		event.Subject,
		event.Action,
		event.Decision,
		event.Reason,
		event.RequestID,
		event.ActorID,
	); err != nil {
		return fmt.Errorf("write audit event: %w", err)
	}
	return nil
}

// nullableRisk maps the zero RiskID to SQL NULL.
func nullableRisk(riskID id.RiskID) *uuid.UUID {
	if riskID.IsNil() {
		return nil
	}
	u := uuid.UUID(riskID)
	return &u
}

const eventColumns = `category, timestamp, risk_id, subject, action, decision, reason, request_id, actor_id`

// ListByRisk returns the trail for one risk, newest first.
func (s *Store) ListByRisk(ctx context.Context, riskID id.RiskID) ([]audit.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM audit_events WHERE risk_id = $1 ORDER BY timestamp DESC`

	rows, err := s.db.QueryContext(ctx, q, uuid.UUID(riskID))
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

// ListRecent returns the newest limit events across all risks.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM audit_events ORDER BY timestamp DESC LIMIT $1`

	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

func collectEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var (
			event    audit.Event
			category string
			riskID   *uuid.UUID
		)
		if err := rows.Scan(
			&category,
			&event.Timestamp,
			&riskID,
			&event.Subject,
			&event.Action,
			&event.Decision,
			&event.Reason,
			&event.RequestID,
			&event.ActorID,
		); err != nil {
			return nil, fmt.Errorf("decode audit row: %w", err)
		}
		event.Category = audit.EventCategory(category)
		if riskID != nil {
			event.RiskID = id.RiskID(*riskID)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read audit rows: %w", err)
	}
	return events, nil
}

// Retention tables, one per category. All three inserts share the
// redelivery-tolerant ON CONFLICT DO NOTHING shape.

// AppendCompliance writes a compliance event into audit_compliance.
func (s *Store) AppendCompliance(ctx context.Context, eventID uuid.UUID, record audit.ComplianceEvent) error {
	const q = `
		INSERT INTO audit_compliance (id, timestamp, risk_id, subject, action,
		                              decision, reason, request_id, actor_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`

	if _, err := s.db.ExecContext(ctx, q,
		eventID,
		record.Timestamp,
		uuid.UUID(record.RiskID),
		record.Subject,
		record.Action,
		record.Decision,
		record.Reason,
		record.RequestID,
		record.ActorID,
	); err != nil {
		return fmt.Errorf("write compliance retention row: %w", err)
	}
	return nil
}

// AppendSecurity writes a security event into audit_security. This is the one
// table that keeps client IP and user agent.
func (s *Store) AppendSecurity(ctx context.Context, eventID uuid.UUID, record audit.SecurityEvent) error {
	const q = `
		INSERT INTO audit_security (id, timestamp, subject, action, reason,
		                            ip, user_agent, request_id, actor_id, severity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`

	if _, err := s.db.ExecContext(ctx, q,
		eventID,
		record.Timestamp,
		record.Subject,
		record.Action,
		record.Reason,
		record.IP,
		record.UserAgent,
		record.RequestID,
		record.ActorID,
		string(record.Severity),
	); err != nil {
		return fmt.Errorf("write security retention row: %w", err)
	}
	return nil
}

// AppendOps writes an operational event into audit_ops. The table is
// timestamp-partitioned (hence the composite conflict key) and keeps no risk
// linkage; risk history is served by audit_events.
func (s *Store) AppendOps(ctx context.Context, eventID uuid.UUID, record audit.OpsEvent) error {
	const q = `
		INSERT INTO audit_ops (id, timestamp, subject, action, request_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id, timestamp) DO NOTHING`

	if _, err := s.db.ExecContext(ctx, q,
		eventID,
		record.Timestamp,
		record.Subject,
		record.Action,
		record.RequestID,
	); err != nil {
		return fmt.Errorf("write ops retention row: %w", err)
	}
	return nil
}
