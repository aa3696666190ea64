package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"parapet/internal/platform/kafka/consumer"
	id "parapet/pkg/domain"
	audit "parapet/pkg/platform/audit"
)

// ComplianceStore is the slice of the audit store compliance materialization
// needs.
type ComplianceStore interface {
	AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error
	AppendCompliance(ctx context.Context, eventID uuid.UUID, event audit.ComplianceEvent) error
}

// ComplianceHandler materializes the compliance topic. Every event is written
// twice: into audit_events, which serves the per-risk history endpoint, and
// into the audit_compliance retention table. Store failures surface as errors
// so the consumer redelivers; only records that can never be valid (bad key,
// bad JSON, no risk) are dropped, loudly.
type ComplianceHandler struct {
	store  ComplianceStore
	logger *slog.Logger
}

// NewComplianceHandler creates a compliance topic handler.
func NewComplianceHandler(store ComplianceStore, logger *slog.Logger) *ComplianceHandler {
	return &ComplianceHandler{store: store, logger: logger}
}

type compliancePayload struct {
	Timestamp string `json:"Timestamp"`
	RiskID    string `json:"RiskID"`
	Subject   string `json:"Subject"`
	Action    string `json:"Action"`
	Decision  string `json:"Decision"`
	Reason    string `json:"Reason"`
	RequestID string `json:"RequestID"`
	ActorID   string `json:"ActorID"`
}

// Handle materializes one compliance event.
func (h *ComplianceHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	eventID, payload, err := decodeRecord[compliancePayload](msg)
	if err != nil {
		h.logger.Error("CRITICAL: dropping undecodable compliance record", "error", err)
		return nil
	}
	if payload.RiskID == "" {
		h.logger.Error("CRITICAL: compliance event missing RiskID",
			"event_id", eventID, "action", payload.Action)
		return nil
	}

	event := audit.ComplianceEvent{
		Timestamp: parseTimestamp(payload.Timestamp),
		Subject:   payload.Subject,
		Action:    payload.Action,
		Decision:  payload.Decision,
		Reason:    payload.Reason,
		RequestID: payload.RequestID,
		ActorID:   payload.ActorID,
	}
	if rid, err := uuid.Parse(payload.RiskID); err == nil {
		event.RiskID = id.RiskID(rid)
	}

	// audit_events first, retention second. Both inserts are keyed by the
	// event ID, so a crash between them just replays as two no-ops.
	if err := h.store.AppendWithID(ctx, eventID, event.ToEvent()); err != nil {
		h.logger.Error("materialize compliance event failed",
			"event_id", eventID, "action", event.Action, "error", err)
		return fmt.Errorf("materialize compliance event: %w", err)
	}
	if err := h.store.AppendCompliance(ctx, eventID, event); err != nil {
		h.logger.Error("compliance retention write failed",
			"event_id", eventID, "action", event.Action, "error", err)
		return fmt.Errorf("append compliance event: %w", err)
	}

	h.logger.Debug("compliance event persisted",
		"event_id", eventID, "action", event.Action, "risk_id", event.RiskID)
	return nil
}
