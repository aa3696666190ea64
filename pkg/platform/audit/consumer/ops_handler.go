package consumer

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"parapet/internal/platform/kafka/consumer"
	id "parapet/pkg/domain"
	audit "parapet/pkg/platform/audit"
)

// OpsStore is the slice of the audit store operational materialization needs.
type OpsStore interface {
	AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error
	AppendOps(ctx context.Context, eventID uuid.UUID, event audit.OpsEvent) error
}

// OpsHandler materializes the operations topic into audit_events and the
// short-retention audit_ops table. The whole path is best effort: every
// failure is logged and the record committed, nothing is redelivered.
type OpsHandler struct {
	store  OpsStore
	logger *slog.Logger
}

// NewOpsHandler creates an operations topic handler.
func NewOpsHandler(store OpsStore, logger *slog.Logger) *OpsHandler {
	return &OpsHandler{store: store, logger: logger}
}

type opsPayload struct {
	Timestamp string `json:"Timestamp"`
	RiskID    string `json:"RiskID"`
	Subject   string `json:"Subject"`
	Action    string `json:"Action"`
	RequestID string `json:"RequestID"`
}

// Handle materializes one operational event.
func (h *OpsHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	eventID, payload, err := decodeRecord[opsPayload](msg)
	if err != nil {
		h.logger.Debug("dropping undecodable ops record", "error", err)
		return nil
	}

	event := audit.OpsEvent{
		Timestamp: parseTimestamp(payload.Timestamp),
		Subject:   payload.Subject,
		Action:    payload.Action,
		RequestID: payload.RequestID,
	}
	// Authoring and linkage events carry the risk they touched; inbox
	// truncation does not.
	if rid, err := uuid.Parse(payload.RiskID); err == nil {
		event.RiskID = id.RiskID(rid)
	}

	if err := h.store.AppendWithID(ctx, eventID, event.ToEvent()); err != nil {
		h.logger.Debug("materialize ops event failed",
			"event_id", eventID, "action", event.Action, "error", err)
	}
	if err := h.store.AppendOps(ctx, eventID, event); err != nil {
		h.logger.Debug("ops retention write failed",
			"event_id", eventID, "action", event.Action, "error", err)
	}
	return nil
}
