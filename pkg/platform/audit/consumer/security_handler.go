package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"parapet/internal/platform/kafka/consumer"
	audit "parapet/pkg/platform/audit"
)

// SecurityStore is the slice of the audit store security materialization
// needs.
type SecurityStore interface {
	AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error
	AppendSecurity(ctx context.Context, eventID uuid.UUID, event audit.SecurityEvent) error
}

// SecurityHandler materializes the security topic: each event lands in
// audit_events and in audit_security, the table SIEM exports read. Store
// failures request redelivery; undecodable records are dropped.
type SecurityHandler struct {
	store  SecurityStore
	logger *slog.Logger
}

// NewSecurityHandler creates a security topic handler.
func NewSecurityHandler(store SecurityStore, logger *slog.Logger) *SecurityHandler {
	return &SecurityHandler{store: store, logger: logger}
}

type securityPayload struct {
	Timestamp string `json:"Timestamp"`
	Subject   string `json:"Subject"`
	Action    string `json:"Action"`
	Reason    string `json:"Reason"`
	IP        string `json:"IP"`
	UserAgent string `json:"UserAgent"`
	RequestID string `json:"RequestID"`
	ActorID   string `json:"ActorID"`
	Severity  string `json:"Severity"`
}

// Handle materializes one security event.
func (h *SecurityHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	eventID, payload, err := decodeRecord[securityPayload](msg)
	if err != nil {
		h.logger.Warn("dropping undecodable security record", "error", err)
		return nil
	}

	event := audit.SecurityEvent{
		Timestamp: parseTimestamp(payload.Timestamp),
		Subject:   payload.Subject,
		Action:    payload.Action,
		Reason:    payload.Reason,
		IP:        payload.IP,
		UserAgent: payload.UserAgent,
		RequestID: payload.RequestID,
		ActorID:   payload.ActorID,
		Severity:  audit.Severity(payload.Severity),
	}
	if event.Severity == "" {
		event.Severity = audit.SeverityInfo
	}

	if err := h.store.AppendWithID(ctx, eventID, event.ToEvent()); err != nil {
		h.logger.Error("materialize security event failed",
			"event_id", eventID, "action", event.Action, "error", err)
		return fmt.Errorf("materialize security event: %w", err)
	}
	if err := h.store.AppendSecurity(ctx, eventID, event); err != nil {
		h.logger.Error("security retention write failed",
			"event_id", eventID, "action", event.Action, "error", err)
		return fmt.Errorf("append security event: %w", err)
	}

	h.logger.Debug("security event persisted",
		"event_id", eventID, "action", event.Action, "severity", event.Severity)
	return nil
}
