package handler

import (
	"time"

	"parapet/internal/risk/models"
	"parapet/internal/risk/store"
	id "parapet/pkg/domain"
	"parapet/pkg/platform/audit"
)

// ListRisksResponse is the HTTP response for GET /risks.
type ListRisksResponse struct {
	Items      []*models.Risk `json:"items"`
	Page       int            `json:"page"`
	TotalPages int            `json:"total_pages"`
}

// FromPage converts a store page to an HTTP response.
func FromPage(result *store.Page, page int) *ListRisksResponse {
	if page < 1 {
		page = 1
	}
	items := result.Items
	if items == nil {
		items = []*models.Risk{}
	}
	return &ListRisksResponse{
		Items:      items,
		Page:       page,
		TotalPages: result.TotalPages,
	}
}

// MitigationResponse is the HTTP response for PUT /risks/{riskID}/mitigation.
// Warning carries the advisory policy message when a HIGH risk treated with
// MODIFY still lacks a complete mitigation; it never blocks the update.
type MitigationResponse struct {
	Risk    *models.Risk `json:"risk"`
	Warning string       `json:"warning,omitempty"`
}

// EventResponse is one audit trail entry in GET /risks/{riskID}/events.
// Client IP and user agent stay out of this response; they are for the
// security tables, not the register UI.
type EventResponse struct {
	Category  string    `json:"category"`
	Timestamp time.Time `json:"timestamp"`
	RiskID    id.RiskID `json:"risk_id"`
	Action    string    `json:"action"`
	Subject   string    `json:"subject,omitempty"`
	Decision  string    `json:"decision,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	ActorID   string    `json:"actor_id,omitempty"`
}

// FromEvents converts audit events to HTTP responses.
func FromEvents(events []audit.Event) []EventResponse {
	out := make([]EventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, EventResponse{
			Category:  string(e.Category),
			Timestamp: e.Timestamp,
			RiskID:    e.RiskID,
			Action:    e.Action,
			Subject:   e.Subject,
			Decision:  e.Decision,
			Reason:    e.Reason,
			RequestID: e.RequestID,
			ActorID:   e.ActorID,
		})
	}
	return out
}
