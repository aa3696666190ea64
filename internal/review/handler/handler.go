package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"parapet/internal/review"
	"parapet/pkg/platform/httputil"
	"parapet/pkg/requestcontext"
)

// Service defines the interface for review worklist operations.
type Service interface {
	BuildInbox(ctx context.Context) (*review.Inbox, error)
}

// Handler serves the reviewer worklist.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a review handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts review endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/review/inbox", h.HandleInbox)
}

// HandleInbox handles GET /review/inbox requests. A truncated inbox is still
// a 200: the payload's truncated flag tells the reviewer the picture may be
// incomplete without hiding the work that was collected.
func (h *Handler) HandleInbox(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	inbox, err := h.service.BuildInbox(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "build review inbox failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, inbox)
}
