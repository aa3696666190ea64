package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"parapet/internal/control/models"
	"parapet/pkg/platform/httputil"
	"parapet/pkg/requestcontext"
)

// Catalog is the read surface the pick-list endpoint needs. The catalog is
// maintained out of band (seeding, operations tooling), so the HTTP layer
// only lists it.
type Catalog interface {
	List(ctx context.Context) ([]*models.Control, error)
}

// Handler serves the control catalog.
type Handler struct {
	catalog Catalog
	logger  *slog.Logger
}

func New(catalog Catalog, logger *slog.Logger) *Handler {
	return &Handler{
		catalog: catalog,
		logger:  logger,
	}
}

// Register mounts catalog endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/controls", h.HandleList)
}

// ListControlsResponse is the HTTP response for GET /controls.
type ListControlsResponse struct {
	Items []*models.Control `json:"items"`
}

// HandleList handles GET /controls requests.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	controls, err := h.catalog.List(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list controls failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	if controls == nil {
		controls = []*models.Control{}
	}
	httputil.WriteJSON(w, http.StatusOK, ListControlsResponse{Items: controls})
}
