package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"parapet/internal/risk/models"
	"parapet/internal/risk/store"
	id "parapet/pkg/domain"
	dErrors "parapet/pkg/domain-errors"
	"parapet/pkg/platform/audit"
	"parapet/pkg/platform/httputil"
	"parapet/pkg/requestcontext"
)

// Service defines the interface for risk register operations.
type Service interface {
	Create(ctx context.Context, details models.RiskDetails, scores models.ScoreSet, treatment models.Treatment, initialStatus models.RiskStatus) (*models.Risk, error)
	Get(ctx context.Context, riskID id.RiskID) (*models.Risk, error)
	List(ctx context.Context, filter store.Filter, page, limit int) (*store.Page, error)
	Submit(ctx context.Context, riskID id.RiskID) (*models.Risk, error)
	Approve(ctx context.Context, riskID id.RiskID, revised *models.ScoreSet) (*models.Risk, error)
	Reject(ctx context.Context, riskID id.RiskID, reason string) (*models.Risk, error)
	Merge(ctx context.Context, riskID, targetID id.RiskID) (*models.Risk, error)
	Archive(ctx context.Context, riskID id.RiskID) (*models.Risk, error)
	UpdateMitigation(ctx context.Context, riskID id.RiskID, confidentiality, integrity, availability, likelihood *int) (*models.Risk, string, error)
	ClearMitigation(ctx context.Context, riskID id.RiskID) (*models.Risk, error)
	LinkControl(ctx context.Context, riskID id.RiskID, controlID id.ControlID) (*models.Risk, error)
	UnlinkControl(ctx context.Context, riskID id.RiskID, controlID id.ControlID) (*models.Risk, error)
	MarkReviewed(ctx context.Context, riskID id.RiskID, nextReview *time.Time) (*models.Risk, error)
	ListEvents(ctx context.Context, riskID id.RiskID) ([]audit.Event, error)
}

// Handler wires register endpoints to the risk service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a risk handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts risk endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/risks", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)

		r.Route("/{riskID}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Get("/events", h.HandleListEvents)
			r.Post("/submit", h.HandleSubmit)
			r.Post("/approve", h.HandleApprove)
			r.Post("/reject", h.HandleReject)
			r.Post("/merge", h.HandleMerge)
			r.Post("/archive", h.HandleArchive)
			r.Post("/review", h.HandleMarkReviewed)
			r.Put("/mitigation", h.HandleUpdateMitigation)
			r.Delete("/mitigation", h.HandleClearMitigation)
			r.Post("/controls/{controlID}", h.HandleLinkControl)
			r.Delete("/controls/{controlID}", h.HandleUnlinkControl)
		})
	})
}

// HandleCreate handles POST /risks requests.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateRiskRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	risk, err := h.service.Create(ctx, req.Details(), req.Scores, req.ParsedTreatment(), req.ParsedStatus())
	if err != nil {
		h.logError(ctx, "create risk", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, risk)
}

// HandleList handles GET /risks requests. Filters arrive as query
// parameters: status, archived, due_before, page, limit.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, page, limit, err := parseListQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.List(ctx, filter, page, limit)
	if err != nil {
		h.logError(ctx, "list risks", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromPage(result, page))
}

// HandleGet handles GET /risks/{riskID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	riskID, ok := h.riskIDFromURL(w, r)
	if !ok {
		return
	}

	risk, err := h.service.Get(ctx, riskID)
	if err != nil {
		h.logError(ctx, "get risk", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, risk)
}

// HandleListEvents handles GET /risks/{riskID}/events requests, returning
// the audit trail for one risk in chronological order.
func (h *Handler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	riskID, ok := h.riskIDFromURL(w, r)
	if !ok {
		return
	}

	events, err := h.service.ListEvents(ctx, riskID)
	if err != nil {
		h.logError(ctx, "list risk events", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromEvents(events))
}

// HandleSubmit handles POST /risks/{riskID}/submit requests.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	riskID, ok := h.riskIDFromURL(w, r)
	if !ok {
		return
	}

	risk, err := h.service.Submit(ctx, riskID)
	if err != nil {
		h.logError(ctx, "submit risk", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, risk)
}

// HandleApprove handles POST /risks/{riskID}/approve requests. The body is
// optional; when present it may carry revised scores that replace the
// proposer's assessment.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	riskID, ok := h.riskIDFromURL(w, r)
	if !ok {
		return
	}

	var revised *models.ScoreSet
	if r.ContentLength != 0 {
		req, ok := httputil.DecodeAndPrepare[ApproveRequest](w, r, h.logger, ctx, requestID)
		if !ok {
			return
		}
		revised = req.RevisedScores
	}

	risk, err := h.service.Approve(ctx, riskID, revised)
	if err != nil {
		h.logError(ctx, "approve risk", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, risk)
}

// HandleReject handles POST /risks/{riskID}/reject requests.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	riskID, ok := h.riskIDFromURL(w, r)
	if !ok {
		return
	}

	// Reason presence is deliberately not validated here: the service checks
	// the risk's state before the reason, and that ordering is observable in
	// the error a caller gets back.
	req, ok := httputil.DecodeAndPrepare[RejectRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	risk, err := h.service.Reject(ctx, riskID, req.Reason)
	if err != nil {
		h.logError(ctx, "reject risk", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, risk)
}

// HandleMerge handles POST /risks/{riskID}/merge requests.
func (h *Handler) HandleMerge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	riskID, ok := h.riskIDFromURL(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[MergeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	risk, err := h.service.Merge(ctx, riskID, req.ParsedTargetID())
	if err != nil {
		h.logError(ctx, "merge risk", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, risk)
}

// HandleArchive handles POST /risks/{riskID}/archive requests.
func (h *Handler) HandleArchive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	riskID, ok := h.riskIDFromURL(w, r)
	if !ok {
		return
	}

	risk, err := h.service.Archive(ctx, riskID)
	if err != nil {
		h.logError(ctx, "archive risk", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, risk)
}

// HandleMarkReviewed handles POST /risks/{riskID}/review requests. The body
// is optional; omitting it records the review without scheduling the next one.
func (h *Handler) HandleMarkReviewed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	riskID, ok := h.riskIDFromURL(w, r)
	if !ok {
		return
	}

	var nextReview *time.Time
	if r.ContentLength != 0 {
		req, ok := httputil.DecodeAndPrepare[ReviewRequest](w, r, h.logger, ctx, requestID)
		if !ok {
			return
		}
		nextReview = req.NextReviewDate
	}

	risk, err := h.service.MarkReviewed(ctx, riskID, nextReview)
	if err != nil {
		h.logError(ctx, "mark risk reviewed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, risk)
}

// HandleUpdateMitigation handles PUT /risks/{riskID}/mitigation requests.
func (h *Handler) HandleUpdateMitigation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	riskID, ok := h.riskIDFromURL(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[MitigationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	risk, warning, err := h.service.UpdateMitigation(ctx, riskID,
		req.Confidentiality, req.Integrity, req.Availability, req.Likelihood)
	if err != nil {
		h.logError(ctx, "update mitigation", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, MitigationResponse{Risk: risk, Warning: warning})
}

// HandleClearMitigation handles DELETE /risks/{riskID}/mitigation requests.
func (h *Handler) HandleClearMitigation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	riskID, ok := h.riskIDFromURL(w, r)
	if !ok {
		return
	}

	risk, err := h.service.ClearMitigation(ctx, riskID)
	if err != nil {
		h.logError(ctx, "clear mitigation", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, risk)
}

// HandleLinkControl handles POST /risks/{riskID}/controls/{controlID} requests.
func (h *Handler) HandleLinkControl(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	riskID, ok := h.riskIDFromURL(w, r)
	if !ok {
		return
	}
	controlID, ok := h.controlIDFromURL(w, r)
	if !ok {
		return
	}

	risk, err := h.service.LinkControl(ctx, riskID, controlID)
	if err != nil {
		h.logError(ctx, "link control", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, risk)
}

// HandleUnlinkControl handles DELETE /risks/{riskID}/controls/{controlID} requests.
func (h *Handler) HandleUnlinkControl(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	riskID, ok := h.riskIDFromURL(w, r)
	if !ok {
		return
	}
	controlID, ok := h.controlIDFromURL(w, r)
	if !ok {
		return
	}

	risk, err := h.service.UnlinkControl(ctx, riskID, controlID)
	if err != nil {
		h.logError(ctx, "unlink control", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, risk)
}

func (h *Handler) riskIDFromURL(w http.ResponseWriter, r *http.Request) (id.RiskID, bool) {
	riskID, err := id.ParseRiskID(chi.URLParam(r, "riskID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid risk id"))
		return id.RiskID{}, false
	}
	return riskID, true
}

func (h *Handler) controlIDFromURL(w http.ResponseWriter, r *http.Request) (id.ControlID, bool) {
	controlID, err := id.ParseControlID(chi.URLParam(r, "controlID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid control id"))
		return id.ControlID{}, false
	}
	return controlID, true
}

func (h *Handler) logError(ctx context.Context, action string, err error) {
	log := h.logger.WarnContext
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		log = h.logger.ErrorContext
	}
	log(ctx, action+" failed",
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
}
