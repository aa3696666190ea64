package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"parapet/internal/review"
	"parapet/internal/review/handler/mocks"
	"parapet/internal/risk/models"
	id "parapet/pkg/domain"
	dErrors "parapet/pkg/domain-errors"
)

//go:generate mockgen -source=handler.go -destination=mocks/review-mocks.go -package=mocks Service
type ReviewHandlerSuite struct {
	suite.Suite
	ctx context.Context
}

func (s *ReviewHandlerSuite) SetupSuite() {
	s.ctx = context.Background()
}

func TestReviewHandlerSuite(t *testing.T) {
	suite.Run(t, new(ReviewHandlerSuite))
}

func newTestHandler(t *testing.T) (*chi.Mux, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockService := mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	handler := New(mockService, logger)
	r := chi.NewRouter()
	handler.Register(r)
	return r, mockService
}

func (s *ReviewHandlerSuite) TestHandleInbox() {
	router, mockService := newTestHandler(s.T())
	proposed := &models.Risk{
		ID:     id.NewRiskID(),
		Title:  "Unpatched edge routers",
		Status: models.StatusProposed,
	}
	candidate := &models.Risk{
		ID:     id.NewRiskID(),
		Title:  "Router firmware drift",
		Status: models.StatusDraft,
	}
	mockService.EXPECT().BuildInbox(gomock.Any()).Return(&review.Inbox{
		Proposed:        []*models.Risk{proposed},
		MergeCandidates: []*models.Risk{candidate},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/review/inbox", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	proposedItems := resp["proposed"].([]any)
	require.Len(s.T(), proposedItems, 1)
	first := proposedItems[0].(map[string]any)
	assert.Equal(s.T(), "Unpatched edge routers", first["title"])
	candidates := resp["merge_candidates"].([]any)
	require.Len(s.T(), candidates, 1)
	assert.Equal(s.T(), false, resp["truncated"])
}

func (s *ReviewHandlerSuite) TestHandleInbox_TruncatedStillOK() {
	router, mockService := newTestHandler(s.T())
	mockService.EXPECT().BuildInbox(gomock.Any()).Return(&review.Inbox{
		Proposed:        []*models.Risk{},
		MergeCandidates: []*models.Risk{},
		Truncated:       true,
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/review/inbox", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), true, resp["truncated"])
}

func (s *ReviewHandlerSuite) TestHandleInbox_ServiceError() {
	router, mockService := newTestHandler(s.T())
	mockService.EXPECT().BuildInbox(gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeInternal, "inbox aggregation failed"))

	req := httptest.NewRequest(http.MethodGet, "/review/inbox", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusInternalServerError, w.Code)
	assert.JSONEq(s.T(), `{"error": "internal_error"}`, w.Body.String())
}
