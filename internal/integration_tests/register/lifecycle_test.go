package register

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	controlhandler "parapet/internal/control/handler"
	controlstore "parapet/internal/control/store"
	jwttoken "parapet/internal/jwt_token"
	"parapet/internal/review"
	reviewhandler "parapet/internal/review/handler"
	riskhandler "parapet/internal/risk/handler"
	riskservice "parapet/internal/risk/service"
	riskstore "parapet/internal/risk/store"
	id "parapet/pkg/domain"
	compliancepub "parapet/pkg/platform/audit/publishers/compliance"
	opspub "parapet/pkg/platform/audit/publishers/ops"
	securitypub "parapet/pkg/platform/audit/publishers/security"
	auditmem "parapet/pkg/platform/audit/store/memory"
	"parapet/pkg/platform/middleware/actor"
	"parapet/pkg/platform/middleware/contenttype"
	"parapet/pkg/platform/middleware/logging"
	"parapet/pkg/platform/middleware/metadata"
	"parapet/pkg/platform/middleware/recovery"
	"parapet/pkg/platform/middleware/requestid"
	"parapet/pkg/platform/middleware/requesttime"
)

// newRegisterServer assembles the full HTTP stack the way main does in
// development mode: in-memory stores, seeded controls, real publishers over
// the in-memory trail, and the complete middleware chain.
func newRegisterServer(t *testing.T) (http.Handler, *jwttoken.Service) {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	risks := riskstore.NewInMemory()
	controls := controlstore.NewInMemory()
	require.NoError(t, controlstore.SeedBaselineControls(ctx, controls))
	trail := auditmem.NewInMemoryStore()

	compliance := compliancepub.New(trail, compliancepub.WithLogger(logger))
	t.Cleanup(func() { _ = compliance.Close() })
	security := securitypub.NewAuditor(trail, securitypub.WithLogger(logger))
	t.Cleanup(func() { _ = security.Close() })
	ops := opspub.NewTracker(trail, opspub.WithLogger(logger))
	t.Cleanup(func() { _ = ops.Close() })

	svc := riskservice.New(risks, controls, trail,
		riskservice.WithLogger(logger),
		riskservice.WithCompliancePublisher(compliance),
		riskservice.WithSecurityPublisher(security),
		riskservice.WithOpsPublisher(ops),
	)
	aggregator := review.New(risks,
		review.WithLogger(logger),
		review.WithOpsPublisher(ops),
	)
	tokens := jwttoken.NewService("integration-signing-key", "parapet", "parapet-api")

	r := chi.NewRouter()
	r.Use(recovery.Middleware(logger))
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(logging.Middleware(logger))
	r.Use(contenttype.RequireJSON)
	r.Use(actor.Attribution(tokens, security, logger))

	riskhandler.New(svc, logger).Register(r)
	controlhandler.New(controls, logger).Register(r)
	reviewhandler.New(aggregator, logger).Register(r)

	return r, tokens
}

func doRequest(t *testing.T, router http.Handler, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestRegisterLifecycle_HappyPath(t *testing.T) {
	router, tokens := newRegisterServer(t)

	reviewer := id.NewUserID()
	token, err := tokens.Mint(reviewer, time.Hour)
	require.NoError(t, err)

	// The seeded catalog backs the control pick-list.
	rr := doRequest(t, router, http.MethodGet, "/controls", token, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var catalog struct {
		Items []struct {
			ID        string `json:"id"`
			Reference string `json:"reference"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &catalog))
	require.NotEmpty(t, catalog.Items)
	controlID := catalog.Items[0].ID

	rr = doRequest(t, router, http.MethodPost, "/risks", token, `{
		"title": "Unpatched edge routers",
		"description": "Branch routers run a firmware version with known RCEs.",
		"risk_category": "security",
		"risk_nature": "INSTANCE",
		"treatment": "MODIFY",
		"status": "PROPOSED",
		"scores": {"confidentiality": 5, "integrity": 5, "availability": 5, "likelihood": 3}
	}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decodeJSON(t, rr)
	riskID := created["id"].(string)
	assessment := created["assessment"].(map[string]any)
	assert.Equal(t, float64(45), assessment["score"])
	assert.Equal(t, "HIGH", assessment["level"])
	assert.Equal(t, "PROPOSED", created["status"])

	// The proposed risk shows up on the reviewer's inbox.
	rr = doRequest(t, router, http.MethodGet, "/review/inbox", token, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var inbox struct {
		Proposed []struct {
			ID string `json:"id"`
		} `json:"proposed"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &inbox))
	require.Len(t, inbox.Proposed, 1)
	assert.Equal(t, riskID, inbox.Proposed[0].ID)

	rr = doRequest(t, router, http.MethodPost, "/risks/"+riskID+"/approve", token, "{}")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "ACTIVE", decodeJSON(t, rr)["status"])

	rr = doRequest(t, router, http.MethodPost, "/risks/"+riskID+"/controls/"+controlID, token, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	linked := decodeJSON(t, rr)
	require.Len(t, linked["control_ids"], 1)

	rr = doRequest(t, router, http.MethodPut, "/risks/"+riskID+"/mitigation", token, `{
		"confidentiality": 2, "integrity": 2, "availability": 1, "likelihood": 2
	}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	mitigated := decodeJSON(t, rr)
	assert.NotContains(t, mitigated, "warning")
	result := mitigated["risk"].(map[string]any)["mitigation"].(map[string]any)["result"].(map[string]any)
	assert.Equal(t, float64(10), result["score"])
	assert.Equal(t, "LOW", result["level"])

	// Every register mutation above left a compliance entry attributed to
	// the token's actor. Operational entries (the control link) are written
	// asynchronously, so only the compliance slice is asserted exactly.
	rr = doRequest(t, router, http.MethodGet, "/risks/"+riskID+"/events", token, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var events []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &events))
	var complianceActions []string
	for _, event := range events {
		assert.Equal(t, riskID, event["risk_id"])
		if event["category"] != "compliance" {
			continue
		}
		complianceActions = append(complianceActions, event["action"].(string))
		assert.Equal(t, reviewer.String(), event["actor_id"])
	}
	assert.Equal(t, []string{"risk_created", "risk_approved", "risk_mitigation_updated"}, complianceActions)
}

func TestRegister_ErrorScenarios(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		target      string // %s is replaced with the risk id from setup
		body        string
		contentType string // overrides application/json when set
		setup       func(t *testing.T, router http.Handler) string
		wantStatus  int
		wantError   string
	}{
		{
			name:        "create with wrong content type",
			method:      http.MethodPost,
			target:      "/risks",
			body:        `{"title": "Laptop theft"}`,
			contentType: "text/plain",
			wantStatus:  http.StatusBadRequest,
			wantError:   "bad_request",
		},
		{
			name:       "create with malformed JSON",
			method:     http.MethodPost,
			target:     "/risks",
			body:       `{"title":`,
			wantStatus: http.StatusBadRequest,
			wantError:  "bad_request",
		},
		{
			name:       "create with unknown status",
			method:     http.MethodPost,
			target:     "/risks",
			body:       `{"title": "Laptop theft", "risk_category": "security", "scores": {"confidentiality": 2, "integrity": 2, "availability": 2, "likelihood": 2}, "status": "LIVE"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "validation_error",
		},
		{
			name:       "fetch with a non-uuid id",
			method:     http.MethodGet,
			target:     "/risks/not-a-uuid",
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_input",
		},
		{
			name:       "fetch an unknown risk",
			method:     http.MethodGet,
			target:     "/risks/" + uuid.NewString(),
			wantStatus: http.StatusNotFound,
			wantError:  "not_found",
		},
		{
			name:   "approve a draft",
			method: http.MethodPost,
			target: "/risks/%s/approve",
			body:   "{}",
			setup: func(t *testing.T, router http.Handler) string {
				return createRisk(t, router, "DRAFT")
			},
			wantStatus: http.StatusConflict,
			wantError:  "invariant_violation",
		},
		{
			name:   "reject without a reason",
			method: http.MethodPost,
			target: "/risks/%s/reject",
			body:   "{}",
			setup: func(t *testing.T, router http.Handler) string {
				return createRisk(t, router, "PROPOSED")
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "validation_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newRegisterServer(t)

			target := tt.target
			if tt.setup != nil {
				target = fmt.Sprintf(tt.target, tt.setup(t, router))
			}

			var reader io.Reader = http.NoBody
			if tt.body != "" {
				reader = bytes.NewReader([]byte(tt.body))
			}
			req := httptest.NewRequest(tt.method, target, reader)
			if tt.body != "" {
				contentType := tt.contentType
				if contentType == "" {
					contentType = "application/json"
				}
				req.Header.Set("Content-Type", contentType)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			require.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			var envelope struct {
				Error       string `json:"error"`
				Description string `json:"error_description"`
			}
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))
			assert.Equal(t, tt.wantError, envelope.Error)
			assert.NotEmpty(t, envelope.Description)
		})
	}
}

// An unusable token is a security signal, not an authorization failure: the
// request proceeds anonymously and the trail simply carries no actor.
func TestRegister_InvalidTokenProceedsAnonymously(t *testing.T) {
	router, _ := newRegisterServer(t)

	rr := doRequest(t, router, http.MethodPost, "/risks", "not-a-jwt", `{
		"title": "Stale vendor accounts",
		"risk_category": "security",
		"scores": {"confidentiality": 2, "integrity": 3, "availability": 1, "likelihood": 2}
	}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	riskID := decodeJSON(t, rr)["id"].(string)

	rr = doRequest(t, router, http.MethodGet, "/risks/"+riskID+"/events", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var events []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "risk_created", events[0]["action"].(string))
	assert.NotContains(t, events[0], "actor_id")
}

func createRisk(t *testing.T, router http.Handler, status string) string {
	t.Helper()
	rr := doRequest(t, router, http.MethodPost, "/risks", "", fmt.Sprintf(`{
		"title": "Shared admin credentials",
		"risk_category": "security",
		"scores": {"confidentiality": 3, "integrity": 3, "availability": 2, "likelihood": 2},
		"status": %q
	}`, status))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decodeJSON(t, rr)["id"].(string)
}
