// Package e2e drives a running parapet server over HTTP with godog. Point
// PARAPET_E2E_BASE_URL at the server before running the suite.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TestContext carries the HTTP client and the state scenarios thread through
// steps: the last response and the IDs saved along the way.
type TestContext struct {
	baseURL string
	client  *http.Client

	lastStatus int
	lastBody   []byte

	riskID       string
	targetRiskID string
	controlID    string
}

func NewTestContext(baseURL string) *TestContext {
	return &TestContext{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Reset clears per-scenario state so scenarios stay independent.
func (tc *TestContext) Reset() {
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.riskID = ""
	tc.targetRiskID = ""
	tc.controlID = ""
}

func (tc *TestContext) POST(path string, body map[string]any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body for %s: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(http.MethodPost, tc.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return tc.do(req)
}

func (tc *TestContext) PUT(path string, body map[string]any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body for %s: %w", path, err)
	}
	req, err := http.NewRequest(http.MethodPut, tc.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return tc.do(req)
}

func (tc *TestContext) GET(path string) error {
	req, err := http.NewRequest(http.MethodGet, tc.baseURL+path, nil)
	if err != nil {
		return err
	}
	return tc.do(req)
}

func (tc *TestContext) do(req *http.Request) error {
	res, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("read response of %s %s: %w", req.Method, req.URL.Path, err)
	}
	tc.lastStatus = res.StatusCode
	tc.lastBody = body
	return nil
}

func (tc *TestContext) LastStatus() int { return tc.lastStatus }

// GetResponseField walks a dotted path ("assessment.score") through the last
// JSON response body.
func (tc *TestContext) GetResponseField(path string) (any, error) {
	var decoded any
	if err := json.Unmarshal(tc.lastBody, &decoded); err != nil {
		return nil, fmt.Errorf("last response is not JSON: %w", err)
	}
	current := decoded
	for _, key := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q: %q is not an object", path, key)
		}
		current, ok = obj[key]
		if !ok {
			return nil, fmt.Errorf("field %q not present in response: %s", path, tc.lastBody)
		}
	}
	return current, nil
}

func (tc *TestContext) SetRiskID(id string)       { tc.riskID = id }
func (tc *TestContext) GetRiskID() string         { return tc.riskID }
func (tc *TestContext) SetTargetRiskID(id string) { tc.targetRiskID = id }
func (tc *TestContext) GetTargetRiskID() string   { return tc.targetRiskID }
func (tc *TestContext) SetControlID(id string)    { tc.controlID = id }
func (tc *TestContext) GetControlID() string      { return tc.controlID }
