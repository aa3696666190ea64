package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kafkaconsumer "parapet/internal/platform/kafka/consumer"
	id "parapet/pkg/domain"
	audit "parapet/pkg/platform/audit"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMessage(t *testing.T, topic string, key string, payload any) *kafkaconsumer.Message {
	t.Helper()
	value, err := json.Marshal(payload)
	require.NoError(t, err)
	return &kafkaconsumer.Message{
		Topic:     topic,
		Key:       []byte(key),
		Value:     value,
		Timestamp: time.Now(),
	}
}

func TestComplianceHandler_MaterializesEvent(t *testing.T) {
	store := newStoreStub()
	handler := NewComplianceHandler(store, testLogger())

	eventID := uuid.New()
	riskID := id.NewRiskID()
	msg := testMessage(t, audit.TopicCompliance, eventID.String(), map[string]string{
		"Timestamp": time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC).Format(time.RFC3339Nano),
		"RiskID":    riskID.String(),
		"Subject":   "Vendor data exposure",
		"Action":    string(audit.EventRiskApproved),
		"Decision":  "approved",
		"ActorID":   "reviewer-1",
	})

	require.NoError(t, handler.Handle(context.Background(), msg))

	require.Len(t, store.generic, 1)
	assert.Equal(t, eventID, store.generic[0].eventID)
	assert.Equal(t, audit.CategoryCompliance, store.generic[0].event.Category)
	assert.Equal(t, riskID, store.generic[0].event.RiskID)

	require.Len(t, store.compliance, 1)
	assert.Equal(t, eventID, store.compliance[0].eventID)
	assert.Equal(t, string(audit.EventRiskApproved), store.compliance[0].event.Action)
	assert.Equal(t, "approved", store.compliance[0].event.Decision)
	assert.Equal(t, riskID, store.compliance[0].event.RiskID)
}

func TestComplianceHandler_MissingRiskIDCommits(t *testing.T) {
	store := newStoreStub()
	handler := NewComplianceHandler(store, testLogger())

	msg := testMessage(t, audit.TopicCompliance, uuid.NewString(), map[string]string{
		"Action": string(audit.EventRiskApproved),
	})

	// Malformed compliance events commit rather than poison the partition
	require.NoError(t, handler.Handle(context.Background(), msg))
	assert.Empty(t, store.generic)
	assert.Empty(t, store.compliance)
}

func TestComplianceHandler_MalformedKeyCommits(t *testing.T) {
	store := newStoreStub()
	handler := NewComplianceHandler(store, testLogger())

	msg := testMessage(t, audit.TopicCompliance, "not-a-uuid", map[string]string{
		"RiskID": id.NewRiskID().String(),
		"Action": string(audit.EventRiskApproved),
	})

	require.NoError(t, handler.Handle(context.Background(), msg))
	assert.Empty(t, store.compliance)
}

func TestComplianceHandler_StoreErrorTriggersRedelivery(t *testing.T) {
	store := newStoreStub()
	store.err = errors.New("connection reset")
	handler := NewComplianceHandler(store, testLogger())

	msg := testMessage(t, audit.TopicCompliance, uuid.NewString(), map[string]string{
		"RiskID": id.NewRiskID().String(),
		"Action": string(audit.EventRiskRejected),
	})

	err := handler.Handle(context.Background(), msg)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.err)
}

func TestSecurityHandler_DefaultsSeverity(t *testing.T) {
	store := newStoreStub()
	handler := NewSecurityHandler(store, testLogger())

	msg := testMessage(t, audit.TopicSecurity, uuid.NewString(), map[string]string{
		"Subject": "actor-7",
		"Action":  string(audit.EventActorAuthFailed),
		"Reason":  "token_expired",
		"IP":      "203.0.113.9",
	})

	require.NoError(t, handler.Handle(context.Background(), msg))

	require.Len(t, store.security, 1)
	assert.Equal(t, audit.SeverityInfo, store.security[0].event.Severity)
	assert.Equal(t, "203.0.113.9", store.security[0].event.IP)
	require.Len(t, store.generic, 1)
	assert.Equal(t, audit.CategorySecurity, store.generic[0].event.Category)
}

func TestSecurityHandler_PreservesSeverity(t *testing.T) {
	store := newStoreStub()
	handler := NewSecurityHandler(store, testLogger())

	msg := testMessage(t, audit.TopicSecurity, uuid.NewString(), map[string]string{
		"Action":   string(audit.EventPolicyNonConformance),
		"Severity": string(audit.SeverityWarning),
	})

	require.NoError(t, handler.Handle(context.Background(), msg))
	require.Len(t, store.security, 1)
	assert.Equal(t, audit.SeverityWarning, store.security[0].event.Severity)
}

func TestOpsHandler_ParsesRiskID(t *testing.T) {
	store := newStoreStub()
	handler := NewOpsHandler(store, testLogger())

	riskID := id.NewRiskID()
	msg := testMessage(t, audit.TopicOps, uuid.NewString(), map[string]string{
		"RiskID":  riskID.String(),
		"Subject": "Vendor data exposure",
		"Action":  string(audit.EventControlLinked),
	})

	require.NoError(t, handler.Handle(context.Background(), msg))

	require.Len(t, store.generic, 1)
	assert.Equal(t, riskID, store.generic[0].event.RiskID)
	require.Len(t, store.ops, 1)
	assert.Equal(t, string(audit.EventControlLinked), store.ops[0].event.Action)
}

func TestOpsHandler_BestEffortOnStoreError(t *testing.T) {
	store := newStoreStub()
	store.err = errors.New("connection reset")
	handler := NewOpsHandler(store, testLogger())

	msg := testMessage(t, audit.TopicOps, uuid.NewString(), map[string]string{
		"Action": string(audit.EventRiskSubmitted),
	})

	// Ops events never block the partition
	require.NoError(t, handler.Handle(context.Background(), msg))
}

// storeStub records appends across all three retention interfaces.
type storeStub struct {
	mu         sync.Mutex
	err        error
	generic    []genericAppend
	compliance []complianceAppend
	security   []securityAppend
	ops        []opsAppend
}

type genericAppend struct {
	eventID uuid.UUID
	event   audit.Event
}

type complianceAppend struct {
	eventID uuid.UUID
	event   audit.ComplianceEvent
}

type securityAppend struct {
	eventID uuid.UUID
	event   audit.SecurityEvent
}

type opsAppend struct {
	eventID uuid.UUID
	event   audit.OpsEvent
}

func newStoreStub() *storeStub {
	return &storeStub{}
}

func (s *storeStub) AppendWithID(_ context.Context, eventID uuid.UUID, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.generic = append(s.generic, genericAppend{eventID: eventID, event: event})
	return nil
}

func (s *storeStub) AppendCompliance(_ context.Context, eventID uuid.UUID, event audit.ComplianceEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.compliance = append(s.compliance, complianceAppend{eventID: eventID, event: event})
	return nil
}

func (s *storeStub) AppendSecurity(_ context.Context, eventID uuid.UUID, event audit.SecurityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.security = append(s.security, securityAppend{eventID: eventID, event: event})
	return nil
}

func (s *storeStub) AppendOps(_ context.Context, eventID uuid.UUID, event audit.OpsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.ops = append(s.ops, opsAppend{eventID: eventID, event: event})
	return nil
}
