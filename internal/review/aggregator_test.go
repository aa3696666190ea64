package review

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parapet/internal/risk/models"
	"parapet/internal/risk/store"
	id "parapet/pkg/domain"
	dErrors "parapet/pkg/domain-errors"
	"parapet/pkg/platform/audit"
)

func testAggregatorLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makeRisks(status models.RiskStatus, n int) []*models.Risk {
	risks := make([]*models.Risk, n)
	for i := range risks {
		risks[i] = &models.Risk{
			ID:     id.NewRiskID(),
			Title:  fmt.Sprintf("%s-%d", status, i),
			Status: status,
		}
	}
	return risks
}

// fakePager serves canned risks in store order. The two status loops hit it
// concurrently, hence the mutex.
type fakePager struct {
	mu            sync.Mutex
	byStatus      map[models.RiskStatus][]*models.Risk
	neverComplete bool
	err           error
	fetches       int
}

func (f *fakePager) FindPage(_ context.Context, filter store.Filter, page, limit int) (*store.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	f.fetches++

	status := *filter.Status
	if f.neverComplete {
		return &store.Page{
			Items:      makeRisks(status, 1),
			TotalPages: page + 1,
		}, nil
	}

	all := f.byStatus[status]
	totalPages := (len(all) + limit - 1) / limit
	start := (page - 1) * limit
	if start >= len(all) {
		return &store.Page{Items: []*models.Risk{}, TotalPages: totalPages}, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return &store.Page{Items: all[start:end], TotalPages: totalPages}, nil
}

type recordingOps struct {
	mu     sync.Mutex
	events []audit.OpsEvent
}

func (r *recordingOps) Track(_ context.Context, event audit.OpsEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func TestBuildInbox_CollectsAllPages(t *testing.T) {
	pager := &fakePager{byStatus: map[models.RiskStatus][]*models.Risk{
		models.StatusProposed: makeRisks(models.StatusProposed, 150),
		models.StatusActive:   makeRisks(models.StatusActive, 30),
	}}
	agg := New(pager, WithLogger(testAggregatorLogger()))

	inbox, err := agg.BuildInbox(context.Background())
	require.NoError(t, err)
	assert.Len(t, inbox.Proposed, 150)
	assert.Len(t, inbox.MergeCandidates, 30)
	assert.False(t, inbox.Truncated)

	// 150 proposed at 100/page is two fetches, 30 active is one.
	assert.Equal(t, 3, pager.fetches)

	// Store order survives: no re-sorting across page boundaries.
	assert.Equal(t, "PROPOSED-0", inbox.Proposed[0].Title)
	assert.Equal(t, "PROPOSED-149", inbox.Proposed[149].Title)
}

func TestBuildInbox_EmptyRegister(t *testing.T) {
	pager := &fakePager{byStatus: map[models.RiskStatus][]*models.Risk{}}
	agg := New(pager)

	inbox, err := agg.BuildInbox(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, inbox.Proposed)
	assert.Empty(t, inbox.Proposed)
	assert.NotNil(t, inbox.MergeCandidates)
	assert.Empty(t, inbox.MergeCandidates)
	assert.False(t, inbox.Truncated)
}

func TestBuildInbox_SafetyLimitReturnsPartial(t *testing.T) {
	ops := &recordingOps{}
	pager := &fakePager{neverComplete: true}
	agg := New(pager,
		WithLogger(testAggregatorLogger()),
		WithPageSize(1),
		WithMaxPages(5),
		WithOpsPublisher(ops),
	)

	inbox, err := agg.BuildInbox(context.Background())
	require.NoError(t, err)
	assert.True(t, inbox.Truncated)
	assert.Len(t, inbox.Proposed, 5)
	assert.Len(t, inbox.MergeCandidates, 5)

	require.Len(t, ops.events, 1)
	assert.Equal(t, string(audit.EventReviewInboxTruncated), ops.events[0].Action)
}

func TestBuildInbox_StoreErrorAborts(t *testing.T) {
	pager := &fakePager{err: errors.New("connection refused")}
	agg := New(pager, WithLogger(testAggregatorLogger()))

	inbox, err := agg.BuildInbox(context.Background())
	require.Error(t, err)
	assert.Nil(t, inbox)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
}

func TestBuildInbox_SinglePartialPage(t *testing.T) {
	pager := &fakePager{byStatus: map[models.RiskStatus][]*models.Risk{
		models.StatusProposed: makeRisks(models.StatusProposed, 7),
	}}
	agg := New(pager)

	inbox, err := agg.BuildInbox(context.Background())
	require.NoError(t, err)
	assert.Len(t, inbox.Proposed, 7)
	assert.Empty(t, inbox.MergeCandidates)
	assert.False(t, inbox.Truncated)
}
