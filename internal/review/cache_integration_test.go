//go:build integration

package review

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parapet/internal/risk/models"
	"parapet/pkg/testutil/containers"
)

func TestCache_RoundTrip(t *testing.T) {
	rc := containers.GetManager().GetRedis(t)
	require.NoError(t, rc.FlushAll(context.Background()))

	cache := NewCache(rc.Client, WithCacheTTL(time.Minute))
	require.NotNil(t, cache)
	ctx := context.Background()

	_, ok := cache.Get(ctx)
	assert.False(t, ok, "empty cache should miss")

	inbox := &Inbox{
		Proposed:        makeRisks(models.StatusProposed, 3),
		MergeCandidates: makeRisks(models.StatusActive, 2),
		Truncated:       true,
	}
	cache.Set(ctx, inbox)

	cached, ok := cache.Get(ctx)
	require.True(t, ok)
	assert.Len(t, cached.Proposed, 3)
	assert.Len(t, cached.MergeCandidates, 2)
	assert.True(t, cached.Truncated)
	assert.Equal(t, inbox.Proposed[0].ID, cached.Proposed[0].ID)
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	rc := containers.GetManager().GetRedis(t)
	require.NoError(t, rc.FlushAll(context.Background()))

	cache := NewCache(rc.Client, WithCacheTTL(200*time.Millisecond))
	ctx := context.Background()

	cache.Set(ctx, &Inbox{Proposed: []*models.Risk{}, MergeCandidates: []*models.Risk{}})
	_, ok := cache.Get(ctx)
	require.True(t, ok)

	time.Sleep(400 * time.Millisecond)
	_, ok = cache.Get(ctx)
	assert.False(t, ok, "snapshot should expire")
}

func TestCache_ServesSnapshotWithoutRefetching(t *testing.T) {
	rc := containers.GetManager().GetRedis(t)
	require.NoError(t, rc.FlushAll(context.Background()))

	risks := makeRisks(models.StatusProposed, 4)
	pager := &fakePager{byStatus: map[models.RiskStatus][]*models.Risk{
		models.StatusProposed: risks,
	}}
	agg := New(pager, WithCache(NewCache(rc.Client, WithCacheTTL(time.Minute))))
	ctx := context.Background()

	first, err := agg.BuildInbox(ctx)
	require.NoError(t, err)
	require.Len(t, first.Proposed, 4)
	fetchesAfterFirst := pager.fetches

	second, err := agg.BuildInbox(ctx)
	require.NoError(t, err)
	assert.Len(t, second.Proposed, 4)
	assert.Equal(t, fetchesAfterFirst, pager.fetches, "second build should hit the snapshot")
}

func TestCache_CorruptEntryReadsAsMiss(t *testing.T) {
	rc := containers.GetManager().GetRedis(t)
	require.NoError(t, rc.FlushAll(context.Background()))

	ctx := context.Background()
	require.NoError(t, rc.Client.Set(ctx, "parapet:review:inbox", "{not json", time.Minute).Err())

	cache := NewCache(rc.Client)
	_, ok := cache.Get(ctx)
	assert.False(t, ok)
}
