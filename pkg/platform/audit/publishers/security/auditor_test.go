package security

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "parapet/pkg/platform/audit"
	"parapet/pkg/platform/audit/store/memory"
)

func TestAuditor_FlushesToStore(t *testing.T) {
	store := memory.NewInMemoryStore()
	auditor := NewAuditor(store, WithFlushInterval(10*time.Millisecond))
	defer auditor.Close()

	for range 3 {
		auditor.Emit(context.Background(), audit.SecurityEvent{
			Subject: "actor-7",
			Action:  string(audit.EventActorAuthFailed),
			Reason:  "token_expired",
		})
	}

	require.Eventually(t, func() bool {
		events, err := store.ListRecent(context.Background(), 10)
		return err == nil && len(events) == 3
	}, 2*time.Second, 10*time.Millisecond)

	events, err := store.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	for _, event := range events {
		assert.Equal(t, audit.CategorySecurity, event.Category)
		assert.False(t, event.Timestamp.IsZero())
	}
}

func TestAuditor_CloseFlushesRemaining(t *testing.T) {
	store := memory.NewInMemoryStore()
	auditor := NewAuditor(store, WithFlushInterval(time.Hour))

	for range 5 {
		auditor.Emit(context.Background(), audit.SecurityEvent{
			Action: string(audit.EventActorAuthFailed),
		})
	}
	require.NoError(t, auditor.Close())

	events, err := store.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, events, 5)
}

func TestAuditor_DropsOldestWhenFull(t *testing.T) {
	store := memory.NewInMemoryStore()
	auditor := NewAuditor(store,
		WithBufferCapacity(2),
		WithFlushInterval(time.Hour),
	)

	for _, subject := range []string{"first", "second", "third"} {
		auditor.Emit(context.Background(), audit.SecurityEvent{
			Subject: subject,
			Action:  string(audit.EventActorAuthFailed),
		})
	}
	require.NoError(t, auditor.Close())

	events, err := store.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	subjects := make([]string, 0, len(events))
	for _, event := range events {
		subjects = append(subjects, event.Subject)
	}
	assert.ElementsMatch(t, []string{"second", "third"}, subjects)
}

func TestAuditor_DefaultsSeverity(t *testing.T) {
	store := memory.NewInMemoryStore()
	auditor := NewAuditor(store, WithFlushInterval(time.Hour))

	auditor.Emit(context.Background(), audit.SecurityEvent{
		Action: string(audit.EventPolicyNonConformance),
	})
	auditor.Emit(context.Background(), audit.SecurityEvent{
		Action:   string(audit.EventActorAuthFailed),
		Severity: audit.SeverityCritical,
	})
	require.NoError(t, auditor.Close())

	events, err := store.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	severities := map[string]audit.Severity{}
	for _, event := range events {
		severities[event.Action] = event.Severity
	}
	assert.Equal(t, audit.SeverityInfo, severities[string(audit.EventPolicyNonConformance)])
	assert.Equal(t, audit.SeverityCritical, severities[string(audit.EventActorAuthFailed)])
}

func TestRingBuffer_TracksDrops(t *testing.T) {
	buf := NewRingBuffer(2)

	buf.Enqueue(audit.SecurityEvent{Subject: "a"})
	buf.Enqueue(audit.SecurityEvent{Subject: "b"})
	buf.Enqueue(audit.SecurityEvent{Subject: "c"})

	assert.Equal(t, 2, buf.Len())
	assert.Equal(t, int64(1), buf.Dropped())

	batch := buf.DequeueBatch(10)
	require.Len(t, batch, 2)
	assert.Equal(t, "b", batch[0].Subject)
	assert.Equal(t, "c", batch[1].Subject)
}
