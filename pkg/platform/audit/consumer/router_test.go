package consumer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kafkaconsumer "parapet/internal/platform/kafka/consumer"
	audit "parapet/pkg/platform/audit"
)

type recordingHandler struct {
	topics []string
}

func (h *recordingHandler) Handle(_ context.Context, msg *kafkaconsumer.Message) error {
	h.topics = append(h.topics, msg.Topic)
	return nil
}

func TestRouter_DispatchesByTopic(t *testing.T) {
	compliance := &recordingHandler{}
	ops := &recordingHandler{}

	router := NewRouter(testLogger(), nil)
	router.Register(audit.TopicCompliance, compliance)
	router.Register(audit.TopicOps, ops)

	require.NoError(t, router.Handle(context.Background(), &kafkaconsumer.Message{Topic: audit.TopicCompliance}))
	require.NoError(t, router.Handle(context.Background(), &kafkaconsumer.Message{Topic: audit.TopicOps}))
	require.NoError(t, router.Handle(context.Background(), &kafkaconsumer.Message{Topic: audit.TopicOps}))

	assert.Len(t, compliance.topics, 1)
	assert.Len(t, ops.topics, 2)
}

func TestRouter_UnknownTopicCommits(t *testing.T) {
	router := NewRouter(testLogger(), nil)
	router.Register(audit.TopicCompliance, &recordingHandler{})

	err := router.Handle(context.Background(), &kafkaconsumer.Message{Topic: "unrelated.topic"})
	require.NoError(t, err)
}

func TestRouter_FallbackReceivesUnknownTopics(t *testing.T) {
	fallback := &recordingHandler{}
	router := NewRouter(testLogger(), fallback)

	require.NoError(t, router.Handle(context.Background(), &kafkaconsumer.Message{Topic: "unrelated.topic"}))
	assert.Equal(t, []string{"unrelated.topic"}, fallback.topics)
}
