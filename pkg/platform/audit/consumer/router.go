package consumer

import (
	"context"
	"log/slog"

	"parapet/internal/platform/kafka/consumer"
)

// TopicHandler materializes messages from one audit topic.
type TopicHandler interface {
	Handle(ctx context.Context, msg *consumer.Message) error
}

// Router fans one consumer group subscription out to per-topic handlers, so
// the three audit topics share a single Kafka client.
//
// Messages on topics nobody registered go to the fallback when one is set;
// otherwise they are logged and committed, never redelivered.
type Router struct {
	byTopic  map[string]TopicHandler
	fallback TopicHandler
	logger   *slog.Logger
}

// NewRouter creates an empty router. fallback may be nil.
func NewRouter(logger *slog.Logger, fallback TopicHandler) *Router {
	return &Router{
		byTopic:  make(map[string]TopicHandler),
		fallback: fallback,
		logger:   logger,
	}
}

// Register binds a topic to its handler. Not safe to call once the consumer
// is running; wire the full table before Run.
func (r *Router) Register(topic string, handler TopicHandler) {
	r.byTopic[topic] = handler
}

// Handle dispatches by the message's topic.
func (r *Router) Handle(ctx context.Context, msg *consumer.Message) error {
	if handler, ok := r.byTopic[msg.Topic]; ok {
		return handler.Handle(ctx, msg)
	}
	if r.fallback != nil {
		return r.fallback.Handle(ctx, msg)
	}
	r.logger.WarnContext(ctx, "no handler for topic, committing message",
		"topic", msg.Topic,
		"key", string(msg.Key),
	)
	return nil
}
