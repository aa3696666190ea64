package consumer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"parapet/internal/platform/kafka/consumer"
)

// decodeRecord extracts the event ID from the record key and unmarshals the
// value into the handler's payload type. Decode failures are permanent:
// callers log and commit rather than asking for redelivery of a record that
// can never parse.
func decodeRecord[T any](msg *consumer.Message) (uuid.UUID, T, error) {
	var payload T

	eventID, err := uuid.Parse(string(msg.Key))
	if err != nil {
		return uuid.Nil, payload, fmt.Errorf("parse event id %q: %w", string(msg.Key), err)
	}
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		return uuid.Nil, payload, fmt.Errorf("unmarshal payload of %s: %w", eventID, err)
	}
	return eventID, payload, nil
}

// parseTimestamp reads the envelope's RFC3339Nano timestamp, falling back to
// the consume time when it is absent or mangled.
func parseTimestamp(raw string) time.Time {
	if raw != "" {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			return ts
		}
	}
	return time.Now()
}
