// Package kafka carries visit events between instances through a Kafka topic.
// The publisher replaces the in-process queue on the redirect path and the
// consumer feeds events into a local analytics recorder.
package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

func encodeEvent(event entity.VisitEvent) (kafka.Message, error) {
	const op = "adapter.queue.kafka.encodeEvent"

	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("%s: failed to marshal event: %w", op, err)
	}

	return kafka.Message{
		Key:   []byte(event.Code),
		Value: value,
	}, nil
}

func decodeEvent(msg kafka.Message) (entity.VisitEvent, error) {
	const op = "adapter.queue.kafka.decodeEvent"

	var event entity.VisitEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return entity.VisitEvent{}, fmt.Errorf("%s: failed to unmarshal event: %w", op, err)
	}

	return event, nil
}
