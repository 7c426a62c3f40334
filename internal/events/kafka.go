package events

import (
	"context"

	"storefront/pkg/kafka"
)

// KafkaPublisher writes events keyed by transaction reference so that all
// events of one order stay ordered on a partition. Account events have no
// reference and are keyed by user instead.
type KafkaPublisher struct {
	writer kafka.MessageWriter
}

// NewKafkaPublisher creates a publisher writing to writer.
func NewKafkaPublisher(writer kafka.MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	key := event.TxRef
	if key == "" {
		key, _ = event.Payload["user_id"].(string)
	}
	return kafka.PublishJSON(ctx, p.writer, key, map[string]string{"type": event.Type}, event)
}
