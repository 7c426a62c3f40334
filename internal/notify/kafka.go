package notify

import (
	"context"
	"errors"
	"log"

	kafkago "github.com/segmentio/kafka-go"
)

// MessageReader is the subset of *kafka.Reader the consumer loop needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
}

// ConsumeKafka feeds every message of reader to c until ctx is cancelled.
// Messages are committed even when handling fails, so one bad event does not
// stall the partition.
func ConsumeKafka(ctx context.Context, reader MessageReader, c *Consumer) {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			log.Printf("Kafka fetch failed: %v", err)
			continue
		}
		if err := c.Handle(ctx, msg.Value); err != nil {
			log.Printf("Error processing notification at offset %d: %v", msg.Offset, err)
		}
		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Printf("Kafka commit failed at offset %d: %v", msg.Offset, err)
		}
	}
}
