package events

import (
	"context"
	"encoding/json"
	"fmt"
)

// amqpPublisher is satisfied by *rabbitmq.Client.
type amqpPublisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// RabbitPublisher routes each event to the topic exchange by its type.
type RabbitPublisher struct {
	client amqpPublisher
}

// NewRabbitPublisher creates a publisher on the RabbitMQ exchange.
func NewRabbitPublisher(client amqpPublisher) *RabbitPublisher {
	return &RabbitPublisher{client: client}
}

func (p *RabbitPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.Type, err)
	}
	return p.client.Publish(ctx, event.Type, body)
}
