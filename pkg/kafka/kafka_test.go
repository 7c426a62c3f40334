package kafka_test

import (
	"context"
	"encoding/json"
	"testing"

	"storefront/pkg/kafka"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs []kafkago.Message
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestNewClient(t *testing.T) {
	c := kafka.NewClient(" broker-1:9092, ,broker-2:9092 ")
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, c.Brokers)
	assert.True(t, c.Enabled())

	disabled := kafka.NewClient("")
	assert.False(t, disabled.Enabled())
	_, err := disabled.NewWriter("orders")
	assert.ErrorIs(t, err, kafka.ErrDisabled)
}

func TestPublishJSON(t *testing.T) {
	w := &recordingWriter{}
	err := kafka.PublishJSON(context.Background(), w, "ECOM-1", map[string]string{"type": "order.created"}, map[string]any{"tx_ref": "ECOM-1"})
	require.NoError(t, err)

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "ECOM-1", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "type", msg.Headers[0].Key)

	var body map[string]string
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "ECOM-1", body["tx_ref"])
}
