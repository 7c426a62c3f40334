package logging_test

import (
	"bytes"
	"encoding/json"
	"log"
	"testing"

	"storefront/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_WritesJSONLine(t *testing.T) {
	var buf bytes.Buffer
	out, flags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(out)
		log.SetFlags(flags)
	})

	logging.Log(logging.Fields{Service: "checkout", TxRef: "ECOM-1", Step: "reconcile", Status: "completed"})

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "checkout", line["service"])
	assert.Equal(t, "ECOM-1", line["tx_ref"])
	assert.Equal(t, "completed", line["status"])
	assert.NotEmpty(t, line["timestamp"])
	_, hasOrderID := line["order_id"]
	assert.False(t, hasOrderID)
}
