package logging

import (
	"encoding/json"
	"log"
	"time"
)

// Fields is one structured audit line for the checkout workflow.
type Fields struct {
	Service    string `json:"service"`
	TxRef      string `json:"tx_ref,omitempty"`
	OrderID    string `json:"order_id,omitempty"`
	Step       string `json:"step,omitempty"`
	Status     string `json:"status,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	Message    string `json:"message,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// Log writes the fields as a single JSON line through the standard logger.
func Log(fields Fields) {
	fields.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.Marshal(fields)
	if err != nil {
		log.Printf("{\"service\":%q,\"status\":\"log_error\",\"error\":%q}", fields.Service, err.Error())
		return
	}
	log.Print(string(data))
}

// Since returns the milliseconds elapsed from start, for DurationMS.
func Since(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
