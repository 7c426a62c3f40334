package payment

import (
	"strings"

	"github.com/google/uuid"
)

// NewTxRef builds a fresh transaction reference of the form PREFIX-<32 hex chars>.
func NewTxRef(prefix string) string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	if prefix == "" {
		return id
	}
	return prefix + "-" + id
}
