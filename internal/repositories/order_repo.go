package repositories

import (
	"context"
	"time"

	"storefront/internal/models"
)

// OrderRepository defines the interface for order data access.
// Orders are never deleted.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetByTxRef(ctx context.Context, txRef string) (*models.Order, error)
	GetAll(ctx context.Context) ([]models.Order, error)
	GetByUser(ctx context.Context, userID string) ([]models.Order, error)
	StatsForUser(ctx context.Context, userID string) (*models.OrderStats, error)
	// ListPendingBefore returns up to limit pending orders created before the
	// given time that sort after the cursor, ordered by (created_at, tx_ref).
	ListPendingBefore(ctx context.Context, before time.Time, after PendingCursor, limit int) ([]models.Order, error)
	// TransitionFromPending moves the order identified by txRef to a terminal
	// state only if it is still pending. It reports whether this call performed
	// the transition.
	TransitionFromPending(ctx context.Context, txRef string, status models.OrderStatus, paymentStatus models.PaymentStatus) (bool, error)
}

// PendingCursor is the position of a paged scan over pending orders. The zero
// value starts at the oldest order.
type PendingCursor struct {
	CreatedAt time.Time
	TxRef     string
}

// CursorAt returns the cursor positioned on order.
func CursorAt(order models.Order) PendingCursor {
	return PendingCursor{CreatedAt: order.CreatedAt, TxRef: order.TxRef}
}

// IsZero reports whether the cursor is at the start.
func (c PendingCursor) IsZero() bool {
	return c.CreatedAt.IsZero() && c.TxRef == ""
}

// Precedes reports whether order sorts after the cursor.
func (c PendingCursor) Precedes(order models.Order) bool {
	if c.IsZero() || order.CreatedAt.After(c.CreatedAt) {
		return true
	}
	return order.CreatedAt.Equal(c.CreatedAt) && order.TxRef > c.TxRef
}
