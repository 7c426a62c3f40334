package events

import (
	"context"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
)

// Event is the envelope published for every order lifecycle change.
type Event struct {
	EventID   string         `json:"event_id"`
	TxRef     string         `json:"tx_ref"`
	OrderID   string         `json:"order_id"`
	CreatedAt time.Time      `json:"created_at"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
}

const (
	EventOrderCreated        = "order.created"
	EventOrderCompleted      = "order.completed"
	EventOrderFailed         = "order.failed"
	EventPaymentConfirmation = "notification.payment_confirmation"
	EventEmailVerification   = "notification.email_verification"
	EventPasswordReset       = "notification.password_reset"
)

// NotificationTypes lists the events the notification consumer handles.
var NotificationTypes = []string{EventPaymentConfirmation, EventEmailVerification, EventPasswordReset}

// Publisher delivers events to the configured broker.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NewOrderEvent builds an event of the given type describing order.
func NewOrderEvent(eventType string, order *models.Order) Event {
	return Event{
		EventID:   uuid.New().String(),
		TxRef:     order.TxRef,
		OrderID:   order.ID,
		CreatedAt: time.Now().UTC(),
		Type:      eventType,
		Payload: map[string]any{
			"user_id":        order.UserID,
			"status":         string(order.Status),
			"payment_status": string(order.PaymentStatus),
			"total_amount":   order.TotalAmount,
			"currency":       order.Currency,
			"coupon_code":    order.CouponCode,
			"customer_email": order.CustomerEmail,
		},
	}
}

// NewAccountEvent builds an account notification for user. It carries no
// order, so TxRef and OrderID stay empty.
func NewAccountEvent(eventType string, user *models.User, code string) Event {
	return Event{
		EventID:   uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		Type:      eventType,
		Payload: map[string]any{
			"user_id":   user.ID,
			"username":  user.Username,
			"recipient": user.Email,
			"code":      code,
		},
	}
}

// NopPublisher drops every event. It backs EVENTS_BROKER=none.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event Event) error { return nil }
