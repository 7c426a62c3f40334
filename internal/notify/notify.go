package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"storefront/internal/events"
	"storefront/internal/models"
)

// Dispatcher sends the payment confirmation for a completed order.
type Dispatcher interface {
	SendPaymentConfirmation(ctx context.Context, email string, order *models.Order) error
}

// AccountMailer sends the one-time codes of account verification and
// password reset.
type AccountMailer interface {
	SendVerificationCode(ctx context.Context, user *models.User, code string) error
	SendPasswordReset(ctx context.Context, user *models.User, code string) error
}

// Mailer delivers every notification the service sends.
type Mailer interface {
	Dispatcher
	AccountMailer
}

// QueueDispatcher hands notifications to the broker; a Consumer delivers them.
type QueueDispatcher struct {
	publisher events.Publisher
}

// NewQueueDispatcher creates a Mailer that queues notifications on publisher.
func NewQueueDispatcher(publisher events.Publisher) *QueueDispatcher {
	return &QueueDispatcher{publisher: publisher}
}

func (d *QueueDispatcher) SendPaymentConfirmation(ctx context.Context, email string, order *models.Order) error {
	if email == "" {
		return errors.New("no recipient for payment confirmation")
	}
	event := events.NewOrderEvent(events.EventPaymentConfirmation, order)
	event.Payload["recipient"] = email
	if err := d.publisher.Publish(ctx, event); err != nil {
		return fmt.Errorf("failed to queue payment confirmation for %s: %w", order.TxRef, err)
	}
	return nil
}

// SendVerificationCode queues the email verification code for user.
func (d *QueueDispatcher) SendVerificationCode(ctx context.Context, user *models.User, code string) error {
	return d.queueAccount(ctx, events.EventEmailVerification, user, code)
}

// SendPasswordReset queues the password reset code for user.
func (d *QueueDispatcher) SendPasswordReset(ctx context.Context, user *models.User, code string) error {
	return d.queueAccount(ctx, events.EventPasswordReset, user, code)
}

func (d *QueueDispatcher) queueAccount(ctx context.Context, eventType string, user *models.User, code string) error {
	if user.Email == "" {
		return fmt.Errorf("no recipient for %s", eventType)
	}
	if err := d.publisher.Publish(ctx, events.NewAccountEvent(eventType, user, code)); err != nil {
		return fmt.Errorf("failed to queue %s for user %s: %w", eventType, user.ID, err)
	}
	return nil
}

// LogMailer writes notifications to the log instead of a mail server.
type LogMailer struct{}

func (LogMailer) SendPaymentConfirmation(ctx context.Context, email string, order *models.Order) error {
	log.Printf("Payment confirmation to %s: order %s (%s) total %.2f %s is %s",
		email, order.ID, order.TxRef, order.TotalAmount, order.Currency, order.Status)
	return nil
}

func (LogMailer) SendVerificationCode(ctx context.Context, user *models.User, code string) error {
	log.Printf("Email verification code for %s <%s>: %s", user.Username, user.Email, code)
	return nil
}

func (LogMailer) SendPasswordReset(ctx context.Context, user *models.User, code string) error {
	log.Printf("Password reset code for %s <%s>: %s", user.Username, user.Email, code)
	return nil
}

// Consumer turns queued notification events back into mailer calls.
type Consumer struct {
	mailer Mailer
}

// NewConsumer creates a Consumer delivering to mailer.
func NewConsumer(mailer Mailer) *Consumer {
	return &Consumer{mailer: mailer}
}

// Handle processes one raw event body. Events of other types are ignored.
func (c *Consumer) Handle(ctx context.Context, body []byte) error {
	var event events.Event
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("failed to decode notification event: %w", err)
	}
	switch event.Type {
	case events.EventPaymentConfirmation:
		return c.paymentConfirmation(ctx, event)
	case events.EventEmailVerification, events.EventPasswordReset:
		return c.accountCode(ctx, event)
	default:
		return nil
	}
}

func (c *Consumer) accountCode(ctx context.Context, event events.Event) error {
	recipient, _ := event.Payload["recipient"].(string)
	code, _ := event.Payload["code"].(string)
	if recipient == "" || code == "" {
		return fmt.Errorf("%s event %s is missing recipient or code", event.Type, event.EventID)
	}
	user := &models.User{Email: recipient}
	user.ID, _ = event.Payload["user_id"].(string)
	user.Username, _ = event.Payload["username"].(string)

	if event.Type == events.EventPasswordReset {
		return c.mailer.SendPasswordReset(ctx, user, code)
	}
	return c.mailer.SendVerificationCode(ctx, user, code)
}

func (c *Consumer) paymentConfirmation(ctx context.Context, event events.Event) error {
	recipient, _ := event.Payload["recipient"].(string)
	if recipient == "" {
		return fmt.Errorf("payment confirmation for %s has no recipient", event.TxRef)
	}
	order := &models.Order{
		ID:            event.OrderID,
		TxRef:         event.TxRef,
		CustomerEmail: recipient,
	}
	if v, ok := event.Payload["status"].(string); ok {
		order.Status = models.OrderStatus(v)
	}
	if v, ok := event.Payload["payment_status"].(string); ok {
		order.PaymentStatus = models.PaymentStatus(v)
	}
	if v, ok := event.Payload["currency"].(string); ok {
		order.Currency = v
	}
	if v, ok := event.Payload["total_amount"].(float64); ok {
		order.TotalAmount = v
	}
	if v, ok := event.Payload["user_id"].(string); ok {
		order.UserID = v
	}
	return c.mailer.SendPaymentConfirmation(ctx, recipient, order)
}
