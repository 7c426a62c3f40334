package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"storefront/internal/apperrors"
	"storefront/internal/events"
	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/notify"
	"storefront/internal/payment"
	"storefront/internal/repositories"
	"storefront/pkg/logging"

	"github.com/shopspring/decimal"
)

// Entry points that reconcile an order.
const (
	SourceCallback     = "callback"
	SourceConfirmation = "confirmation"
	SourceSweeper      = "sweeper"
	SourceOperator     = "operator"
)

const (
	defaultGatewayTimeout = 15 * time.Second
	notificationTimeout   = 30 * time.Second
	logService            = "checkout"
)

// CartItem is one line of the submitted cart.
type CartItem struct {
	ProductID string  `json:"_id" validate:"required"`
	Price     float64 `json:"price" validate:"gte=0"`
	Quantity  int     `json:"quantity" validate:"gte=1"`
}

// ContactInfo is the payer's contact details forwarded to the payment provider.
type ContactInfo struct {
	FirstName   string `json:"first_name" validate:"required"`
	LastName    string `json:"last_name" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	PhoneNumber string `json:"phone_number" validate:"required"`
}

// CheckoutRequest is the input of Initiate. UserID comes from the session.
type CheckoutRequest struct {
	UserID     string      `json:"-" validate:"required"`
	Items      []CartItem  `json:"products" validate:"required,min=1,dive"`
	CouponCode string      `json:"couponCode"`
	Customer   ContactInfo `json:"customerInfo"`
}

// CheckoutSession is what the client needs to continue at the provider.
type CheckoutSession struct {
	CheckoutURL string  `json:"checkout_url"`
	TxRef       string  `json:"tx_ref"`
	TotalAmount float64 `json:"totalAmount"`
}

// ReconcileRequest asks for an order to be finalized from verified payment status.
// ClaimedStatus is what the caller believes happened; it is never trusted on its own.
type ReconcileRequest struct {
	TxRef         string
	ClaimedStatus string
	Source        string
}

// ReconcileResult reports the order after reconciliation. Finalized is false
// when the provider still reports the payment as pending. Transitioned is true
// only for the call whose write moved the order out of pending.
type ReconcileResult struct {
	Finalized    bool
	Transitioned bool
	Order        *models.Order
}

// CheckoutConfig carries pricing and provider settings.
type CheckoutConfig struct {
	Currency        string
	TxRefPrefix     string
	RewardThreshold decimal.Decimal
	CallbackURL     string
	// ReturnURL is where the provider sends the browser; tx_ref and status are appended.
	ReturnURL      string
	GatewayTimeout time.Duration
}

// CheckoutDeps are the collaborators of CheckoutService. Products, Publisher,
// Notifier and Metrics may be nil.
type CheckoutDeps struct {
	Orders    repositories.OrderRepository
	Products  repositories.ProductRepository
	Coupons   *CouponService
	Gateway   payment.Gateway
	Publisher events.Publisher
	Notifier  notify.Dispatcher
	Metrics   *metrics.Metrics
}

// CheckoutService opens payment sessions and reconciles orders with the
// payment provider.
type CheckoutService struct {
	deps CheckoutDeps
	cfg  CheckoutConfig

	background sync.WaitGroup
}

// NewCheckoutService creates a new CheckoutService.
func NewCheckoutService(deps CheckoutDeps, cfg CheckoutConfig) *CheckoutService {
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = defaultGatewayTimeout
	}
	return &CheckoutService{
		deps: deps,
		cfg:  cfg,
	}
}

// Initiate prices the cart, opens a payment session and records a pending order.
func (s *CheckoutService) Initiate(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	start := time.Now()

	if err := validateRequest(req); err != nil {
		s.deps.Metrics.CheckoutInitiated("invalid")
		return nil, err
	}
	if err := s.checkCatalog(ctx, req.Items); err != nil {
		s.deps.Metrics.CheckoutInitiated("invalid")
		return nil, err
	}

	total := cartTotal(req.Items)

	var couponCode string
	coupon, err := s.deps.Coupons.FindActive(ctx, req.UserID, req.CouponCode)
	if err != nil {
		s.deps.Metrics.CheckoutInitiated("error")
		return nil, err
	}
	if coupon != nil {
		total = applyDiscount(total, coupon.DiscountPercentage)
		couponCode = coupon.Code
	}
	total = total.Round(2)

	txRef := payment.NewTxRef(s.cfg.TxRefPrefix)

	gatewayCtx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	checkoutURL, err := s.deps.Gateway.InitializePayment(gatewayCtx, payment.InitializeRequest{
		FirstName:   req.Customer.FirstName,
		LastName:    req.Customer.LastName,
		Email:       req.Customer.Email,
		PhoneNumber: req.Customer.PhoneNumber,
		Amount:      total,
		Currency:    s.cfg.Currency,
		TxRef:       txRef,
		CallbackURL: s.cfg.CallbackURL,
		ReturnURL:   s.returnURL(txRef),
	})
	cancel()
	if err != nil {
		s.deps.Metrics.CheckoutInitiated("gateway_error")
		logging.Log(logging.Fields{Service: logService, TxRef: txRef, Step: "initialize", Status: "error", Message: err.Error()})
		if apperrors.Is(err, apperrors.KindExternalService) {
			return nil, err
		}
		return nil, apperrors.ExternalService("payment initialization failed", err)
	}

	order := &models.Order{
		UserID:        req.UserID,
		Items:         orderItems(req.Items),
		TotalAmount:   total.InexactFloat64(),
		Currency:      s.cfg.Currency,
		TxRef:         txRef,
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusPending,
		CouponCode:    couponCode,
		CustomerEmail: req.Customer.Email,
	}
	if err := s.deps.Orders.Create(ctx, order); err != nil {
		s.deps.Metrics.CheckoutInitiated("error")
		return nil, apperrors.Persistence("failed to save order", err)
	}

	if !s.cfg.RewardThreshold.IsZero() && total.GreaterThanOrEqual(s.cfg.RewardThreshold) {
		if _, err := s.deps.Coupons.Issue(ctx, req.UserID); err != nil {
			log.Printf("Warning: failed to issue reward coupon for order %s: %v", txRef, err)
		}
	}

	s.publish(ctx, events.EventOrderCreated, order)
	s.deps.Metrics.CheckoutInitiated("ok")
	logging.Log(logging.Fields{
		Service:    logService,
		TxRef:      txRef,
		OrderID:    order.ID,
		Step:       "initialize",
		Status:     string(order.Status),
		DurationMS: logging.Since(start),
	})

	return &CheckoutSession{
		CheckoutURL: checkoutURL,
		TxRef:       txRef,
		TotalAmount: order.TotalAmount,
	}, nil
}

// Reconcile finalizes the order behind req.TxRef from the provider's verdict.
// It is safe to call any number of times from any entry point: only one call
// moves the order out of pending and only that call runs the side effects.
func (s *CheckoutService) Reconcile(ctx context.Context, req ReconcileRequest) (*ReconcileResult, error) {
	start := time.Now()
	txRef := strings.TrimSpace(req.TxRef)
	if txRef == "" {
		return nil, apperrors.Validation("tx_ref is required")
	}

	order, err := s.deps.Orders.GetByTxRef(ctx, txRef)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			s.deps.Metrics.Reconciled(req.Source, "not_found")
			return nil, apperrors.NotFound("order not found")
		}
		return nil, apperrors.Persistence("failed to load order", err)
	}
	if order.Status.IsTerminal() {
		s.deps.Metrics.Reconciled(req.Source, "already_final")
		return &ReconcileResult{Finalized: true, Order: order}, nil
	}

	claimedFailure := req.ClaimedStatus != "" && !strings.EqualFold(req.ClaimedStatus, "success")

	verifyCtx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	verification, verr := s.deps.Gateway.VerifyPayment(verifyCtx, txRef)
	cancel()

	var status models.OrderStatus
	var paymentStatus models.PaymentStatus
	switch {
	case verr != nil && (errors.Is(verr, payment.ErrTimeout) || errors.Is(verr, context.DeadlineExceeded)):
		log.Printf("Verification of %s timed out, failing order: %v", txRef, verr)
		status, paymentStatus = models.OrderStatusFailed, models.PaymentStatusFailed
	case verr != nil && claimedFailure:
		log.Printf("Verification of %s failed after a %q claim, failing order: %v", txRef, req.ClaimedStatus, verr)
		status, paymentStatus = models.OrderStatusFailed, models.PaymentStatusFailed
	case verr != nil:
		s.deps.Metrics.Reconciled(req.Source, "gateway_error")
		logging.Log(logging.Fields{Service: logService, TxRef: txRef, Step: "verify", Status: "error", Message: verr.Error()})
		if apperrors.Is(verr, apperrors.KindExternalService) {
			return nil, verr
		}
		return nil, apperrors.ExternalService("payment verification failed", verr)
	case verification.Outcome == payment.OutcomeSuccess:
		s.checkAmount(order, verification)
		status, paymentStatus = models.OrderStatusCompleted, models.PaymentStatusPaid
	case verification.Outcome == payment.OutcomeFailed || claimedFailure:
		status, paymentStatus = models.OrderStatusFailed, models.PaymentStatusFailed
	default:
		s.deps.Metrics.Reconciled(req.Source, "pending")
		return &ReconcileResult{Finalized: false, Order: order}, nil
	}

	changed, err := s.deps.Orders.TransitionFromPending(ctx, txRef, status, paymentStatus)
	if err != nil {
		return nil, apperrors.Persistence("failed to update order", err)
	}
	final, err := s.deps.Orders.GetByTxRef(ctx, txRef)
	if err != nil {
		return nil, apperrors.Persistence("failed to reload order", err)
	}

	if changed {
		s.afterTransition(ctx, final)
		s.deps.Metrics.Reconciled(req.Source, string(final.Status))
	} else {
		s.deps.Metrics.Reconciled(req.Source, "already_final")
	}
	logging.Log(logging.Fields{
		Service:    logService,
		TxRef:      txRef,
		OrderID:    final.ID,
		Step:       "reconcile:" + req.Source,
		Status:     string(final.Status),
		DurationMS: logging.Since(start),
	})

	return &ReconcileResult{Finalized: true, Transitioned: changed, Order: final}, nil
}

// Wait blocks until background confirmation dispatches have finished.
func (s *CheckoutService) Wait() {
	s.background.Wait()
}

// afterTransition runs the best-effort side effects of a terminal write.
func (s *CheckoutService) afterTransition(ctx context.Context, order *models.Order) {
	if order.Status != models.OrderStatusCompleted {
		s.publish(ctx, events.EventOrderFailed, order)
		return
	}

	if order.CouponCode != "" {
		if _, err := s.deps.Coupons.Deactivate(ctx, order.UserID, order.CouponCode); err != nil {
			log.Printf("Warning: failed to deactivate coupon %s for order %s: %v", order.CouponCode, order.TxRef, err)
		}
	}
	s.publish(ctx, events.EventOrderCompleted, order)

	if s.deps.Notifier == nil || order.CustomerEmail == "" {
		return
	}
	snapshot := *order
	notifyCtx := context.WithoutCancel(ctx)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		ctx, cancel := context.WithTimeout(notifyCtx, notificationTimeout)
		defer cancel()
		if err := s.deps.Notifier.SendPaymentConfirmation(ctx, snapshot.CustomerEmail, &snapshot); err != nil {
			log.Printf("Warning: failed to send payment confirmation for order %s: %v", snapshot.TxRef, err)
		}
	}()
}

func (s *CheckoutService) publish(ctx context.Context, eventType string, order *models.Order) {
	if err := s.deps.Publisher.Publish(ctx, events.NewOrderEvent(eventType, order)); err != nil {
		log.Printf("Warning: failed to publish %s event for order %s: %v", eventType, order.TxRef, err)
	}
}

// checkAmount logs a provider amount that disagrees with the order total.
func (s *CheckoutService) checkAmount(order *models.Order, v *payment.Verification) {
	if v.Amount.IsZero() {
		return
	}
	expected := decimal.NewFromFloat(order.TotalAmount).Round(2)
	if !v.Amount.Round(2).Equal(expected) {
		log.Printf("Warning: provider reported %s %s for order %s, expected %s", v.Amount.StringFixed(2), v.Currency, order.TxRef, expected.StringFixed(2))
	}
}

// checkCatalog rejects items the catalog does not know, items whose price
// differs from the catalog price, and quantities above stock.
func (s *CheckoutService) checkCatalog(ctx context.Context, items []CartItem) error {
	if s.deps.Products == nil {
		return nil
	}
	fields := make(map[string]string)
	for i, item := range items {
		key := fmt.Sprintf("products[%d]", i)
		product, err := s.deps.Products.GetByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				fields[key] = "unknown product " + item.ProductID
				continue
			}
			return apperrors.Persistence("failed to load product", err)
		}
		if !decimal.NewFromFloat(item.Price).Round(2).Equal(decimal.NewFromFloat(product.Price).Round(2)) {
			fields[key] = fmt.Sprintf("price of %s changed to %.2f", product.Name, product.Price)
			continue
		}
		if product.Stock < item.Quantity {
			fields[key] = fmt.Sprintf("insufficient stock for %s (requested: %d, available: %d)", product.Name, item.Quantity, product.Stock)
		}
	}
	if len(fields) > 0 {
		return apperrors.ValidationFields("cart does not match the catalog", fields)
	}
	return nil
}

func (s *CheckoutService) returnURL(txRef string) string {
	if s.cfg.ReturnURL == "" {
		return ""
	}
	return fmt.Sprintf("%s?tx_ref=%s&status=success", s.cfg.ReturnURL, url.QueryEscape(txRef))
}

func validateRequest(req CheckoutRequest) error {
	return validateStruct(req, "invalid checkout request")
}

func cartTotal(items []CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

func applyDiscount(total decimal.Decimal, percentage int) decimal.Decimal {
	discount := total.Mul(decimal.NewFromInt(int64(percentage))).Div(decimal.NewFromInt(100))
	return total.Sub(discount)
}

func orderItems(items []CartItem) []models.OrderItem {
	out := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		out = append(out, models.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	return out
}
