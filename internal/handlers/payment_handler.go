package handlers

import (
	"log"

	"storefront/internal/apperrors"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
)

// PaymentHandler exposes checkout and the two reconciliation entry points.
type PaymentHandler struct {
	checkout *services.CheckoutService
	orders   *services.OrderService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(checkout *services.CheckoutService, orders *services.OrderService) *PaymentHandler {
	return &PaymentHandler{
		checkout: checkout,
		orders:   orders,
	}
}

// RegisterRoutes registers the provider callback, which carries no session.
func (h *PaymentHandler) RegisterRoutes(router fiber.Router) {
	paymentRoutes := router.Group("/payments")
	paymentRoutes.Post("/chapa/callback", h.HandleCallback)
	paymentRoutes.Get("/chapa/callback", h.HandleCallback)
}

// RegisterProtectedRoutes registers the customer-facing checkout routes.
func (h *PaymentHandler) RegisterProtectedRoutes(router fiber.Router) {
	paymentRoutes := router.Group("/payments")
	paymentRoutes.Post("/create-checkout-session", h.HandleCreateCheckoutSession)
	paymentRoutes.Post("/checkout-success", h.HandleCheckoutSuccess)
}

// HandleCreateCheckoutSession prices the cart and opens a payment session.
func (h *PaymentHandler) HandleCreateCheckoutSession(c *fiber.Ctx) error {
	var req services.CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequestBody(c, err)
	}
	req.UserID = middleware.UserID(c)

	session, err := h.checkout.Initiate(c.UserContext(), req)
	if err != nil {
		return respondError(c, "creating checkout session", err)
	}
	return c.JSON(session)
}

// callbackPayload accepts both spellings of the reference the provider uses.
type callbackPayload struct {
	TxRef  string `json:"tx_ref" query:"tx_ref" form:"tx_ref"`
	TrxRef string `json:"trx_ref" query:"trx_ref" form:"trx_ref"`
	Status string `json:"status" query:"status" form:"status"`
}

func (p callbackPayload) reference() string {
	if p.TxRef != "" {
		return p.TxRef
	}
	return p.TrxRef
}

// HandleCallback reconciles on the provider's server-to-server notification.
// Unknown references are acknowledged so the provider stops retrying; store
// or provider failures answer 500 so it delivers again.
func (h *PaymentHandler) HandleCallback(c *fiber.Ctx) error {
	var payload callbackPayload
	if err := c.QueryParser(&payload); err != nil {
		log.Printf("Error parsing callback query: %v", err)
	}
	if c.Method() == fiber.MethodPost && len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			log.Printf("Error parsing callback body: %v", err)
		}
	}

	result, err := h.checkout.Reconcile(c.UserContext(), services.ReconcileRequest{
		TxRef:         payload.reference(),
		ClaimedStatus: payload.Status,
		Source:        services.SourceCallback,
	})
	if err != nil {
		switch apperrors.KindOf(err) {
		case apperrors.KindNotFound, apperrors.KindValidation:
			log.Printf("Ignoring callback for %q: %v", payload.reference(), err)
			return c.JSON(fiber.Map{"message": apperrors.PublicMessage(err)})
		}
		log.Printf("Error reconciling callback for %s: %v", payload.reference(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Callback processing failed",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Callback processed",
		"status":  result.Order.Status,
	})
}

type checkoutSuccessRequest struct {
	TxRef string `json:"tx_ref"`
}

// HandleCheckoutSuccess reconciles when the customer returns from the provider.
func (h *PaymentHandler) HandleCheckoutSuccess(c *fiber.Ctx) error {
	var req checkoutSuccessRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequestBody(c, err)
	}
	if req.TxRef == "" {
		return respondError(c, "confirming checkout", apperrors.Validation("tx_ref is required"))
	}

	// Callers may only confirm their own orders.
	if _, err := h.orders.GetUserOrderByTxRef(c.UserContext(), middleware.UserID(c), req.TxRef); err != nil {
		return respondError(c, "confirming checkout", err)
	}

	result, err := h.checkout.Reconcile(c.UserContext(), services.ReconcileRequest{
		TxRef:  req.TxRef,
		Source: services.SourceConfirmation,
	})
	if err != nil {
		return respondError(c, "confirming checkout", err)
	}

	success := result.Order.Status == models.OrderStatusCompleted
	message := "Payment successful, order completed"
	switch {
	case !result.Finalized:
		message = "Payment is still being processed"
	case !success:
		message = "Payment failed"
	}
	return c.JSON(fiber.Map{
		"success": success,
		"message": message,
		"order":   result.Order,
	})
}
