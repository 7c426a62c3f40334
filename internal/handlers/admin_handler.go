package handlers

import (
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
)

// AdminHandler serves the operator views.
type AdminHandler struct {
	auth     *services.AuthService
	orders   *services.OrderService
	checkout *services.CheckoutService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(auth *services.AuthService, orders *services.OrderService, checkout *services.CheckoutService) *AdminHandler {
	return &AdminHandler{
		auth:     auth,
		orders:   orders,
		checkout: checkout,
	}
}

// RegisterRoutes registers the admin routes. The router must already enforce
// AuthRequired and AdminOnly.
func (h *AdminHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/users", h.HandleGetUsers)
	router.Get("/orders", h.HandleGetOrders)
	router.Post("/orders/:tx_ref/reconcile", h.HandleReconcile)
}

// HandleGetUsers lists customer accounts.
func (h *AdminHandler) HandleGetUsers(c *fiber.Ctx) error {
	users, err := h.auth.ListCustomers(c.UserContext())
	if err != nil {
		return respondError(c, "listing users", err)
	}
	return c.JSON(users)
}

// HandleGetOrders lists every order, newest first.
func (h *AdminHandler) HandleGetOrders(c *fiber.Ctx) error {
	orders, err := h.orders.GetAllOrders(c.UserContext())
	if err != nil {
		return respondError(c, "listing orders", err)
	}
	return c.JSON(orders)
}

// HandleReconcile asks the provider again about a pending order.
func (h *AdminHandler) HandleReconcile(c *fiber.Ctx) error {
	result, err := h.checkout.Reconcile(c.UserContext(), services.ReconcileRequest{
		TxRef:  c.Params("tx_ref"),
		Source: services.SourceOperator,
	})
	if err != nil {
		return respondError(c, "reconciling order", err)
	}
	return c.JSON(fiber.Map{
		"finalized":    result.Finalized,
		"transitioned": result.Transitioned,
		"order":        result.Order,
	})
}
