package handlers

import (
	"storefront/internal/middleware"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
)

// CartHandler serves the customer's saved cart.
type CartHandler struct {
	service *services.CartService
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(service *services.CartService) *CartHandler {
	return &CartHandler{
		service: service,
	}
}

// RegisterRoutes registers the cart routes. They require an authenticated caller.
func (h *CartHandler) RegisterRoutes(router fiber.Router) {
	cartRoutes := router.Group("/cart")
	cartRoutes.Get("/", h.HandleGetCart)
	cartRoutes.Post("/", h.HandleAddItem)
	cartRoutes.Delete("/", h.HandleRemove)
	cartRoutes.Put("/:id", h.HandleUpdateQuantity)
}

type cartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// HandleGetCart returns the caller's cart with current prices.
func (h *CartHandler) HandleGetCart(c *fiber.Ctx) error {
	cart, err := h.service.GetCart(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respondError(c, "getting cart", err)
	}
	return c.JSON(cart)
}

// HandleAddItem adds a product to the cart; quantity defaults to one.
func (h *CartHandler) HandleAddItem(c *fiber.Ctx) error {
	var req cartItemRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequestBody(c, err)
	}
	item, err := h.service.AddItem(c.UserContext(), middleware.UserID(c), req.ProductID, req.Quantity)
	if err != nil {
		return respondError(c, "adding to cart", err)
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

// HandleRemove removes the line named by productId, or empties the cart
// when the body names none.
func (h *CartHandler) HandleRemove(c *fiber.Ctx) error {
	var req cartItemRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequestBody(c, err)
		}
	}

	userID := middleware.UserID(c)
	if req.ProductID == "" {
		if err := h.service.ClearCart(c.UserContext(), userID); err != nil {
			return respondError(c, "clearing cart", err)
		}
		return c.JSON(fiber.Map{"message": "Cart cleared"})
	}
	if err := h.service.RemoveItem(c.UserContext(), userID, req.ProductID); err != nil {
		return respondError(c, "removing from cart", err)
	}
	return c.JSON(fiber.Map{"message": "Item removed from cart"})
}

// HandleUpdateQuantity sets the quantity of the line for product :id.
func (h *CartHandler) HandleUpdateQuantity(c *fiber.Ctx) error {
	var req cartItemRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequestBody(c, err)
	}
	if err := h.service.UpdateQuantity(c.UserContext(), middleware.UserID(c), c.Params("id"), req.Quantity); err != nil {
		return respondError(c, "updating cart", err)
	}
	return c.JSON(fiber.Map{"message": "Cart updated"})
}
