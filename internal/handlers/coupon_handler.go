package handlers

import (
	"storefront/internal/apperrors"
	"storefront/internal/middleware"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
)

// CouponHandler serves the customer's reward coupon.
type CouponHandler struct {
	service *services.CouponService
}

// NewCouponHandler creates a new CouponHandler.
func NewCouponHandler(service *services.CouponService) *CouponHandler {
	return &CouponHandler{
		service: service,
	}
}

// RegisterRoutes registers the coupon routes. They require an authenticated caller.
func (h *CouponHandler) RegisterRoutes(router fiber.Router) {
	couponRoutes := router.Group("/coupons")
	couponRoutes.Get("/", h.HandleGetCoupon)
	couponRoutes.Post("/validate", h.HandleValidateCoupon)
}

// HandleGetCoupon returns the caller's active coupon, or null when there is none.
func (h *CouponHandler) HandleGetCoupon(c *fiber.Ctx) error {
	coupon, err := h.service.ActiveFor(c.UserContext(), middleware.UserID(c))
	if err != nil {
		if apperrors.Is(err, apperrors.KindNotFound) {
			return c.JSON(nil)
		}
		return respondError(c, "getting coupon", err)
	}
	return c.JSON(coupon)
}

type validateCouponRequest struct {
	Code string `json:"code"`
}

// HandleValidateCoupon checks a code against the caller's active coupon.
func (h *CouponHandler) HandleValidateCoupon(c *fiber.Ctx) error {
	var req validateCouponRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequestBody(c, err)
	}
	coupon, err := h.service.Validate(c.UserContext(), middleware.UserID(c), req.Code)
	if err != nil {
		return respondError(c, "validating coupon", err)
	}
	return c.JSON(fiber.Map{
		"message":            "Coupon is valid",
		"code":               coupon.Code,
		"discountPercentage": coupon.DiscountPercentage,
	})
}
