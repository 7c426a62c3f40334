package repositories

import (
	"context"

	"storefront/internal/models"
)

// CouponRepository defines the interface for coupon data access.
type CouponRepository interface {
	// FindByOwnerAndCode returns the owner's coupon with the given code, active or not.
	FindByOwnerAndCode(ctx context.Context, userID, code string) (*models.Coupon, error)
	// FindByOwner returns the single coupon slot of a customer.
	FindByOwner(ctx context.Context, userID string) (*models.Coupon, error)
	// Replace deletes any coupon the owner holds and stores the given one.
	Replace(ctx context.Context, coupon *models.Coupon) error
	// Deactivate flips is_active off for the owner's coupon with the given code.
	// It reports whether an active coupon was changed.
	Deactivate(ctx context.Context, userID, code string) (bool, error)
}
