package repositories

import (
	"context"

	"storefront/internal/models"
)

// CartRepository defines the interface for cart data access.
type CartRepository interface {
	// ListByUser returns the customer's cart lines, oldest first.
	ListByUser(ctx context.Context, userID string) ([]models.CartItem, error)
	// AddQuantity adds delta to the line for productID, creating it if needed,
	// and returns the stored line.
	AddQuantity(ctx context.Context, userID, productID string, delta int) (*models.CartItem, error)
	// SetQuantity overwrites the quantity of an existing line.
	SetQuantity(ctx context.Context, userID, productID string, quantity int) error
	Remove(ctx context.Context, userID, productID string) error
	Clear(ctx context.Context, userID string) error
}
