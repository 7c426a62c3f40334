package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"storefront/internal/apperrors"
	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/shopspring/decimal"
)

// CartLine is a cart entry joined with the current catalog data.
type CartLine struct {
	Product  models.Product `json:"product"`
	Quantity int            `json:"quantity"`
	Subtotal float64        `json:"subtotal"`
}

// Cart is the customer's saved cart. Prices are the catalog's current ones;
// checkout still prices the order on its own.
type Cart struct {
	Items []CartLine `json:"items"`
	Total float64    `json:"total"`
}

// CartService keeps the saved cart of each customer.
type CartService struct {
	carts    repositories.CartRepository
	products repositories.ProductRepository
}

// NewCartService creates a new CartService.
func NewCartService(carts repositories.CartRepository, products repositories.ProductRepository) *CartService {
	return &CartService{carts: carts, products: products}
}

// GetCart returns the customer's cart. Lines whose product left the catalog
// are skipped.
func (s *CartService) GetCart(ctx context.Context, userID string) (*Cart, error) {
	items, err := s.carts.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Persistence("could not retrieve cart", err)
	}

	cart := &Cart{Items: make([]CartLine, 0, len(items))}
	total := decimal.Zero
	for _, item := range items {
		product, err := s.products.GetByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				log.Printf("Cart of user %s references missing product %s", userID, item.ProductID)
				continue
			}
			return nil, apperrors.Persistence("could not retrieve cart", err)
		}
		subtotal := decimal.NewFromFloat(product.Price).Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
		total = total.Add(subtotal)
		cart.Items = append(cart.Items, CartLine{Product: *product, Quantity: item.Quantity, Subtotal: subtotal.InexactFloat64()})
	}
	cart.Total = total.Round(2).InexactFloat64()
	return cart, nil
}

// AddItem puts quantity more units of productID in the cart. The line may
// never hold more than the product's stock.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int) (*models.CartItem, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, apperrors.ValidationFields("productId is required", map[string]string{"productId": "required"})
	}
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 0 {
		return nil, apperrors.ValidationFields("quantity must be positive", map[string]string{"quantity": "gt"})
	}

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, productError(err, "could not retrieve product")
	}

	item, err := s.carts.AddQuantity(ctx, userID, productID, quantity)
	if err != nil {
		return nil, apperrors.Persistence("could not update cart", err)
	}
	if item.Quantity > product.Stock {
		var undoErr error
		if item.Quantity == quantity {
			undoErr = s.carts.Remove(ctx, userID, productID)
		} else {
			_, undoErr = s.carts.AddQuantity(ctx, userID, productID, -quantity)
		}
		if undoErr != nil {
			log.Printf("Failed to undo cart add of %s for user %s: %v", productID, userID, undoErr)
		}
		return nil, apperrors.Validation(fmt.Sprintf("only %d of %s in stock", product.Stock, product.Name))
	}
	return item, nil
}

// UpdateQuantity sets the quantity of an existing line. Zero removes it.
func (s *CartService) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) error {
	if quantity < 0 {
		return apperrors.ValidationFields("quantity cannot be negative", map[string]string{"quantity": "gte"})
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, userID, productID)
	}

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return productError(err, "could not retrieve product")
	}
	if quantity > product.Stock {
		return apperrors.Validation(fmt.Sprintf("only %d of %s in stock", product.Stock, product.Name))
	}
	if err := s.carts.SetQuantity(ctx, userID, productID, quantity); err != nil {
		return cartError(err, "could not update cart")
	}
	return nil
}

// RemoveItem drops one line from the cart.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) error {
	if err := s.carts.Remove(ctx, userID, productID); err != nil {
		return cartError(err, "could not update cart")
	}
	return nil
}

// ClearCart empties the cart.
func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	if err := s.carts.Clear(ctx, userID); err != nil {
		return apperrors.Persistence("could not clear cart", err)
	}
	return nil
}

func cartError(err error, msg string) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return apperrors.NotFound("item not in cart")
	}
	return apperrors.Persistence(msg, err)
}
