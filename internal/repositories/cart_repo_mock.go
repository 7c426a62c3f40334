package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
)

type cartKey struct {
	userID    string
	productID string
}

// MockCartRepository is an in-memory implementation of CartRepository.
type MockCartRepository struct {
	mu    sync.RWMutex
	lines map[cartKey]models.CartItem
}

// NewMockCartRepository creates a new instance of MockCartRepository.
func NewMockCartRepository() *MockCartRepository {
	return &MockCartRepository{
		lines: make(map[cartKey]models.CartItem),
	}
}

// ListByUser retrieves the cart lines of userID, oldest first.
func (r *MockCartRepository) ListByUser(ctx context.Context, userID string) ([]models.CartItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]models.CartItem, 0)
	for key, item := range r.lines {
		if key.userID == userID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ProductID < items[j].ProductID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

// AddQuantity adds delta to the line, creating it when missing.
func (r *MockCartRepository) AddQuantity(ctx context.Context, userID, productID string, delta int) (*models.CartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := cartKey{userID, productID}
	now := time.Now()
	item, ok := r.lines[key]
	if !ok {
		item = models.CartItem{ID: uuid.New().String(), UserID: userID, ProductID: productID, CreatedAt: now}
	}
	item.Quantity += delta
	item.UpdatedAt = now
	r.lines[key] = item
	return &item, nil
}

// SetQuantity overwrites the quantity of an existing line.
func (r *MockCartRepository) SetQuantity(ctx context.Context, userID, productID string, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := cartKey{userID, productID}
	item, ok := r.lines[key]
	if !ok {
		return fmt.Errorf("cart line %s for user %s: %w", productID, userID, ErrNotFound)
	}
	item.Quantity = quantity
	item.UpdatedAt = time.Now()
	r.lines[key] = item
	return nil
}

// Remove deletes one line.
func (r *MockCartRepository) Remove(ctx context.Context, userID, productID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := cartKey{userID, productID}
	if _, ok := r.lines[key]; !ok {
		return fmt.Errorf("cart line %s for user %s: %w", productID, userID, ErrNotFound)
	}
	delete(r.lines, key)
	return nil
}

// Clear empties the cart of userID.
func (r *MockCartRepository) Clear(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key := range r.lines {
		if key.userID == userID {
			delete(r.lines, key)
		}
	}
	return nil
}
