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

// MockOrderRepository is an in-memory implementation of OrderRepository.
// Orders are indexed by transaction reference.
type MockOrderRepository struct {
	orders map[string]models.Order
	mu     sync.RWMutex
}

// NewMockOrderRepository creates a new instance of MockOrderRepository.
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders: make(map[string]models.Order),
	}
}

// Create adds a new order. A reused transaction reference is rejected.
func (r *MockOrderRepository) Create(ctx context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.TxRef]; exists {
		return fmt.Errorf("order with tx_ref %s already exists", order.TxRef)
	}
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	now := time.Now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	r.orders[order.TxRef] = cloneOrder(*order)
	return nil
}

// GetByID returns an order by its ID.
func (r *MockOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, order := range r.orders {
		if order.ID == id {
			found := cloneOrder(order)
			return &found, nil
		}
	}
	return nil, fmt.Errorf("order with id %s: %w", id, ErrNotFound)
}

// GetByTxRef returns an order by its transaction reference.
func (r *MockOrderRepository) GetByTxRef(ctx context.Context, txRef string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[txRef]
	if !ok {
		return nil, fmt.Errorf("order with tx_ref %s: %w", txRef, ErrNotFound)
	}
	found := cloneOrder(order)
	return &found, nil
}

// GetAll returns all orders, newest first.
func (r *MockOrderRepository) GetAll(ctx context.Context) ([]models.Order, error) {
	return r.filter(func(models.Order) bool { return true }, newestFirst), nil
}

// GetByUser returns the orders of one customer, newest first.
func (r *MockOrderRepository) GetByUser(ctx context.Context, userID string) ([]models.Order, error) {
	return r.filter(func(o models.Order) bool { return o.UserID == userID }, newestFirst), nil
}

// StatsForUser summarises a customer's orders.
func (r *MockOrderRepository) StatsForUser(ctx context.Context, userID string) (*models.OrderStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stats models.OrderStats
	for _, order := range r.orders {
		if order.UserID != userID {
			continue
		}
		stats.TotalOrders++
		if order.Status == models.OrderStatusCompleted {
			stats.CompletedOrders++
			stats.TotalSpent += order.TotalAmount
		}
	}
	return &stats, nil
}

// ListPendingBefore returns up to limit pending orders created before the
// given time that sort after the cursor.
func (r *MockOrderRepository) ListPendingBefore(ctx context.Context, before time.Time, after PendingCursor, limit int) ([]models.Order, error) {
	pending := r.filter(func(o models.Order) bool {
		return o.Status == models.OrderStatusPending && o.CreatedAt.Before(before) && after.Precedes(o)
	}, oldestFirst)
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

// TransitionFromPending updates the order under the write lock only if it is
// still pending.
func (r *MockOrderRepository) TransitionFromPending(ctx context.Context, txRef string, status models.OrderStatus, paymentStatus models.PaymentStatus) (bool, error) {
	if !status.IsTerminal() {
		return false, fmt.Errorf("refusing to transition order %s to non-terminal status %q", txRef, status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[txRef]
	if !ok || order.Status != models.OrderStatusPending {
		return false, nil
	}
	order.Status = status
	order.PaymentStatus = paymentStatus
	order.UpdatedAt = time.Now()
	r.orders[txRef] = order
	return true, nil
}

func (r *MockOrderRepository) filter(keep func(models.Order) bool, less func(a, b models.Order) bool) []models.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orderList := make([]models.Order, 0, len(r.orders))
	for _, order := range r.orders {
		if keep(order) {
			orderList = append(orderList, cloneOrder(order))
		}
	}
	sort.Slice(orderList, func(i, j int) bool { return less(orderList[i], orderList[j]) })
	return orderList
}

func newestFirst(a, b models.Order) bool { return a.CreatedAt.After(b.CreatedAt) }

func oldestFirst(a, b models.Order) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.TxRef < b.TxRef
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// cloneOrder copies the item slice so callers cannot mutate stored state.
func cloneOrder(order models.Order) models.Order {
	order.Items = append([]models.OrderItem(nil), order.Items...)
	return order
}
