package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{
		db: db,
	}
}

// Create inserts the order and its line items in one transaction.
func (r *GORMOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// GetByID retrieves a single order by its ID.
func (r *GORMOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	return r.first(ctx, "id", id)
}

// GetByTxRef retrieves a single order by its transaction reference.
func (r *GORMOrderRepository) GetByTxRef(ctx context.Context, txRef string) (*models.Order, error) {
	return r.first(ctx, "tx_ref", txRef)
}

func (r *GORMOrderRepository) first(ctx context.Context, column, value string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Preload("Items").First(&order, column+" = ?", value).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order with %s %s: %w", column, value, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get order by %s %s: %w", column, value, err)
	}
	return &order, nil
}

// GetAll retrieves all orders, newest first.
func (r *GORMOrderRepository) GetAll(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.WithContext(ctx).Preload("Items").Order("created_at desc").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to get all orders: %w", err)
	}
	return orders, nil
}

// GetByUser retrieves the orders of one customer, newest first.
func (r *GORMOrderRepository) GetByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get orders for user %s: %w", userID, err)
	}
	return orders, nil
}

// StatsForUser counts a customer's orders and sums what completed orders cost.
func (r *GORMOrderRepository) StatsForUser(ctx context.Context, userID string) (*models.OrderStats, error) {
	var stats models.OrderStats
	err := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("user_id = ?", userID).
		Count(&stats.TotalOrders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count orders for user %s: %w", userID, err)
	}

	var completed struct {
		Count int64
		Total float64
	}
	err = r.db.WithContext(ctx).Model(&models.Order{}).
		Select("COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS total").
		Where("user_id = ? AND status = ?", userID, models.OrderStatusCompleted).
		Scan(&completed).Error
	if err != nil {
		return nil, fmt.Errorf("failed to sum completed orders for user %s: %w", userID, err)
	}
	stats.CompletedOrders = completed.Count
	stats.TotalSpent = completed.Total
	return &stats, nil
}

// ListPendingBefore pages through pending orders created before the given
// time with a keyset on (created_at, tx_ref).
func (r *GORMOrderRepository) ListPendingBefore(ctx context.Context, before time.Time, after PendingCursor, limit int) ([]models.Order, error) {
	var orders []models.Order
	query := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.OrderStatusPending, before)
	if !after.IsZero() {
		query = query.Where("(created_at > ? OR (created_at = ? AND tx_ref > ?))", after.CreatedAt, after.CreatedAt, after.TxRef)
	}
	err := query.
		Order("created_at asc, tx_ref asc").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending orders: %w", err)
	}
	return orders, nil
}

// TransitionFromPending is a conditional update: the WHERE clause on status
// makes concurrent callers race on the row, and only one sees RowsAffected == 1.
func (r *GORMOrderRepository) TransitionFromPending(ctx context.Context, txRef string, status models.OrderStatus, paymentStatus models.PaymentStatus) (bool, error) {
	if !status.IsTerminal() {
		return false, fmt.Errorf("refusing to transition order %s to non-terminal status %q", txRef, status)
	}
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("tx_ref = ? AND status = ?", txRef, models.OrderStatusPending).
		Updates(map[string]interface{}{
			"status":         status,
			"payment_status": paymentStatus,
			"updated_at":     time.Now(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to transition order %s: %w", txRef, res.Error)
	}
	return res.RowsAffected == 1, nil
}
