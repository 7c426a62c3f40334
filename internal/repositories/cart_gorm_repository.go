package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMCartRepository is a GORM implementation of CartRepository.
type GORMCartRepository struct {
	db *gorm.DB
}

// NewGORMCartRepository creates a new instance of GORMCartRepository.
func NewGORMCartRepository(db *gorm.DB) *GORMCartRepository {
	return &GORMCartRepository{
		db: db,
	}
}

// ListByUser retrieves the cart lines of userID.
func (r *GORMCartRepository) ListByUser(ctx context.Context, userID string) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at asc").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get cart for user %s: %w", userID, err)
	}
	return items, nil
}

// AddQuantity upserts on (user_id, product_id) so concurrent adds of the same
// product accumulate instead of racing.
func (r *GORMCartRepository) AddQuantity(ctx context.Context, userID, productID string, delta int) (*models.CartItem, error) {
	item := models.CartItem{
		ID:        uuid.New().String(),
		UserID:    userID,
		ProductID: productID,
		Quantity:  delta,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":   gorm.Expr("cart_items.quantity + ?", delta),
			"updated_at": time.Now(),
		}),
	}).Create(&item).Error
	if err != nil {
		return nil, fmt.Errorf("failed to add product %s to cart of user %s: %w", productID, userID, err)
	}

	var stored models.CartItem
	err = r.db.WithContext(ctx).First(&stored, "user_id = ? AND product_id = ?", userID, productID).Error
	if err != nil {
		return nil, fmt.Errorf("failed to reload cart line %s for user %s: %w", productID, userID, err)
	}
	return &stored, nil
}

// SetQuantity overwrites the quantity of an existing cart line.
func (r *GORMCartRepository) SetQuantity(ctx context.Context, userID, productID string, quantity int) error {
	res := r.db.WithContext(ctx).Model(&models.CartItem{}).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Updates(map[string]interface{}{"quantity": quantity, "updated_at": time.Now()})
	return cartResult(res, userID, productID)
}

// Remove deletes one cart line.
func (r *GORMCartRepository) Remove(ctx context.Context, userID, productID string) error {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.CartItem{})
	return cartResult(res, userID, productID)
}

// Clear empties the cart of userID.
func (r *GORMCartRepository) Clear(ctx context.Context, userID string) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CartItem{}).Error; err != nil {
		return fmt.Errorf("failed to clear cart of user %s: %w", userID, err)
	}
	return nil
}

func cartResult(res *gorm.DB, userID, productID string) error {
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return fmt.Errorf("cart line %s for user %s: %w", productID, userID, ErrNotFound)
		}
		return fmt.Errorf("failed to change cart line %s for user %s: %w", productID, userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("cart line %s for user %s: %w", productID, userID, ErrNotFound)
	}
	return nil
}
