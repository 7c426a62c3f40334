package repositories

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMCouponRepository is a GORM implementation of CouponRepository.
type GORMCouponRepository struct {
	db *gorm.DB
}

// NewGORMCouponRepository creates a new instance of GORMCouponRepository.
func NewGORMCouponRepository(db *gorm.DB) *GORMCouponRepository {
	return &GORMCouponRepository{
		db: db,
	}
}

// FindByOwnerAndCode retrieves a coupon by code, scoped to its owner.
func (r *GORMCouponRepository) FindByOwnerAndCode(ctx context.Context, userID, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.WithContext(ctx).First(&coupon, "user_id = ? AND code = ?", userID, code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("coupon %s for user %s: %w", code, userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get coupon %s for user %s: %w", code, userID, err)
	}
	return &coupon, nil
}

// FindByOwner retrieves the coupon held by userID.
func (r *GORMCouponRepository) FindByOwner(ctx context.Context, userID string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.WithContext(ctx).First(&coupon, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("coupon for user %s: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get coupon for user %s: %w", userID, err)
	}
	return &coupon, nil
}

// Replace runs delete-then-create in one transaction. The unique index on
// user_id makes a concurrent Replace for the same owner fail instead of
// leaving two rows.
func (r *GORMCouponRepository) Replace(ctx context.Context, coupon *models.Coupon) error {
	if coupon.ID == "" {
		coupon.ID = uuid.New().String()
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", coupon.UserID).Delete(&models.Coupon{}).Error; err != nil {
			return fmt.Errorf("failed to delete previous coupon: %w", err)
		}
		if err := tx.Create(coupon).Error; err != nil {
			return fmt.Errorf("failed to create coupon: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace coupon for user %s: %w", coupon.UserID, err)
	}
	return nil
}

// Deactivate switches off an active coupon and reports whether a row changed.
func (r *GORMCouponRepository) Deactivate(ctx context.Context, userID, code string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Coupon{}).
		Where("user_id = ? AND code = ? AND is_active = ?", userID, code, true).
		Update("is_active", false)
	if res.Error != nil {
		return false, fmt.Errorf("failed to deactivate coupon %s for user %s: %w", code, userID, res.Error)
	}
	return res.RowsAffected == 1, nil
}
