package repositories

import (
	"context"
	"fmt"
	"sync"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
)

// MockCouponRepository is an in-memory implementation of CouponRepository
// keyed by owner, so a customer can only ever hold one coupon.
type MockCouponRepository struct {
	coupons map[string]models.Coupon
	mu      sync.RWMutex
}

// NewMockCouponRepository creates a new instance of MockCouponRepository.
func NewMockCouponRepository() *MockCouponRepository {
	return &MockCouponRepository{
		coupons: make(map[string]models.Coupon),
	}
}

// FindByOwnerAndCode retrieves the owner's coupon if its code matches.
func (r *MockCouponRepository) FindByOwnerAndCode(ctx context.Context, userID, code string) (*models.Coupon, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	coupon, ok := r.coupons[userID]
	if !ok || coupon.Code != code {
		return nil, fmt.Errorf("coupon %s for user %s: %w", code, userID, ErrNotFound)
	}
	return &coupon, nil
}

// FindByOwner retrieves the coupon held by userID.
func (r *MockCouponRepository) FindByOwner(ctx context.Context, userID string) (*models.Coupon, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	coupon, ok := r.coupons[userID]
	if !ok {
		return nil, fmt.Errorf("coupon for user %s: %w", userID, ErrNotFound)
	}
	return &coupon, nil
}

// Replace stores coupon as the owner's only coupon.
func (r *MockCouponRepository) Replace(ctx context.Context, coupon *models.Coupon) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if coupon.ID == "" {
		coupon.ID = uuid.New().String()
	}
	now := time.Now()
	coupon.CreatedAt = now
	coupon.UpdatedAt = now
	r.coupons[coupon.UserID] = *coupon
	return nil
}

// Deactivate switches off an active coupon and reports whether it changed.
func (r *MockCouponRepository) Deactivate(ctx context.Context, userID, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	coupon, ok := r.coupons[userID]
	if !ok || coupon.Code != code || !coupon.IsActive {
		return false, nil
	}
	coupon.IsActive = false
	coupon.UpdatedAt = time.Now()
	r.coupons[userID] = coupon
	return true, nil
}
