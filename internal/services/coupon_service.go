package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"storefront/internal/apperrors"
	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/google/uuid"
)

const couponCodePrefix = "GIFT"

// CouponConfig holds the reward coupon rules.
type CouponConfig struct {
	DiscountPercentage int
	Validity           time.Duration
}

// CouponService manages the single reward coupon slot of each customer.
type CouponService struct {
	repo repositories.CouponRepository
	cfg  CouponConfig
	now  func() time.Time
}

// NewCouponService creates a new CouponService.
func NewCouponService(repo repositories.CouponRepository, cfg CouponConfig) *CouponService {
	if cfg.Validity <= 0 {
		cfg.Validity = 30 * 24 * time.Hour
	}
	return &CouponService{
		repo: repo,
		cfg:  cfg,
		now:  time.Now,
	}
}

// FindActive returns the customer's coupon with the given code if it can be
// redeemed right now. An unknown, inactive or expired code yields nil, nil.
func (s *CouponService) FindActive(ctx context.Context, userID, code string) (*models.Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	coupon, err := s.repo.FindByOwnerAndCode(ctx, userID, code)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, nil
		}
		return nil, apperrors.Persistence("failed to look up coupon", err)
	}
	if !coupon.Redeemable(s.now()) {
		return nil, nil
	}
	return coupon, nil
}

// Issue replaces whatever coupon the customer holds with a fresh one.
func (s *CouponService) Issue(ctx context.Context, userID string) (*models.Coupon, error) {
	coupon := &models.Coupon{
		Code:               newCouponCode(),
		DiscountPercentage: s.cfg.DiscountPercentage,
		ExpirationDate:     s.now().Add(s.cfg.Validity),
		UserID:             userID,
		IsActive:           true,
	}
	if err := s.repo.Replace(ctx, coupon); err != nil {
		return nil, apperrors.Persistence("failed to issue coupon", err)
	}
	log.Printf("Issued coupon %s (%d%%) to user %s", coupon.Code, coupon.DiscountPercentage, userID)
	return coupon, nil
}

// Deactivate marks the customer's coupon as redeemed. It reports whether an
// active coupon was changed.
func (s *CouponService) Deactivate(ctx context.Context, userID, code string) (bool, error) {
	changed, err := s.repo.Deactivate(ctx, userID, code)
	if err != nil {
		return false, apperrors.Persistence("failed to deactivate coupon", err)
	}
	return changed, nil
}

// ActiveFor returns the customer's coupon if it is still redeemable.
func (s *CouponService) ActiveFor(ctx context.Context, userID string) (*models.Coupon, error) {
	coupon, err := s.repo.FindByOwner(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.NotFound("no active coupon")
		}
		return nil, apperrors.Persistence("failed to look up coupon", err)
	}
	if !coupon.Redeemable(s.now()) {
		return nil, apperrors.NotFound("no active coupon")
	}
	return coupon, nil
}

// Validate checks a code the customer typed at checkout. An expired coupon is
// switched off as a side effect.
func (s *CouponService) Validate(ctx context.Context, userID, code string) (*models.Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperrors.Validation("coupon code is required")
	}
	coupon, err := s.repo.FindByOwnerAndCode(ctx, userID, code)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.NotFound("coupon not found")
		}
		return nil, apperrors.Persistence("failed to look up coupon", err)
	}
	if !coupon.IsActive {
		return nil, apperrors.NotFound("coupon not found")
	}
	if !s.now().Before(coupon.ExpirationDate) {
		if _, err := s.repo.Deactivate(ctx, userID, code); err != nil {
			log.Printf("Warning: failed to deactivate expired coupon %s: %v", code, err)
		}
		return nil, apperrors.NotFound("coupon expired")
	}
	return coupon, nil
}

// newCouponCode returns GIFT followed by six uppercase hex characters.
func newCouponCode() string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return fmt.Sprintf("%s%s", couponCodePrefix, strings.ToUpper(id[:6]))
}
