package models

import "time"

// Coupon is a customer's reward discount. A customer owns at most one coupon
// row; issuing a new one replaces the old.
type Coupon struct {
	ID                 string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Code               string    `json:"code" gorm:"index;type:varchar(32);not null"`
	DiscountPercentage int       `json:"discountPercentage" gorm:"not null" validate:"gte=0,lte=100"`
	ExpirationDate     time.Time `json:"expirationDate" gorm:"not null"`
	UserID             string    `json:"userId" gorm:"uniqueIndex;type:varchar(36);not null"`
	IsActive           bool      `json:"isActive" gorm:"not null"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Redeemable reports whether the coupon may be applied at the given instant.
func (c *Coupon) Redeemable(now time.Time) bool {
	return c.IsActive && now.Before(c.ExpirationDate)
}
