package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// User represents a user of the store.
type User struct {
	ID        string         `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Username  string         `json:"username" gorm:"uniqueIndex;type:varchar(100)" validate:"required,min=3,max=100"`
	Email     string         `json:"email" gorm:"uniqueIndex;type:varchar(255)" validate:"required,email"`
	Password  string         `json:"password,omitempty" gorm:"type:varchar(255)" validate:"required,min=6"`
	Role      string         `json:"role" gorm:"type:varchar(16);default:customer"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	EmailVerified bool `json:"email_verified" gorm:"not null;default:false"`
	// One-time codes mailed to the user. They are never serialized.
	VerificationCode      string     `json:"-" gorm:"type:varchar(64);index"`
	VerificationExpiresAt *time.Time `json:"-"`
	ResetCode             string     `json:"-" gorm:"type:varchar(64);index"`
	ResetExpiresAt        *time.Time `json:"-"`
}

// CodeValid reports whether a code expiring at expiresAt is still usable at now.
func CodeValid(expiresAt *time.Time, now time.Time) bool {
	return expiresAt != nil && now.Before(*expiresAt)
}
