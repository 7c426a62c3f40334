package repositories

import (
	"context"

	"storefront/internal/models"
)

// UserRepository defines the interface for user data access.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	ListByRole(ctx context.Context, role string) ([]models.User, error)
	// GetByVerificationCode and GetByResetCode find the user holding a mailed
	// one-time code. Expiry is checked by the caller.
	GetByVerificationCode(ctx context.Context, code string) (*models.User, error)
	GetByResetCode(ctx context.Context, code string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
}
