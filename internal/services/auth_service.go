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
	"storefront/internal/notify"
	"storefront/internal/repositories"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	verificationCodeTTL = 24 * time.Hour
	resetCodeTTL        = 10 * time.Minute
	minPasswordLength   = 6
)

// TokenPair is what a successful login returns. Only the access token
// authorizes requests; the refresh token buys a new access token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthService handles business logic for authentication and authorization.
type AuthService struct {
	userRepo        repositories.UserRepository
	jwtSecret       []byte
	tokenDurat      time.Duration // Duration for which JWT is valid
	refreshDurat    time.Duration
	mailer          notify.AccountMailer
	requireVerified bool
	now             func() time.Time
}

// AuthOption customizes an AuthService.
type AuthOption func(*AuthService)

// WithAccountMailer sends verification and reset codes through m.
func WithAccountMailer(m notify.AccountMailer) AuthOption {
	return func(s *AuthService) { s.mailer = m }
}

// WithRequiredEmailVerification refuses logins of customers whose email is
// not verified yet.
func WithRequiredEmailVerification(required bool) AuthOption {
	return func(s *AuthService) { s.requireVerified = required }
}

// NewAuthService creates a new AuthService. Codes go to the log unless a
// mailer is configured.
func NewAuthService(userRepo repositories.UserRepository, jwtSecret string, opts ...AuthOption) *AuthService {
	s := &AuthService{
		userRepo:     userRepo,
		jwtSecret:    []byte(jwtSecret),
		tokenDurat:   24 * time.Hour, // Token valid for 24 hours
		refreshDurat: 7 * 24 * time.Hour,
		mailer:       notify.LogMailer{},
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterUser registers a new customer, hashes their password, and saves them to the database.
func (s *AuthService) RegisterUser(ctx context.Context, user *models.User) error {
	if err := validateStruct(user, "invalid registration"); err != nil {
		return err
	}
	// Check if username or email already exists
	if existingUser, err := s.userRepo.GetByUsername(ctx, user.Username); err == nil && existingUser != nil {
		return apperrors.Conflict(fmt.Sprintf("username '%s' already taken", user.Username))
	}
	if existingUser, err := s.userRepo.GetByEmail(ctx, user.Email); err == nil && existingUser != nil {
		return apperrors.Conflict(fmt.Sprintf("email '%s' already registered", user.Email))
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = string(hashedPassword)
	user.Role = models.RoleCustomer
	user.EmailVerified = false
	user.ResetCode, user.ResetExpiresAt = "", nil
	code := s.setVerificationCode(user)

	if err := s.userRepo.Create(ctx, user); err != nil {
		return apperrors.Persistence("failed to register user", err)
	}
	user.Password = ""

	// The account exists either way; the customer can ask for a new code.
	if err := s.mailer.SendVerificationCode(ctx, user, code); err != nil {
		log.Printf("Failed to send verification code to %s: %v", user.Email, err)
	}
	return nil
}

// LoginUser authenticates a user and returns a JWT token pair if successful.
func (s *AuthService) LoginUser(ctx context.Context, username, password string) (*TokenPair, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		// Same answer for unknown users and wrong passwords.
		return nil, apperrors.Unauthorized("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, apperrors.Unauthorized("invalid credentials")
	}

	if s.requireVerified && !user.EmailVerified && user.Role != models.RoleAdmin {
		return nil, apperrors.Forbidden("please verify your email before logging in")
	}

	access, err := s.accessToken(user)
	if err != nil {
		return nil, err
	}
	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"typ":     tokenTypeRefresh,
		"exp":     s.now().Add(s.refreshDurat).Unix(),
		"iat":     s.now().Unix(),
	})
	refreshString, err := refresh.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: refreshString}, nil
}

func (s *AuthService) accessToken(user *models.User) (string, error) {
	role := user.Role
	if role == "" {
		role = models.RoleCustomer
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"email":    user.Email,
		"role":     role,
		"typ":      tokenTypeAccess,
		"exp":      s.now().Add(s.tokenDurat).Unix(),
		"iat":      s.now().Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenString, nil
}

// RefreshAccessToken exchanges a refresh token for a new access token. The
// user is reloaded so role changes and deleted accounts take effect.
func (s *AuthService) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.parse(refreshToken)
	if err != nil || claims["typ"] != tokenTypeRefresh {
		return "", apperrors.Unauthorized("invalid or expired refresh token")
	}
	userID, _ := claims["user_id"].(string)
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return "", apperrors.Unauthorized("invalid or expired refresh token")
		}
		return "", apperrors.Persistence("could not retrieve user", err)
	}
	return s.accessToken(user)
}

// ValidateToken parses and validates an access token, returning the claims
// if valid. Refresh tokens are rejected.
func (s *AuthService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims["typ"] == tokenTypeRefresh {
		return nil, fmt.Errorf("invalid token: refresh tokens cannot authorize requests")
	}
	return claims, nil
}

func (s *AuthService) parse(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		log.Printf("Token validation error: %v", err)
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}

// GetProfile returns the user without the password hash.
func (s *AuthService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, apperrors.Persistence("could not retrieve user", err)
	}
	user.Password = ""
	return user, nil
}

// ListCustomers returns every customer account without password hashes.
func (s *AuthService) ListCustomers(ctx context.Context) ([]models.User, error) {
	users, err := s.userRepo.ListByRole(ctx, models.RoleCustomer)
	if err != nil {
		return nil, apperrors.Persistence("could not retrieve users", err)
	}
	for i := range users {
		users[i].Password = ""
	}
	return users, nil
}

// EnsureAdmin creates the administrator account if the username is free.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, email, password string) error {
	if _, err := s.userRepo.GetByUsername(ctx, username); err == nil {
		return nil
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("failed to look up admin %s: %w", username, err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	admin := &models.User{
		Username:      username,
		Email:         email,
		Password:      string(hashedPassword),
		Role:          models.RoleAdmin,
		EmailVerified: true,
	}
	if err := s.userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin %s: %w", username, err)
	}
	log.Printf("Created admin user %s", username)
	return nil
}

// VerifyEmail marks the account holding code as verified.
func (s *AuthService) VerifyEmail(ctx context.Context, code string) error {
	if strings.TrimSpace(code) == "" {
		return apperrors.ValidationFields("verification code is required", map[string]string{"code": "required"})
	}
	user, err := s.userRepo.GetByVerificationCode(ctx, code)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperrors.Validation("invalid or expired verification code")
		}
		return apperrors.Persistence("could not verify email", err)
	}
	if !models.CodeValid(user.VerificationExpiresAt, s.now()) {
		return apperrors.Validation("invalid or expired verification code")
	}

	user.EmailVerified = true
	user.VerificationCode, user.VerificationExpiresAt = "", nil
	if err := s.userRepo.Update(ctx, user); err != nil {
		return apperrors.Persistence("could not verify email", err)
	}
	return nil
}

// ResendVerification mails a fresh verification code, replacing the old one.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return apperrors.Validation("email is already verified")
	}

	code := s.setVerificationCode(user)
	if err := s.userRepo.Update(ctx, user); err != nil {
		return apperrors.Persistence("could not issue verification code", err)
	}
	if err := s.mailer.SendVerificationCode(ctx, user, code); err != nil {
		return apperrors.ExternalService("could not send verification email", err)
	}
	return nil
}

// ForgotPassword mails a short-lived reset code. Unknown addresses succeed
// silently so the answer does not reveal which emails are registered.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.userByEmail(ctx, email)
	if err != nil {
		if apperrors.Is(err, apperrors.KindNotFound) {
			log.Printf("Password reset requested for unknown email %s", email)
			return nil
		}
		return err
	}

	code := newAccountCode()
	expires := s.now().Add(resetCodeTTL)
	user.ResetCode, user.ResetExpiresAt = code, &expires
	if err := s.userRepo.Update(ctx, user); err != nil {
		return apperrors.Persistence("could not issue reset code", err)
	}
	if err := s.mailer.SendPasswordReset(ctx, user, code); err != nil {
		return apperrors.ExternalService("could not send password reset email", err)
	}
	return nil
}

// ResetPassword sets a new password for the account holding code. Receiving
// the code proves control of the mailbox, so the email counts as verified.
func (s *AuthService) ResetPassword(ctx context.Context, code, newPassword string) error {
	fields := map[string]string{}
	if strings.TrimSpace(code) == "" {
		fields["code"] = "required"
	}
	if len(newPassword) < minPasswordLength {
		fields["password"] = "min"
	}
	if len(fields) > 0 {
		return apperrors.ValidationFields("code and a password of at least 6 characters are required", fields)
	}

	user, err := s.userRepo.GetByResetCode(ctx, code)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperrors.Validation("invalid or expired reset code")
		}
		return apperrors.Persistence("could not reset password", err)
	}
	if !models.CodeValid(user.ResetExpiresAt, s.now()) {
		return apperrors.Validation("invalid or expired reset code")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = string(hashedPassword)
	user.ResetCode, user.ResetExpiresAt = "", nil
	user.EmailVerified = true
	if err := s.userRepo.Update(ctx, user); err != nil {
		return apperrors.Persistence("could not reset password", err)
	}
	return nil
}

func (s *AuthService) userByEmail(ctx context.Context, email string) (*models.User, error) {
	if strings.TrimSpace(email) == "" {
		return nil, apperrors.ValidationFields("email is required", map[string]string{"email": "required"})
	}
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, apperrors.Persistence("could not retrieve user", err)
	}
	return user, nil
}

func (s *AuthService) setVerificationCode(user *models.User) string {
	code := newAccountCode()
	expires := s.now().Add(verificationCodeTTL)
	user.VerificationCode, user.VerificationExpiresAt = code, &expires
	return code
}

// newAccountCode returns 128 random bits as hex, long enough that codes can
// be looked up on their own.
func newAccountCode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
