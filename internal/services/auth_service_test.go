package services_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"storefront/internal/apperrors"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// MockUserRepository is a mock implementation of repositories.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByVerificationCode(ctx context.Context, code string) (*models.User, error) {
	args := m.Called(code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByResetCode(ctx context.Context, code string) (*models.User, error) {
	args := m.Called(code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserRepository) ListByRole(ctx context.Context, role string) ([]models.User, error) {
	args := m.Called(role)
	return args.Get(0).([]models.User), args.Error(1)
}

// codeMailer remembers the last code mailed to each address.
type codeMailer struct {
	verification map[string]string
	reset        map[string]string
	err          error
}

func newCodeMailer() *codeMailer {
	return &codeMailer{verification: map[string]string{}, reset: map[string]string{}}
}

func (m *codeMailer) SendVerificationCode(ctx context.Context, user *models.User, code string) error {
	if m.err != nil {
		return m.err
	}
	m.verification[user.Email] = code
	return nil
}

func (m *codeMailer) SendPasswordReset(ctx context.Context, user *models.User, code string) error {
	if m.err != nil {
		return m.err
	}
	m.reset[user.Email] = code
	return nil
}

// TestMain is used to setup test environment
func TestMain(m *testing.M) {
	log.SetOutput(os.Stdout)
	code := m.Run()
	os.Exit(code)
}

func TestAuthService_RegisterUser(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mailer := newCodeMailer()
	authService := services.NewAuthService(mockRepo, "test_jwt_secret", services.WithAccountMailer(mailer))
	ctx := context.Background()

	newUser := func() *models.User {
		return &models.User{
			Username: "testuser",
			Email:    "test@example.com",
			Password: "password123",
		}
	}

	// Test successful registration; a client cannot pre-verify itself
	user := newUser()
	user.EmailVerified = true
	mockRepo.On("GetByUsername", user.Username).Return(nil, repositories.ErrNotFound).Once()
	mockRepo.On("GetByEmail", user.Email).Return(nil, repositories.ErrNotFound).Once()
	mockRepo.On("Create", mock.MatchedBy(func(u *models.User) bool {
		return u.Role == models.RoleCustomer && !u.EmailVerified && u.VerificationCode != "" &&
			bcrypt.CompareHashAndPassword([]byte(u.Password), []byte("password123")) == nil
	})).Return(nil).Once()

	err := authService.RegisterUser(ctx, user)
	assert.NoError(t, err)
	assert.Empty(t, user.Password)
	assert.Equal(t, user.VerificationCode, mailer.verification["test@example.com"])
	assert.Len(t, user.VerificationCode, 32)
	mockRepo.AssertExpectations(t)

	// Test username already taken
	mockRepo.On("GetByUsername", "testuser").Return(&models.User{ID: "1"}, nil).Once()
	err = authService.RegisterUser(ctx, newUser())
	assert.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))
	assert.Contains(t, err.Error(), "username 'testuser' already taken")
	mockRepo.AssertExpectations(t)

	// Test email already registered
	mockRepo.On("GetByUsername", "testuser").Return(nil, repositories.ErrNotFound).Once()
	mockRepo.On("GetByEmail", "test@example.com").Return(&models.User{ID: "1"}, nil).Once()
	err = authService.RegisterUser(ctx, newUser())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "email 'test@example.com' already registered")
	mockRepo.AssertExpectations(t)

	// Test invalid input never reaches the repository
	err = authService.RegisterUser(ctx, &models.User{Username: "ab", Email: "not-an-email", Password: "123"})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
	mockRepo.AssertExpectations(t)
}

func TestAuthService_LoginUser(t *testing.T) {
	mockRepo := new(MockUserRepository)
	testJWTSecret := "test_jwt_secret"
	authService := services.NewAuthService(mockRepo, testJWTSecret)
	ctx := context.Background()

	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	user := &models.User{
		ID:       "user-123",
		Username: "testuser",
		Email:    "test@example.com",
		Password: string(hashedPassword),
		Role:     models.RoleAdmin,
	}

	// Test successful login
	mockRepo.On("GetByUsername", user.Username).Return(user, nil).Once()

	tokens, err := authService.LoginUser(ctx, "testuser", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)

	parsedToken, err := jwt.Parse(tokens.AccessToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(testJWTSecret), nil
	})
	assert.NoError(t, err)
	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	assert.True(t, ok)
	assert.Equal(t, user.ID, claims["user_id"])
	assert.Equal(t, user.Username, claims["username"])
	assert.Equal(t, models.RoleAdmin, claims["role"])
	mockRepo.AssertExpectations(t)

	// Test invalid credentials (wrong password)
	mockRepo.On("GetByUsername", user.Username).Return(user, nil).Once()
	_, err = authService.LoginUser(ctx, "testuser", "wrongpassword")
	assert.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindUnauthorized))
	assert.Contains(t, err.Error(), "invalid credentials")
	mockRepo.AssertExpectations(t)

	// Test invalid credentials (user not found)
	mockRepo.On("GetByUsername", "nonexistentuser").Return(nil, repositories.ErrNotFound).Once()
	_, err = authService.LoginUser(ctx, "nonexistentuser", "password123")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid credentials")
	mockRepo.AssertExpectations(t)
}

func TestAuthService_ValidateToken(t *testing.T) {
	mockRepo := new(MockUserRepository)
	testJWTSecret := "test_jwt_secret"
	authService := services.NewAuthService(mockRepo, testJWTSecret)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  "user-123",
		"username": "testuser",
		"exp":      jwt.TimeFunc().Add(time.Hour).Unix(),
	})
	validTokenString, _ := token.SignedString([]byte(testJWTSecret))

	claims, err := authService.ValidateToken(validTokenString)
	assert.NoError(t, err)
	assert.NotNil(t, claims)
	assert.Equal(t, "user-123", claims["user_id"])
	assert.Equal(t, "testuser", claims["username"])

	_, err = authService.ValidateToken("invalid.token.string")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token")

	expiredToken := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  "user-123",
		"username": "testuser",
		"exp":      jwt.TimeFunc().Add(-time.Hour).Unix(),
	})
	expiredTokenString, _ := expiredToken.SignedString([]byte(testJWTSecret))
	_, err = authService.ValidateToken(expiredTokenString)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token")
}

func TestAuthService_EnsureAdmin(t *testing.T) {
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, "secret")
	ctx := context.Background()

	mockRepo.On("GetByUsername", "admin").Return(nil, repositories.ErrNotFound).Once()
	mockRepo.On("Create", mock.MatchedBy(func(u *models.User) bool {
		return u.Role == models.RoleAdmin && u.Email == "admin@example.com"
	})).Return(nil).Once()
	assert.NoError(t, authService.EnsureAdmin(ctx, "admin", "admin@example.com", "s3cret!"))

	// Second start finds the account and does nothing.
	mockRepo.On("GetByUsername", "admin").Return(&models.User{ID: "a1", Role: models.RoleAdmin}, nil).Once()
	assert.NoError(t, authService.EnsureAdmin(ctx, "admin", "admin@example.com", "s3cret!"))
	mockRepo.AssertExpectations(t)
}

func TestAuthService_ListCustomersHidesPasswords(t *testing.T) {
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, "secret")

	mockRepo.On("ListByRole", models.RoleCustomer).Return([]models.User{
		{ID: "u1", Username: "alice", Password: "hash"},
		{ID: "u2", Username: "bob", Password: "hash"},
	}, nil).Once()

	users, err := authService.ListCustomers(context.Background())
	assert.NoError(t, err)
	assert.Len(t, users, 2)
	for _, u := range users {
		assert.Empty(t, u.Password)
	}
	mockRepo.AssertExpectations(t)
}

func unverifiedCustomer(t *testing.T) *models.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	expires := time.Now().Add(time.Hour)
	return &models.User{
		ID:                    "user-7",
		Username:              "abebe",
		Email:                 "abebe@example.com",
		Password:              string(hashed),
		Role:                  models.RoleCustomer,
		VerificationCode:      "code-abc",
		VerificationExpiresAt: &expires,
	}
}

func TestAuthService_LoginRequiresVerifiedEmail(t *testing.T) {
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, "secret", services.WithRequiredEmailVerification(true))
	ctx := context.Background()
	user := unverifiedCustomer(t)

	mockRepo.On("GetByUsername", "abebe").Return(user, nil).Once()
	_, err := authService.LoginUser(ctx, "abebe", "password123")
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))

	// Wrong password still reads as bad credentials, not as unverified.
	mockRepo.On("GetByUsername", "abebe").Return(user, nil).Once()
	_, err = authService.LoginUser(ctx, "abebe", "nope")
	assert.True(t, apperrors.Is(err, apperrors.KindUnauthorized))

	user.EmailVerified = true
	mockRepo.On("GetByUsername", "abebe").Return(user, nil).Once()
	_, err = authService.LoginUser(ctx, "abebe", "password123")
	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)

	// Without the requirement unverified customers log in.
	relaxed := services.NewAuthService(mockRepo, "secret")
	mockRepo.On("GetByUsername", "abebe").Return(unverifiedCustomer(t), nil).Once()
	_, err = relaxed.LoginUser(ctx, "abebe", "password123")
	assert.NoError(t, err)
}

func TestAuthService_VerifyEmail(t *testing.T) {
	ctx := context.Background()

	t.Run("valid code", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		authService := services.NewAuthService(mockRepo, "secret")
		user := unverifiedCustomer(t)
		mockRepo.On("GetByVerificationCode", "code-abc").Return(user, nil).Once()
		mockRepo.On("Update", mock.MatchedBy(func(u *models.User) bool {
			return u.EmailVerified && u.VerificationCode == "" && u.VerificationExpiresAt == nil
		})).Return(nil).Once()

		assert.NoError(t, authService.VerifyEmail(ctx, "code-abc"))
		mockRepo.AssertExpectations(t)
	})

	t.Run("expired code", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		authService := services.NewAuthService(mockRepo, "secret")
		user := unverifiedCustomer(t)
		past := time.Now().Add(-time.Minute)
		user.VerificationExpiresAt = &past
		mockRepo.On("GetByVerificationCode", "code-abc").Return(user, nil).Once()

		err := authService.VerifyEmail(ctx, "code-abc")
		assert.True(t, apperrors.Is(err, apperrors.KindValidation))
		mockRepo.AssertNotCalled(t, "Update", mock.Anything)
	})

	t.Run("unknown code", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		authService := services.NewAuthService(mockRepo, "secret")
		mockRepo.On("GetByVerificationCode", "nope").Return(nil, repositories.ErrNotFound).Once()

		err := authService.VerifyEmail(ctx, "nope")
		assert.True(t, apperrors.Is(err, apperrors.KindValidation))
		assert.Equal(t, "invalid or expired verification code", apperrors.PublicMessage(err))
	})

	t.Run("blank code", func(t *testing.T) {
		authService := services.NewAuthService(new(MockUserRepository), "secret")
		err := authService.VerifyEmail(ctx, "  ")
		assert.Equal(t, "required", apperrors.FieldsOf(err)["code"])
	})
}

func TestAuthService_ResendVerification(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	mailer := newCodeMailer()
	authService := services.NewAuthService(mockRepo, "secret", services.WithAccountMailer(mailer))

	user := unverifiedCustomer(t)
	mockRepo.On("GetByEmail", "abebe@example.com").Return(user, nil).Once()
	mockRepo.On("Update", mock.MatchedBy(func(u *models.User) bool {
		return u.VerificationCode != "" && u.VerificationCode != "code-abc"
	})).Return(nil).Once()
	require.NoError(t, authService.ResendVerification(ctx, "abebe@example.com"))
	assert.Equal(t, user.VerificationCode, mailer.verification["abebe@example.com"])

	verified := unverifiedCustomer(t)
	verified.EmailVerified = true
	mockRepo.On("GetByEmail", "abebe@example.com").Return(verified, nil).Once()
	err := authService.ResendVerification(ctx, "abebe@example.com")
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	mockRepo.On("GetByEmail", "ghost@example.com").Return(nil, repositories.ErrNotFound).Once()
	err = authService.ResendVerification(ctx, "ghost@example.com")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	mailer.err = errors.New("smtp down")
	mockRepo.On("GetByEmail", "abebe@example.com").Return(unverifiedCustomer(t), nil).Once()
	mockRepo.On("Update", mock.Anything).Return(nil).Once()
	err = authService.ResendVerification(ctx, "abebe@example.com")
	assert.True(t, apperrors.Is(err, apperrors.KindExternalService))
	mockRepo.AssertExpectations(t)
}

func TestAuthService_PasswordReset(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	mailer := newCodeMailer()
	authService := services.NewAuthService(mockRepo, "secret", services.WithAccountMailer(mailer))

	user := unverifiedCustomer(t)
	mockRepo.On("GetByEmail", "abebe@example.com").Return(user, nil).Once()
	mockRepo.On("Update", mock.MatchedBy(func(u *models.User) bool {
		return u.ResetCode != "" && u.ResetExpiresAt != nil && u.ResetExpiresAt.Before(time.Now().Add(11*time.Minute))
	})).Return(nil).Once()
	require.NoError(t, authService.ForgotPassword(ctx, "abebe@example.com"))
	code := mailer.reset["abebe@example.com"]
	require.NotEmpty(t, code)

	// Unknown addresses get the same answer.
	mockRepo.On("GetByEmail", "ghost@example.com").Return(nil, repositories.ErrNotFound).Once()
	assert.NoError(t, authService.ForgotPassword(ctx, "ghost@example.com"))
	assert.NotContains(t, mailer.reset, "ghost@example.com")

	err := authService.ResetPassword(ctx, code, "123")
	assert.Equal(t, "min", apperrors.FieldsOf(err)["password"])

	mockRepo.On("GetByResetCode", code).Return(user, nil).Once()
	mockRepo.On("Update", mock.MatchedBy(func(u *models.User) bool {
		return u.ResetCode == "" && u.ResetExpiresAt == nil && u.EmailVerified &&
			bcrypt.CompareHashAndPassword([]byte(u.Password), []byte("newpass99")) == nil
	})).Return(nil).Once()
	require.NoError(t, authService.ResetPassword(ctx, code, "newpass99"))

	// The code is single use.
	mockRepo.On("GetByResetCode", code).Return(nil, repositories.ErrNotFound).Once()
	err = authService.ResetPassword(ctx, code, "another1")
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
	mockRepo.AssertExpectations(t)
}

func TestAuthService_RefreshAccessToken(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := services.NewAuthService(mockRepo, "secret")

	user := unverifiedCustomer(t)
	user.EmailVerified = true
	mockRepo.On("GetByUsername", "abebe").Return(user, nil).Once()
	tokens, err := authService.LoginUser(ctx, "abebe", "password123")
	require.NoError(t, err)

	// A refresh token cannot stand in for an access token.
	_, err = authService.ValidateToken(tokens.RefreshToken)
	assert.Error(t, err)

	// Nor the other way around.
	_, err = authService.RefreshAccessToken(ctx, tokens.AccessToken)
	assert.True(t, apperrors.Is(err, apperrors.KindUnauthorized))

	mockRepo.On("GetByID", "user-7").Return(user, nil).Once()
	access, err := authService.RefreshAccessToken(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	claims, err := authService.ValidateToken(access)
	require.NoError(t, err)
	assert.Equal(t, "user-7", claims["user_id"])
	assert.Equal(t, models.RoleCustomer, claims["role"])

	mockRepo.On("GetByID", "user-7").Return(nil, repositories.ErrNotFound).Once()
	_, err = authService.RefreshAccessToken(ctx, tokens.RefreshToken)
	assert.True(t, apperrors.Is(err, apperrors.KindUnauthorized))

	_, err = authService.RefreshAccessToken(ctx, "garbage")
	assert.True(t, apperrors.Is(err, apperrors.KindUnauthorized))
	mockRepo.AssertExpectations(t)
}
