package handlers

import (
	"log"
	"strings"

	"storefront/internal/apperrors"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	authService *services.AuthService
	validate    *validator.Validate
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validate:    validator.New(),
	}
}

// RegisterRoutes registers the public authentication routes.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/register", h.HandleRegister)
	authRoutes.Post("/login", h.HandleLogin)
	authRoutes.Post("/logout", h.HandleLogout)
	authRoutes.Post("/refresh-token", h.HandleRefreshToken)
	authRoutes.Post("/verify-email", h.HandleVerifyEmail)
	authRoutes.Post("/resend-verification", h.HandleResendVerification)
	authRoutes.Post("/forgot-password", h.HandleForgotPassword)
	authRoutes.Post("/reset-password", h.HandleResetPassword)
}

// RegisterProtectedRoutes registers routes that need an authenticated caller.
func (h *AuthHandler) RegisterProtectedRoutes(router fiber.Router) {
	router.Get("/auth/profile", h.HandleProfile)
}

// HandleRegister handles new customer registration.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var user models.User
	if err := c.BodyParser(&user); err != nil {
		return badRequestBody(c, err)
	}

	if err := h.authService.RegisterUser(c.UserContext(), &user); err != nil {
		return respondError(c, "registering user", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User registered successfully",
		"user":    user,
	})
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin handles user login and issues an access and a refresh token.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequestBody(c, err)
	}

	if err := h.checkLogin(req); err != nil {
		return respondError(c, "logging in", err)
	}

	tokens, err := h.authService.LoginUser(c.UserContext(), req.Username, req.Password)
	if err != nil {
		log.Printf("Failed login for user %s: %v", req.Username, err)
		return respondError(c, "logging in", err)
	}

	return c.JSON(fiber.Map{
		"message":       "Login successful",
		"token":         tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// HandleRefreshToken trades a refresh token for a new access token.
func (h *AuthHandler) HandleRefreshToken(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequestBody(c, err)
	}
	token, err := h.authService.RefreshAccessToken(c.UserContext(), req.RefreshToken)
	if err != nil {
		return respondError(c, "refreshing token", err)
	}
	return c.JSON(fiber.Map{"token": token})
}

type accountCodeRequest struct {
	Code     string `json:"code"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleVerifyEmail confirms the emailed verification code.
func (h *AuthHandler) HandleVerifyEmail(c *fiber.Ctx) error {
	var req accountCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequestBody(c, err)
	}
	if err := h.authService.VerifyEmail(c.UserContext(), req.Code); err != nil {
		return respondError(c, "verifying email", err)
	}
	return c.JSON(fiber.Map{"message": "Email verified successfully"})
}

// HandleResendVerification mails a new verification code.
func (h *AuthHandler) HandleResendVerification(c *fiber.Ctx) error {
	var req accountCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequestBody(c, err)
	}
	if err := h.authService.ResendVerification(c.UserContext(), req.Email); err != nil {
		return respondError(c, "resending verification", err)
	}
	return c.JSON(fiber.Map{"message": "Verification code sent"})
}

// HandleForgotPassword always answers the same way for well-formed requests.
func (h *AuthHandler) HandleForgotPassword(c *fiber.Ctx) error {
	var req accountCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequestBody(c, err)
	}
	if err := h.authService.ForgotPassword(c.UserContext(), req.Email); err != nil {
		return respondError(c, "requesting password reset", err)
	}
	return c.JSON(fiber.Map{"message": "If the email is registered, a reset code has been sent"})
}

// HandleResetPassword sets a new password using an emailed reset code.
func (h *AuthHandler) HandleResetPassword(c *fiber.Ctx) error {
	var req accountCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequestBody(c, err)
	}
	if err := h.authService.ResetPassword(c.UserContext(), req.Code, req.Password); err != nil {
		return respondError(c, "resetting password", err)
	}
	return c.JSON(fiber.Map{"message": "Password reset successfully"})
}

func (h *AuthHandler) checkLogin(req LoginRequest) error {
	err := h.validate.Struct(req)
	if err == nil {
		return nil
	}
	fields := make(map[string]string)
	for _, e := range err.(validator.ValidationErrors) {
		fields[strings.ToLower(e.Field())] = e.Tag()
	}
	return apperrors.ValidationFields("Validation failed", fields)
}

// HandleLogout acknowledges a logout. Tokens are stateless, so the client
// simply drops its copy.
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": "Logged out successfully"})
}

// HandleProfile returns the authenticated user.
func (h *AuthHandler) HandleProfile(c *fiber.Ctx) error {
	user, err := h.authService.GetProfile(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respondError(c, "loading profile", err)
	}
	return c.JSON(user)
}
