package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/user-service/internal/api/dto"
	"github.com/spec-kit/user-service/internal/auth"
	"github.com/spec-kit/user-service/internal/service"
	apperrors "github.com/spec-kit/user-service/pkg/util"
)

// AuthHandler exposes signup, login, and session endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Signup handles POST /api/auth/signup.
func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var req dto.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	user, token, exp, err := h.auth.Signup(c.UserContext(), req.Email, req.Password, req.FullName)
	if err != nil {
		return err
	}

	return respond(c, http.StatusCreated, "account created", fiber.Map{
		"user": user,
		"auth": dto.AuthResponse{Token: token, ExpiresAt: exp},
	})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	user, token, exp, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return respond(c, http.StatusOK, "login successful", fiber.Map{
		"user": user,
		"auth": dto.AuthResponse{Token: token, ExpiresAt: exp},
	})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	return respond(c, http.StatusOK, "", fiber.Map{"user": principal.User})
}

// Verify handles GET /api/auth/verify. Reaching the handler means the
// middleware accepted the token; echo the claims back.
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	return respond(c, http.StatusOK, "token is valid", fiber.Map{
		"user_id":    principal.Claims.UserID,
		"email":      principal.Claims.Email,
		"role":       principal.Claims.Role,
		"expires_at": principal.Claims.ExpiresAt,
	})
}

// Refresh handles POST /api/auth/refresh.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	token, exp, err := h.auth.Refresh(c.UserContext(), principal.User)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "token refreshed", fiber.Map{
		"auth": dto.AuthResponse{Token: token, ExpiresAt: exp},
	})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.auth.Logout(c.UserContext(), principal.Claims); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "logged out", nil)
}

// RequestPasswordReset handles POST /api/auth/password/reset/request. The
// response is identical whether or not the email exists.
func (h *AuthHandler) RequestPasswordReset(c *fiber.Ctx) error {
	var req dto.PasswordResetRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	if _, err := h.auth.RequestPasswordReset(c.UserContext(), req.Email); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "if the email exists, a reset link has been sent", nil)
}

// ConfirmPasswordReset handles POST /api/auth/password/reset/confirm.
func (h *AuthHandler) ConfirmPasswordReset(c *fiber.Ctx) error {
	var req dto.PasswordResetConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	if err := h.auth.ConfirmPasswordReset(c.UserContext(), req.Token, req.NewPassword); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "password updated", nil)
}
