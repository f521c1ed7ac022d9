package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/user-service/internal/api/dto"
	"github.com/spec-kit/user-service/internal/auth"
	"github.com/spec-kit/user-service/internal/domain"
	"github.com/spec-kit/user-service/internal/repository"
	"github.com/spec-kit/user-service/internal/service"
	apperrors "github.com/spec-kit/user-service/pkg/util"
)

// UsersHandler exposes user CRUD endpoints.
type UsersHandler struct {
	users *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(userService *service.UserService) *UsersHandler {
	return &UsersHandler{users: userService}
}

// List handles GET /api/users.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	filter := repository.UserFilter{
		SortBy:  c.Query("sort_by", "created_at"),
		SortDir: c.Query("sort_dir", "desc"),
		Limit:   repository.ClampLimit(c.QueryInt("limit", 20)),
		Offset:  repository.ClampOffset(c.QueryInt("offset", 0)),
	}
	if search := c.Query("search"); search != "" {
		filter.Search = &search
	}
	if role := c.Query("role"); role != "" {
		r := domain.UserRole(role)
		if !domain.ValidRole(r) {
			return apperrors.NewValidationError("invalid role filter", map[string]any{"role": role})
		}
		filter.Role = &r
	}
	if status := c.Query("status"); status != "" {
		s := domain.UserStatus(status)
		if !domain.ValidStatus(s) {
			return apperrors.NewValidationError("invalid status filter", map[string]any{"status": status})
		}
		filter.Status = &s
	}

	users, total, err := h.users.List(c.UserContext(), filter)
	if err != nil {
		return err
	}

	return respond(c, http.StatusOK, "", fiber.Map{
		"users": users,
		"meta": dto.ListMeta{
			Total:  total,
			Limit:  filter.Limit,
			Offset: filter.Offset,
		},
	})
}

// Create handles POST /api/users.
func (h *UsersHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	role := domain.UserRole(req.Role)
	if req.Role == "" {
		role = domain.RoleUser
	}
	status := domain.UserStatus(req.Status)
	if req.Status == "" {
		status = domain.UserStatusActive
	}

	user, err := h.users.Create(c.UserContext(), principal.User, req.Email, req.Password, req.FullName, role, status)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "user created", fiber.Map{"user": user})
}

// Stats handles GET /api/users/stats.
func (h *UsersHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.users.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", fiber.Map{"stats": stats})
}

// Get handles GET /api/users/:id.
func (h *UsersHandler) Get(c *fiber.Ctx) error {
	user, err := h.users.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", fiber.Map{"user": user})
}

// Update handles PUT /api/users/:id.
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	input := service.UpdateUserInput{
		Email:    req.Email,
		FullName: req.FullName,
	}
	if req.Role != nil {
		role := domain.UserRole(*req.Role)
		input.Role = &role
	}
	if req.Status != nil {
		status := domain.UserStatus(*req.Status)
		input.Status = &status
	}

	user, err := h.users.Update(c.UserContext(), principal.User, c.Params("id"), input)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "user updated", fiber.Map{"user": user})
}

// Delete handles DELETE /api/users/:id.
func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	if err := h.users.Delete(c.UserContext(), principal.User, c.Params("id")); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "user deleted", nil)
}

// ChangePassword handles PUT /api/users/:id/password.
func (h *UsersHandler) ChangePassword(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	if err := h.users.ChangePassword(c.UserContext(), principal.User, c.Params("id"), req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "password changed", nil)
}

// Activate handles PATCH /api/users/:id/activate.
func (h *UsersHandler) Activate(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	user, err := h.users.Activate(c.UserContext(), principal.User, c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "user activated", fiber.Map{"user": user})
}

// Deactivate handles PATCH /api/users/:id/deactivate.
func (h *UsersHandler) Deactivate(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	user, err := h.users.Deactivate(c.UserContext(), principal.User, c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "user deactivated", fiber.Map{"user": user})
}
