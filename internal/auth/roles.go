package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/user-service/pkg/util"
)

// RequireAdmin ensures the caller holds the admin role.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !principal.User.IsAdmin() {
			return apperrors.NewForbidden("admin role required")
		}
		return c.Next()
	}
}

// RequireSelfOrAdmin ensures the caller is the user addressed by the route
// parameter, or an admin.
func RequireSelfOrAdmin(param string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if principal.User.IsAdmin() || principal.User.ID == c.Params(param) {
			return c.Next()
		}
		return apperrors.NewForbidden("insufficient permissions")
	}
}
