package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/vulnops/vulnmgt-backend/model"
)

type contextKey string

// Context keys carrying the authenticated identity into GraphQL resolvers.
const (
	UserKey contextKey = "username"
	RoleKey contextKey = "role"
)

// CallerFromContext extracts the caller placed in a context by the GraphQL
// handler. Returns false when the request was unauthenticated.
func CallerFromContext(ctx context.Context) (model.Caller, bool) {
	username, ok := ctx.Value(UserKey).(string)
	if !ok || username == "" {
		return model.Caller{}, false
	}
	role, _ := ctx.Value(RoleKey).(string)
	return model.Caller{Username: username, Role: role}, true
}

// RequireAuth middleware validates JWT token from cookie and blocks guests
func RequireAuth(c *fiber.Ctx) error {
	token := c.Cookies("auth_token")
	if token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	claims, err := ValidateJWT(token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid or expired session",
		})
	}

	// Store user info in context
	c.Locals("is_authenticated", true)
	c.Locals("username", claims.Username)
	c.Locals("role", claims.Role)

	return c.Next()
}

// RequireRole middleware checks if user has one of the required roles
func RequireRole(allowedRoles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userRole, ok := c.Locals("role").(string)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication required",
			})
		}

		for _, role := range allowedRoles {
			if userRole == role {
				return c.Next()
			}
		}

		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Insufficient permissions",
		})
	}
}

// CallerFromCtx extracts the authenticated caller set by RequireAuth.
// The second return is false when the request never passed RequireAuth.
func CallerFromCtx(c *fiber.Ctx) (model.Caller, bool) {
	username, ok := c.Locals("username").(string)
	if !ok || username == "" {
		return model.Caller{}, false
	}
	role, _ := c.Locals("role").(string)
	return model.Caller{Username: username, Role: role}, true
}
