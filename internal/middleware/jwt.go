package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/smartbank/smartbank/internal/auth"
)

// JWTAuth validates bearer access tokens and stashes the authenticated user
// ID in the request context.
func JWTAuth(tokens *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])
		userID, err := tokens.Verify(tokenStr)
		if err != nil || userID == "" {
			return fiber.NewError(http.StatusUnauthorized, "invalid or expired token")
		}

		c.Locals("user_id", userID)
		return c.Next()
	}
}
