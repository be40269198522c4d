package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Middleware protects a route group with Bearer JWTs. When the
// service runs without an API key the middleware waves everything
// through.
func Middleware(keys *Service, jwtService *JWTService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !keys.Enabled() {
			return c.Next()
		}

		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authorization header required",
			})
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid authorization header format",
			})
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := jwtService.VerifyToken(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}

		c.Locals("token_subject", claims.Subject)
		return c.Next()
	}
}
