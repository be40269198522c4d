package auth

import (
	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	keys       *Service
	jwtService *JWTService
}

func NewHandler(keys *Service, jwtService *JWTService) *Handler {
	return &Handler{
		keys:       keys,
		jwtService: jwtService,
	}
}

// IssueToken exchanges the configured API key for a JWT.
func (h *Handler) IssueToken(c *fiber.Ctx) error {
	if !h.keys.Enabled() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Authentication is not configured",
		})
	}

	var req TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.keys.Verify(req.APIKey); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid API key",
		})
	}

	token, expires, err := h.jwtService.GenerateToken()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate token",
		})
	}

	return c.JSON(TokenResponse{Token: token, ExpiresAt: expires})
}
