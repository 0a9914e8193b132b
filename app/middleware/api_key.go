package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v3"

	"github.com/openpromo/hermes/config"
)

// APIKey returns a middleware that guards the admin endpoints with a static
// API key. When key checking is disabled in config the middleware is a no-op.
func APIKey(cfg config.SecurityConfig) fiber.Handler {
	return func(c fiber.Ctx) error {
		if !cfg.RequireAPIKey {
			return c.Next()
		}

		provided := c.Get(cfg.APIKeyHeader)
		if provided == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "API key required",
			})
		}

		for _, allowed := range cfg.AllowedAPIKeys {
			if subtle.ConstantTimeCompare([]byte(provided), []byte(allowed)) == 1 {
				return c.Next()
			}
		}

		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "invalid API key",
		})
	}
}
