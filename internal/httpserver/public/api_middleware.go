package public

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/hung319/magicstudio2api/internal/app"
	"github.com/hung319/magicstudio2api/internal/httpserver/httputil"
)

const authBearerPrefix = "bearer "

// apiKeyAuth validates the Authorization bearer token against the single
// configured credential before any handler logic runs.
func apiKeyAuth(container *app.Container) fiber.Handler {
	expected := []byte(container.Config.Auth.APIKey)

	return func(c *fiber.Ctx) error {
		raw := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
		if raw == "" {
			return httputil.WriteError(c, fiber.StatusUnauthorized, "authorization header required")
		}

		if !strings.HasPrefix(strings.ToLower(raw), authBearerPrefix) {
			return httputil.WriteError(c, fiber.StatusUnauthorized, "bearer token required")
		}

		key := strings.TrimSpace(raw[len(authBearerPrefix):])
		if subtle.ConstantTimeCompare([]byte(key), expected) != 1 {
			return httputil.WriteError(c, fiber.StatusUnauthorized, "invalid api key")
		}

		return c.Next()
	}
}
