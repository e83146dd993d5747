package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ClientVersionMiddleware parses the remote server's User-Agent
// ("ZulipServer/8.0") and stores the version in context for log lines.
func ClientVersionMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userAgent := c.Get(fiber.HeaderUserAgent)
		if _, version, found := strings.Cut(userAgent, "/"); found {
			c.Locals("clientVersion", version)
		}
		return c.Next()
	}
}
