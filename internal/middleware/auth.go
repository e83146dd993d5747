package middleware

import (
	"encoding/base64"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/push-bouncer/internal/services"
	"github.com/localnerve/push-bouncer/internal/types"
	"gorm.io/gorm"
)

// AuthServer resolves the basic-auth credential pair (org id, org key)
// to a RemoteServer and stores it in the request context. Every remote
// endpoint except registration runs behind this.
func AuthServer(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		orgID, orgKey, ok := parseBasicAuth(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return types.InvalidServerKey("")
		}

		server, err := services.AuthenticateServer(db, orgID, orgKey)
		if err != nil {
			return err
		}

		c.Locals("server", server)
		return c.Next()
	}
}

// parseBasicAuth decodes an Authorization: Basic header into the
// credential pair.
func parseBasicAuth(header string) (string, string, bool) {
	const prefix = "Basic "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(header[len(prefix):])
	if err != nil {
		return "", "", false
	}
	orgID, orgKey, found := strings.Cut(string(decoded), ":")
	if !found {
		return "", "", false
	}
	return orgID, orgKey, true
}
