package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/push-bouncer/internal/models"
	"github.com/localnerve/push-bouncer/internal/services"
	"github.com/localnerve/push-bouncer/internal/types"
	"github.com/localnerve/push-bouncer/internal/utils"
	"gorm.io/gorm"
)

// ServerHandler handles remote server registration and lifecycle routes
type ServerHandler struct {
	DB *gorm.DB
}

type registerServerRequest struct {
	ZulipOrgID   string  `json:"zulip_org_id"`
	ZulipOrgKey  string  `json:"zulip_org_key"`
	Hostname     string  `json:"hostname"`
	ContactEmail string  `json:"contact_email"`
	NewOrgKey    *string `json:"new_org_key"`
}

// Register handles POST /api/v1/remotes/server/register
// @Summary Register or update a remote server
// @Description Creates the server record on first contact; re-registration updates hostname/contact and may rotate the key
// @Tags Server
// @Accept json
// @Produce json
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /server/register [post]
func (h *ServerHandler) Register(c *fiber.Ctx) error {
	var req registerServerRequest
	if err := c.BodyParser(&req); err != nil {
		return types.BadRequest("Malformed JSON body")
	}

	if len(req.ZulipOrgID) != models.ServerUUIDLength {
		return types.BadRequest("zulip_org_id is not length %d", models.ServerUUIDLength)
	}
	if len(req.ZulipOrgKey) != models.ServerAPIKeyLength {
		return types.BadRequest("zulip_org_key is not length %d", models.ServerAPIKeyLength)
	}
	if req.NewOrgKey != nil && len(*req.NewOrgKey) != models.ServerAPIKeyLength {
		return types.BadRequest("new_org_key is not length %d", models.ServerAPIKeyLength)
	}
	if len(req.Hostname) > models.ServerHostnameMaxLength {
		return types.BadRequest("hostname is too long (limit: %d characters)", models.ServerHostnameMaxLength)
	}
	if err := validateHostname(req.Hostname); err != nil {
		return err
	}
	if err := validateEmail(req.ContactEmail); err != nil {
		return err
	}
	if err := validateUUID(req.ZulipOrgID); err != nil {
		return err
	}

	created, err := services.RegisterServer(h.DB, req.ZulipOrgID, req.ZulipOrgKey, req.Hostname, req.ContactEmail, req.NewOrgKey)
	if err != nil {
		return err
	}

	return utils.JSONSuccess(c, fiber.Map{"created": created})
}

// Deactivate handles POST /api/v1/remotes/server/deactivate
// @Summary Deactivate the calling remote server
// @Tags Server
// @Produce json
// @Security BasicAuth
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 401 {object} utils.ErrorResponseStruct
// @Router /server/deactivate [post]
func (h *ServerHandler) Deactivate(c *fiber.Ctx) error {
	server := serverFromContext(c)
	if err := services.DeactivateServer(h.DB, server); err != nil {
		return err
	}
	return utils.JSONSuccess(c, nil)
}
