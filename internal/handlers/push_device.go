package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/push-bouncer/internal/models"
	"github.com/localnerve/push-bouncer/internal/services"
	"github.com/localnerve/push-bouncer/internal/types"
	"github.com/localnerve/push-bouncer/internal/utils"
	"gorm.io/gorm"
)

// PushDeviceHandler handles device token registration routes
type PushDeviceHandler struct {
	DB *gorm.DB
}

type pushDeviceRequest struct {
	Token     string           `json:"token"`
	TokenKind int              `json:"token_kind"`
	UserID    *types.FlexInt64 `json:"user_id"`
	UserUUID  *string          `json:"user_uuid"`
	IOSAppID  *string          `json:"ios_app_id"`
}

func (r *pushDeviceRequest) identity() services.UserPushIdentity {
	var identity services.UserPushIdentity
	if r.UserID != nil {
		id := r.UserID.Int64()
		identity.UserID = &id
	}
	identity.UserUUID = r.UserUUID
	return identity
}

// Register handles POST /api/v1/remotes/push/register
// @Summary Register a push device token
// @Description Idempotent; a conflicting concurrent registration is treated as already satisfied
// @Tags PushDevice
// @Accept json
// @Produce json
// @Security BasicAuth
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /push/register [post]
func (h *PushDeviceHandler) Register(c *fiber.Ctx) error {
	server := serverFromContext(c)

	var req pushDeviceRequest
	if err := c.BodyParser(&req); err != nil {
		return types.BadRequest("Malformed JSON body")
	}
	if err := validateBouncerToken(req.Token, req.TokenKind); err != nil {
		return err
	}
	if req.TokenKind == models.PushKindAPNS {
		if req.IOSAppID == nil {
			return types.MissingVariable("ios_app_id")
		}
		if err := validateAppID(*req.IOSAppID); err != nil {
			return err
		}
	}

	identity := req.identity()
	if !identity.Valid() {
		return types.BadRequest("Missing user_id or user_uuid")
	}
	if identity.UserUUID != nil {
		if err := validateUUID(*identity.UserUUID); err != nil {
			return err
		}
	}

	if err := services.RegisterPushDevice(h.DB, server, req.Token, req.TokenKind, identity, req.IOSAppID); err != nil {
		return err
	}
	return utils.JSONSuccess(c, nil)
}

// Unregister handles POST /api/v1/remotes/push/unregister
// @Summary Unregister a push device token
// @Tags PushDevice
// @Accept json
// @Produce json
// @Security BasicAuth
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /push/unregister [post]
func (h *PushDeviceHandler) Unregister(c *fiber.Ctx) error {
	server := serverFromContext(c)

	var req pushDeviceRequest
	if err := c.BodyParser(&req); err != nil {
		return types.BadRequest("Malformed JSON body")
	}
	if err := validateBouncerToken(req.Token, req.TokenKind); err != nil {
		return err
	}
	identity := req.identity()
	if !identity.Valid() {
		return types.BadRequest("Missing user_id or user_uuid")
	}

	if err := services.UnregisterPushDevice(h.DB, server, req.Token, req.TokenKind, identity); err != nil {
		return err
	}
	return utils.JSONSuccess(c, nil)
}

// UnregisterAll handles POST /api/v1/remotes/push/unregister/all
// @Summary Unregister every push device token for an identity
// @Description Not an error when the identity has no registrations
// @Tags PushDevice
// @Accept json
// @Produce json
// @Security BasicAuth
// @Success 200 {object} utils.SuccessResponseStruct
// @Router /push/unregister/all [post]
func (h *PushDeviceHandler) UnregisterAll(c *fiber.Ctx) error {
	server := serverFromContext(c)

	var req pushDeviceRequest
	if err := c.BodyParser(&req); err != nil {
		return types.BadRequest("Malformed JSON body")
	}
	identity := req.identity()
	if !identity.Valid() {
		return types.BadRequest("Missing user_id or user_uuid")
	}

	if err := services.UnregisterAllPushDevices(h.DB, server, identity); err != nil {
		return err
	}
	return utils.JSONSuccess(c, nil)
}
