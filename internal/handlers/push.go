package handlers

import (
	"bytes"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/push-bouncer/internal/senders"
	"github.com/localnerve/push-bouncer/internal/services"
	"github.com/localnerve/push-bouncer/internal/types"
	"github.com/localnerve/push-bouncer/internal/utils"
	"gorm.io/gorm"
)

// PushHandler handles notification forwarding routes
type PushHandler struct {
	DB      *gorm.DB
	Senders *senders.Platform
}

type notifyPushRequest struct {
	UserID      *types.FlexInt64       `json:"user_id"`
	UserUUID    *string                `json:"user_uuid"`
	RealmUUID   *string                `json:"realm_uuid"`
	GCMPayload  map[string]interface{} `json:"gcm_payload"`
	APNSPayload map[string]interface{} `json:"apns_payload"`
	GCMOptions  map[string]interface{} `json:"gcm_options"`
}

type testNotificationRequest struct {
	Token       string                 `json:"token"`
	TokenKind   int                    `json:"token_kind"`
	UserID      *types.FlexInt64       `json:"user_id"`
	UserUUID    *string                `json:"user_uuid"`
	BasePayload map[string]interface{} `json:"base_payload"`
}

// decodeNumberBody decodes a JSON body keeping numbers as json.Number,
// so an integer origin timestamp stays distinguishable from a float one.
func decodeNumberBody(c *fiber.Ctx, v interface{}) error {
	decoder := json.NewDecoder(bytes.NewReader(c.Body()))
	decoder.UseNumber()
	if err := decoder.Decode(v); err != nil {
		return types.BadRequest("Malformed JSON body")
	}
	return nil
}

// Notify handles POST /api/v1/remotes/push/notify
// @Summary Forward a push notification to the target user's devices
// @Description Returns device counts per platform; delivery errors are logged by the gateway senders
// @Tags Push
// @Accept json
// @Produce json
// @Security BasicAuth
// @Success 200 {object} services.NotifyResult
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /push/notify [post]
func (h *PushHandler) Notify(c *fiber.Ctx) error {
	server := serverFromContext(c)

	var req notifyPushRequest
	if err := decodeNumberBody(c, &req); err != nil {
		return err
	}
	if req.GCMPayload == nil {
		return types.MissingVariable("gcm_payload")
	}
	if req.APNSPayload == nil {
		return types.MissingVariable("apns_payload")
	}

	identity := services.UserPushIdentity{UserUUID: req.UserUUID}
	if req.UserID != nil {
		id := req.UserID.Int64()
		identity.UserID = &id
	}
	if !identity.Valid() {
		return types.BadRequest("Missing user_id or user_uuid")
	}

	result, err := services.NotifyPush(h.DB, h.Senders, server, services.NotifyRequest{
		Identity:    identity,
		RealmUUID:   req.RealmUUID,
		GCMPayload:  req.GCMPayload,
		APNSPayload: req.APNSPayload,
		GCMOptions:  req.GCMOptions,
	})
	if err != nil {
		return err
	}

	return utils.JSONSuccess(c, fiber.Map{
		"total_android_devices": result.TotalAndroidDevices,
		"total_apple_devices":   result.TotalAppleDevices,
	})
}

// TestNotification handles POST /api/v1/remotes/push/test_notification
// @Summary Send a test notification to one device
// @Description An unknown token answers with INVALID_REMOTE_PUSH_DEVICE_TOKEN so the error can be shown on the device
// @Tags Push
// @Accept json
// @Produce json
// @Security BasicAuth
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /push/test_notification [post]
func (h *PushHandler) TestNotification(c *fiber.Ctx) error {
	server := serverFromContext(c)

	var req testNotificationRequest
	if err := decodeNumberBody(c, &req); err != nil {
		return err
	}
	if err := validateBouncerToken(req.Token, req.TokenKind); err != nil {
		return err
	}

	// This endpoint is only used by servers new enough to send both
	// identity fields.
	if req.UserID == nil {
		return types.MissingVariable("user_id")
	}
	if req.UserUUID == nil {
		return types.MissingVariable("user_uuid")
	}
	id := req.UserID.Int64()
	identity := services.UserPushIdentity{UserID: &id, UserUUID: req.UserUUID}

	if err := services.SendTestNotification(h.DB, h.Senders, server, req.Token, req.TokenKind, identity, req.BasePayload); err != nil {
		return err
	}
	return utils.JSONSuccess(c, nil)
}
