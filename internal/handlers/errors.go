package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/push-bouncer/internal/types"
	"github.com/localnerve/push-bouncer/internal/utils"
)

// ErrorHandler translates errors into the wire envelope remote servers
// parse: {"result": "error", "msg": ..., "code": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var apiErr *types.APIError
	if errors.As(err, &apiErr) {
		return utils.JSONError(c, apiErr.Status, apiErr.Code, apiErr.Message)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return utils.JSONError(c, fiberErr.Code, types.CodeBadRequest, fiberErr.Message)
	}

	log.Printf("Internal error handling %s: %v", c.OriginalURL(), err)
	return utils.JSONError(c, fiber.StatusInternalServerError, types.CodeBadRequest, "Internal server error")
}
