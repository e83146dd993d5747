package utils

import (
	"github.com/gofiber/fiber/v2"
)

// JSONSuccess sends the standard success envelope, merging any extra
// response data into it.
func JSONSuccess(c *fiber.Ctx, data fiber.Map) error {
	body := fiber.Map{
		"result": "success",
		"msg":    "",
	}
	for k, v := range data {
		body[k] = v
	}
	return c.Status(fiber.StatusOK).JSON(body)
}

// JSONError sends the standard error envelope with a machine-readable code.
func JSONError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"result": "error",
		"msg":    message,
		"code":   code,
	})
}

// SuccessResponseStruct defines the schema for success envelopes.
type SuccessResponseStruct struct {
	Result string `json:"result"`
	Msg    string `json:"msg"`
}

// ErrorResponseStruct defines the schema for error envelopes.
type ErrorResponseStruct struct {
	Result string `json:"result"`
	Msg    string `json:"msg"`
	Code   string `json:"code"`
}
