package middlewares

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler writes errors that escaped the handlers as {success:false, error}.
func ErrorHandler(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
		message = fiberErr.Message
	}
	if code >= fiber.StatusInternalServerError {
		slog.Error("unhandled error", "path", ctx.Path(), "code", code, "error", err)
	}
	return ctx.Status(code).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}
