package render

import (
	"github.com/gofiber/fiber/v2"
)

const callbackCloseDelayMs = 2000

// RenderAuthCallbackPage renders the page shown in the consent popup once the
// tokens are stored. It notifies the opener window and closes itself.
func RenderAuthCallbackPage(ctx *fiber.Ctx, userIdentifier string) error {
	body, err := RenderHTML("auth-callback", fiber.Map{
		"userId":       userIdentifier,
		"closeDelayMs": callbackCloseDelayMs,
	})
	if err != nil {
		return err
	}
	ctx.Set("Content-Type", "text/html; charset=utf-8")
	return ctx.Status(fiber.StatusOK).SendString(body)
}
