package api

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/kbooks/internal/audit"
	"github.com/khanghh/kbooks/internal/auth"
	"github.com/khanghh/kbooks/internal/render"
	"github.com/khanghh/kbooks/internal/tokens"
	"github.com/khanghh/kbooks/params"
)

type AuthorizeService interface {
	AuthorizeURL(userIdentifier string) (string, error)
	DecodeState(state string) (string, error)
}

type TokenService interface {
	StoreFromCode(ctx context.Context, code string, userIdentifier string) (*tokens.TokenRecord, error)
	GetValid(ctx context.Context, userIdentifier string) (*tokens.TokenRecord, error)
	Revoke(ctx context.Context, userIdentifier string) (bool, error)
	Status(ctx context.Context, userIdentifier string) (*tokens.TokenStatus, error)
}

type AuthHandler struct {
	authorizeService AuthorizeService
	tokenService     TokenService
}

func userIdentifier(value string) string {
	if value == "" {
		return params.DefaultUserIdentifier
	}
	return value
}

func withClientInfo(ctx *fiber.Ctx) context.Context {
	return audit.WithClientInfo(ctx.UserContext(), ctx.IP(), ctx.Get(fiber.HeaderUserAgent))
}

// GetAuthorize redirects to the Zoho consent page.
func (h *AuthHandler) GetAuthorize(ctx *fiber.Ctx) error {
	authURL, err := h.authorizeService.AuthorizeURL(ctx.Query("state"))
	if err != nil {
		slog.Error("Failed to build authorize url", "error", err)
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.Redirect(authURL, fiber.StatusFound)
}

// GetCallback exchanges the authorization code and stores the tokens for the
// user carried in the state.
func (h *AuthHandler) GetCallback(ctx *fiber.Ctx) error {
	code := ctx.Query("code")
	if code == "" {
		return ctx.Status(fiber.StatusBadRequest).SendString("Authorization code is missing")
	}

	user, err := h.authorizeService.DecodeState(ctx.Query("state"))
	if errors.Is(err, auth.ErrInvalidState) || errors.Is(err, auth.ErrStateExpired) {
		return ctx.Status(fiber.StatusBadRequest).SendString("Authentication failed: " + err.Error())
	}
	if err != nil {
		return err
	}

	if _, err := h.tokenService.StoreFromCode(withClientInfo(ctx), code, user); err != nil {
		slog.Error("Failed to handle oauth callback", "user", user, "error", err)
		return ctx.Status(fiber.StatusInternalServerError).SendString("Authentication failed: " + err.Error())
	}
	return render.RenderAuthCallbackPage(ctx, user)
}

func (h *AuthHandler) GetStatus(ctx *fiber.Ctx) error {
	user := userIdentifier(ctx.Query("user"))
	status, err := h.tokenService.Status(ctx.UserContext(), user)
	if err != nil {
		slog.Error("Failed to check token status", "user", user, "error", err)
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if !status.Authenticated {
		authURL, err := h.authorizeService.AuthorizeURL(user)
		if err != nil {
			return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return ctx.JSON(authStatusResponse{Authenticated: false, AuthURL: authURL})
	}
	return ctx.JSON(authStatusResponse{Authenticated: true, ExpiresIn: &status.ExpiresIn})
}

// GetTokens returns valid tokens for the user, refreshing them first when they
// are about to expire.
func (h *AuthHandler) GetTokens(ctx *fiber.Ctx) error {
	user := userIdentifier(ctx.Query("user"))
	record, err := h.tokenService.GetValid(withClientInfo(ctx), user)
	if err != nil {
		slog.Error("Failed to get tokens", "user", user, "error", err)
		return ctx.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse(err.Error()))
	}
	if record == nil {
		return ctx.JSON(NewErrorResponse("No tokens found for this user"))
	}
	return ctx.JSON(NewDataResponse(record.TokenBundle))
}

func (h *AuthHandler) PostRevoke(ctx *fiber.Ctx) error {
	var req revokeRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
	}
	user := userIdentifier(req.User)
	revoked, err := h.tokenService.Revoke(withClientInfo(ctx), user)
	if err != nil {
		slog.Error("Failed to revoke tokens", "user", user, "error", err)
		return ctx.Status(fiber.StatusInternalServerError).JSON(revokeResponse{Success: false, Error: err.Error()})
	}
	return ctx.JSON(revokeResponse{Success: revoked})
}

func (h *AuthHandler) GetHealth(ctx *fiber.Ctx) error {
	return ctx.JSON(newHealthResponse("Auth service"))
}

func NewAuthHandler(authorizeService AuthorizeService, tokenService TokenService) *AuthHandler {
	return &AuthHandler{
		authorizeService: authorizeService,
		tokenService:     tokenService,
	}
}
