package api

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/kbooks/internal/memory"
	"github.com/khanghh/kbooks/model"
	"github.com/spf13/cast"
)

type MemoryService interface {
	GetOrCreateSession(ctx context.Context, sessionID, userID string) (*model.Conversation, error)
	GetSession(ctx context.Context, sessionID string, messageLimit int) (*model.Conversation, error)
	StoreMessage(ctx context.Context, sessionID, userID string, input memory.MessageInput, sessionCtx *model.SessionContext) (*model.Message, error)
	UpdateContext(ctx context.Context, sessionID string, sessionCtx *model.SessionContext) (*model.SessionContext, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

type createSessionRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
	UserID    string `json:"userId"`
}

type storeMessageRequest struct {
	SessionID string                `json:"sessionId" validate:"required"`
	UserID    string                `json:"userId"`
	Message   *memory.MessageInput  `json:"message"   validate:"required"`
	Context   *model.SessionContext `json:"context"`
}

type updateContextRequest struct {
	Context *model.SessionContext `json:"context" validate:"required"`
}

type storeMessageResponse struct {
	Message   *model.Message `json:"message"`
	SessionID string         `json:"sessionId"`
}

type updateContextResponse struct {
	Context   *model.SessionContext `json:"context"`
	SessionID string                `json:"sessionId"`
}

type deleteSessionResponse struct {
	SessionID string `json:"sessionId"`
	Deleted   bool   `json:"deleted"`
}

type MemoryHandler struct {
	memoryService MemoryService
	validate      *validator.Validate
}

func (h *MemoryHandler) sendError(ctx *fiber.Ctx, err error) error {
	if errors.Is(err, memory.ErrSessionNotFound) {
		return ctx.Status(fiber.StatusNotFound).JSON(NewErrorResponse("Session not found"))
	}
	slog.Error("Memory request failed", "path", ctx.Path(), "error", err)
	return ctx.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse(err.Error()))
}

func badRequest(ctx *fiber.Ctx, message string) error {
	return ctx.Status(fiber.StatusBadRequest).JSON(NewErrorResponse(message))
}

func (h *MemoryHandler) PostSession(ctx *fiber.Ctx) error {
	var req createSessionRequest
	if err := ctx.BodyParser(&req); err != nil || h.validate.Struct(req) != nil {
		return badRequest(ctx, "Session ID is required")
	}
	conv, err := h.memoryService.GetOrCreateSession(ctx.UserContext(), req.SessionID, req.UserID)
	if err != nil {
		return h.sendError(ctx, err)
	}
	return ctx.JSON(NewDataResponse(conv))
}

func (h *MemoryHandler) GetSession(ctx *fiber.Ctx) error {
	messageLimit := cast.ToInt(ctx.Query("messageLimit"))
	conv, err := h.memoryService.GetSession(ctx.UserContext(), ctx.Params("sessionId"), messageLimit)
	if err != nil {
		return h.sendError(ctx, err)
	}
	return ctx.JSON(NewDataResponse(conv))
}

func (h *MemoryHandler) PostMessage(ctx *fiber.Ctx) error {
	var req storeMessageRequest
	if err := ctx.BodyParser(&req); err != nil || h.validate.Struct(req) != nil {
		return badRequest(ctx, "Session ID and message are required")
	}
	message, err := h.memoryService.StoreMessage(ctx.UserContext(), req.SessionID, req.UserID, *req.Message, req.Context)
	if err != nil {
		return h.sendError(ctx, err)
	}
	return ctx.JSON(NewDataResponse(storeMessageResponse{Message: message, SessionID: req.SessionID}))
}

func (h *MemoryHandler) PatchContext(ctx *fiber.Ctx) error {
	var req updateContextRequest
	if err := ctx.BodyParser(&req); err != nil || h.validate.Struct(req) != nil {
		return badRequest(ctx, "Context is required")
	}
	sessionID := ctx.Params("sessionId")
	sessionCtx, err := h.memoryService.UpdateContext(ctx.UserContext(), sessionID, req.Context)
	if err != nil {
		return h.sendError(ctx, err)
	}
	return ctx.JSON(NewDataResponse(updateContextResponse{Context: sessionCtx, SessionID: sessionID}))
}

func (h *MemoryHandler) DeleteSession(ctx *fiber.Ctx) error {
	sessionID := ctx.Params("sessionId")
	if err := h.memoryService.DeleteSession(ctx.UserContext(), sessionID); err != nil {
		return h.sendError(ctx, err)
	}
	return ctx.JSON(NewDataResponse(deleteSessionResponse{SessionID: sessionID, Deleted: true}))
}

func (h *MemoryHandler) GetHealth(ctx *fiber.Ctx) error {
	return ctx.JSON(newHealthResponse("Memory service"))
}

func NewMemoryHandler(memoryService MemoryService) *MemoryHandler {
	return &MemoryHandler{
		memoryService: memoryService,
		validate:      validator.New(),
	}
}
