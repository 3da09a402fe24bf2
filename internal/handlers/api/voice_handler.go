package api

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/kbooks/internal/assistant"
	"github.com/khanghh/kbooks/params"
)

const voiceFallbackText = "I'm sorry, I encountered an error processing your request."

type VoiceAssistant interface {
	Handle(ctx context.Context, req assistant.VoiceRequest) (*assistant.VoiceResponse, error)
}

type VoiceHandler struct {
	assistant     VoiceAssistant
	versionConfig versionConfig
}

func (h *VoiceHandler) PostVoice(ctx *fiber.Ctx) error {
	var req assistant.VoiceRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Audio == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Audio is required"})
	}

	resp, err := h.assistant.Handle(ctx.UserContext(), req)
	if errors.Is(err, assistant.ErrInvalidAudio) {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		slog.Error("Failed to process voice request", "sessionId", req.SessionID, "error", err)
		return ctx.Status(fiber.StatusInternalServerError).JSON(voiceErrorResponse{
			Error: err.Error(),
			Text:  voiceFallbackText,
		})
	}
	return ctx.JSON(resp)
}

func (h *VoiceHandler) GetHealth(ctx *fiber.Ctx) error {
	return ctx.JSON(newHealthResponse("Voice webhook"))
}

func (h *VoiceHandler) GetVersion(ctx *fiber.Ctx) error {
	return ctx.JSON(versionResponse{
		Version: params.Version,
		Config:  h.versionConfig,
	})
}

func NewVoiceHandler(voiceAssistant VoiceAssistant, hasFinancialService bool, openAIConfigured bool) *VoiceHandler {
	return &VoiceHandler{
		assistant: voiceAssistant,
		versionConfig: versionConfig{
			HasFinancialService: hasFinancialService,
			OpenAIConfigured:    openAIConfigured,
		},
	}
}
