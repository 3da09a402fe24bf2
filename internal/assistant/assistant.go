package assistant

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/khanghh/kbooks/model"
)

var (
	ErrAudioRequired = errors.New("audio is required")
	ErrInvalidAudio  = errors.New("audio must be provided as a base64 string")
)

type VoiceRequest struct {
	Audio     string `json:"audio"`
	SessionID string `json:"sessionId"`
}

type VoiceContext struct {
	SessionID string `json:"sessionId"`
	model.SessionContext
}

type VoiceResponse struct {
	Text    string       `json:"text"`
	Audio   string       `json:"audio"`
	Context VoiceContext `json:"context"`
}

// DecodeAudio decodes standard base64 audio.
func DecodeAudio(audio string) ([]byte, error) {
	data, err := base64.StdEncoding.Strict().DecodeString(audio)
	if err != nil {
		return nil, ErrInvalidAudio
	}
	return data, nil
}

// Assistant runs the voice pipeline: transcribe, select a function, execute
// it, phrase the answer and synthesize it.
type Assistant struct {
	provider  Provider
	functions map[string]FunctionHandler
	defs      []FunctionDefinition
	recorder  Recorder
}

func (a *Assistant) Handle(ctx context.Context, req VoiceRequest) (*VoiceResponse, error) {
	if req.Audio == "" {
		return nil, ErrAudioRequired
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	audio, err := DecodeAudio(req.Audio)
	if err != nil {
		return nil, err
	}
	userText, err := a.provider.Transcribe(ctx, audio)
	if err != nil {
		return nil, err
	}
	slog.Debug("Transcribed voice request", "sessionId", sessionID, "text", userText)

	call, err := a.provider.SelectFunction(ctx, userText, a.defs)
	if err != nil {
		return nil, err
	}
	handler, ok := a.functions[call.Name]
	if !ok {
		return nil, fmt.Errorf("function %s not implemented", call.Name)
	}
	var args model.FunctionArgs
	if call.RawArguments != "" {
		if err := json.Unmarshal([]byte(call.RawArguments), &args); err != nil {
			return nil, fmt.Errorf("invalid arguments for %s: %w", call.Name, err)
		}
	}
	slog.Debug("Selected function", "sessionId", sessionID, "function", call.Name)

	result, err := handler(ctx, args)
	if err != nil {
		return nil, err
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}

	reply, err := a.provider.Respond(ctx, userText, call, resultJSON)
	if err != nil {
		return nil, err
	}
	speech, err := a.provider.Synthesize(ctx, reply)
	if err != nil {
		return nil, err
	}

	sessionCtx := model.SessionContext{
		LastFunction:  call.Name,
		LastArguments: &args,
		LastResult:    result,
	}
	if a.recorder != nil {
		if err := a.recorder.RecordExchange(ctx, sessionID, userText, reply, &sessionCtx); err != nil {
			slog.Warn("Failed to record voice exchange", "sessionId", sessionID, "error", err)
		}
	}

	return &VoiceResponse{
		Text:  reply,
		Audio: base64.StdEncoding.EncodeToString(speech),
		Context: VoiceContext{
			SessionID:      sessionID,
			SessionContext: sessionCtx,
		},
	}, nil
}

// NewAssistant builds the pipeline. recorder may be nil to skip recording.
func NewAssistant(provider Provider, source FinancialSource, recorder Recorder) *Assistant {
	return &Assistant{
		provider:  provider,
		functions: FunctionHandlers(source),
		defs:      FunctionDefinitions(),
		recorder:  recorder,
	}
}
