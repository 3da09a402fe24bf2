package assistant

import (
	"context"
	"errors"
	"net/http"

	"github.com/khanghh/kbooks/internal/common"
	"github.com/khanghh/kbooks/model"
)

type Recorder interface {
	RecordExchange(ctx context.Context, sessionID, userText, reply string, sessionCtx *model.SessionContext) error
}

type storeMessageRequest struct {
	SessionID string                `json:"sessionId"`
	Message   messagePayload        `json:"message"`
	Context   *model.SessionContext `json:"context,omitempty"`
}

type messagePayload struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MemoryClient records voice exchanges in the memory service.
type MemoryClient struct {
	baseURL    string
	httpClient *http.Client
}

func (c *MemoryClient) storeMessage(ctx context.Context, req storeMessageRequest) error {
	var env envelope
	err := common.DoJSON(ctx, c.httpClient, common.JSONRequest{
		Method: http.MethodPost,
		URL:    c.baseURL + "/message",
		Body:   req,
	}, &env)
	if env.Error != "" {
		return errors.New(env.Error)
	}
	return err
}

// RecordExchange stores the user's utterance followed by the reply, the latter
// carrying the updated session context.
func (c *MemoryClient) RecordExchange(ctx context.Context, sessionID, userText, reply string, sessionCtx *model.SessionContext) error {
	err := c.storeMessage(ctx, storeMessageRequest{
		SessionID: sessionID,
		Message:   messagePayload{Role: model.RoleUser, Content: userText},
	})
	if err != nil {
		return err
	}
	return c.storeMessage(ctx, storeMessageRequest{
		SessionID: sessionID,
		Message:   messagePayload{Role: model.RoleAssistant, Content: reply},
		Context:   sessionCtx,
	})
}

func NewMemoryClient(baseURL string, httpClient *http.Client) *MemoryClient {
	return &MemoryClient{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}
