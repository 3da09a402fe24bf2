package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/khanghh/kbooks/internal/config"
	"github.com/sashabaranov/go-openai"
)

const (
	fallbackReply    = "I'm not sure how to help with that."
	emptyReply       = "I couldn't generate a response."
	audioFileName    = "audio.webm"
	noChoicesMessage = "provider returned no choices"
)

type OpenAIProvider struct {
	client *openai.Client
	cfg    config.AIConfig
}

func (p *OpenAIProvider) Transcribe(ctx context.Context, audio []byte) (string, error) {
	resp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    p.cfg.SpeechToTextModel,
		FilePath: audioFileName,
		Reader:   bytes.NewReader(audio),
	})
	if err != nil {
		return "", fmt.Errorf("failed to transcribe audio: %w", err)
	}
	return resp.Text, nil
}

func (p *OpenAIProvider) SelectFunction(ctx context.Context, text string, defs []FunctionDefinition) (*FunctionCall, error) {
	tools := make([]openai.Tool, 0, len(defs))
	for _, def := range defs {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		})
	}
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.cfg.TextModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.cfg.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Tools:      tools,
		ToolChoice: "auto",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to process user message: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("failed to process user message: %s", noChoicesMessage)
	}

	message := resp.Choices[0].Message
	if len(message.ToolCalls) > 0 {
		toolCall := message.ToolCalls[0]
		return &FunctionCall{
			ID:           toolCall.ID,
			Name:         toolCall.Function.Name,
			RawArguments: toolCall.Function.Arguments,
		}, nil
	}

	reply := message.Content
	if reply == "" {
		reply = fallbackReply
	}
	args, err := json.Marshal(map[string]string{"text": reply})
	if err != nil {
		return nil, err
	}
	return &FunctionCall{Name: FuncGenerateResponse, RawArguments: string(args)}, nil
}

func (p *OpenAIProvider) Respond(ctx context.Context, text string, call *FunctionCall, result []byte) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: p.cfg.SystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: text},
	}
	if call.ID != "" {
		messages = append(messages,
			openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{{
					ID:   call.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      call.Name,
						Arguments: call.RawArguments,
					},
				}},
			},
			openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    string(result),
				ToolCallID: call.ID,
			},
		)
	} else {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: fmt.Sprintf("Result of %s: %s", call.Name, result),
		})
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    p.cfg.TextModel,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate response: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return emptyReply, nil
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) Synthesize(ctx context.Context, text string) ([]byte, error) {
	resp, err := p.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model: openai.SpeechModel(p.cfg.TextToSpeechModel),
		Input: text,
		Voice: openai.SpeechVoice(p.cfg.Voice),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to convert text to speech: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to convert text to speech: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("failed to convert text to speech: %w", errors.New("empty audio"))
	}
	return audio, nil
}

func NewOpenAIProvider(cfg config.AIConfig, httpClient *http.Client) *OpenAIProvider {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if httpClient != nil {
		clientConfig.HTTPClient = httpClient
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		cfg:    cfg,
	}
}
