package assistant

import (
	"context"

	"github.com/sashabaranov/go-openai/jsonschema"
)

type FunctionDefinition struct {
	Name        string
	Description string
	Parameters  jsonschema.Definition
}

// FunctionCall is the function picked by the provider for a user utterance.
// ID and RawArguments echo the provider's tool call and are empty for the
// generateResponse fallback.
type FunctionCall struct {
	ID           string
	Name         string
	RawArguments string
}

// Provider is the speech and language backend of the voice pipeline.
type Provider interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
	SelectFunction(ctx context.Context, text string, defs []FunctionDefinition) (*FunctionCall, error)
	Respond(ctx context.Context, text string, call *FunctionCall, result []byte) (string, error)
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
