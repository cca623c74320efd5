// Package llm provides chat-completion transports for the reasoning session.
//
// Each provider implementation hides:
// - API client initialization and authentication
// - Request/response format conversion
// - Provider-specific usage reporting, including cached prompt tokens

package llm

import (
	"context"
)

// Provider defines the interface for chat-completion providers.
type Provider interface {
	// Name returns the provider name (for logging and records).
	Name() string

	// Model returns the current model being used.
	Model() string

	// Chat sends a chat completion request.
	Chat(ctx context.Context, messages []ChatMessage) (LLMResponse, error)

	// ChatWithFormat sends a chat completion request with response format.
	ChatWithFormat(ctx context.Context, messages []ChatMessage, format *ResponseFormat) (LLMResponse, error)
}

// Options configures a provider. Zero values mean "provider default", except
// for MaxTokens and Temperature which the builder always fills in.
type Options struct {
	Name             string // overrides the provider name, e.g. for openai-compatible endpoints
	APIKey           string
	Model            string
	BaseURL          string
	MaxTokens        uint32
	Temperature      float32
	TopP             *float32
	FrequencyPenalty float32
	PresencePenalty  float32
}

func (o Options) nameOr(def string) string {
	if o.Name != "" {
		return o.Name
	}
	return def
}
