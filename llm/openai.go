// OpenAI Provider implementation using go-openai library.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for the Chat Completions API
// - Cached prompt token reporting via prompt_tokens_details

package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements the Provider interface for OpenAI and any
// endpoint that speaks the OpenAI chat completions protocol.
type OpenAIProvider struct {
	client *openai.Client
	name   string
	opts   Options

	// completionTokens sends max_completion_tokens instead of max_tokens.
	completionTokens bool
}

// NewOpenAIProvider creates a provider for api.openai.com, or for
// opts.BaseURL when set.
func NewOpenAIProvider(opts Options) *OpenAIProvider {
	return newOpenAIProvider(opts, opts.nameOr("openai"), opts.BaseURL == "")
}

// NewCompatibleProvider creates a provider for an OpenAI-compatible endpoint.
func NewCompatibleProvider(opts Options) (*OpenAIProvider, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("openai-compatible provider %q requires a base URL", opts.Name)
	}
	return newOpenAIProvider(opts, opts.nameOr("openai-compatible"), false), nil
}

func newOpenAIProvider(opts Options, name string, completionTokens bool) *OpenAIProvider {
	config := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		config.BaseURL = opts.BaseURL
	}

	return &OpenAIProvider{
		client:           openai.NewClientWithConfig(config),
		name:             name,
		opts:             opts,
		completionTokens: completionTokens,
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return p.name
}

// Model returns the current model.
func (p *OpenAIProvider) Model() string {
	return p.opts.Model
}

// Chat sends a chat completion request.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []ChatMessage) (LLMResponse, error) {
	return p.ChatWithFormat(ctx, messages, nil)
}

// ChatWithFormat sends a chat completion request with optional response format.
func (p *OpenAIProvider) ChatWithFormat(ctx context.Context, messages []ChatMessage, format *ResponseFormat) (LLMResponse, error) {
	req := openai.ChatCompletionRequest{
		Model:            p.opts.Model,
		Messages:         convertToOpenAIMessages(messages),
		Temperature:      p.opts.Temperature,
		FrequencyPenalty: p.opts.FrequencyPenalty,
		PresencePenalty:  p.opts.PresencePenalty,
	}
	if p.completionTokens {
		req.MaxCompletionTokens = int(p.opts.MaxTokens)
	} else {
		req.MaxTokens = int(p.opts.MaxTokens)
	}
	if p.opts.TopP != nil {
		req.TopP = *p.opts.TopP
	}

	if format != nil {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatType(format.Type),
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return LLMResponse{}, fmt.Errorf("chat completion returned no choices")
	}

	return LLMResponse{
		Content: resp.Choices[0].Message.Content,
		Usage:   openAIUsage(resp.Usage),
	}, nil
}

func openAIUsage(u openai.Usage) *TokenUsage {
	if u.PromptTokens == 0 && u.CompletionTokens == 0 {
		return nil
	}
	usage := &TokenUsage{
		PromptTokens:     uint32(u.PromptTokens),
		CompletionTokens: uint32(u.CompletionTokens),
		TotalTokens:      uint32(u.TotalTokens),
	}
	if u.PromptTokensDetails != nil {
		usage.CachedTokens = uint32(u.PromptTokensDetails.CachedTokens)
	}
	return usage
}

// convertToOpenAIMessages converts our ChatMessage to openai.ChatCompletionMessage
func convertToOpenAIMessages(messages []ChatMessage) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		result[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}
	return result
}

// Verify OpenAIProvider implements Provider
var _ Provider = (*OpenAIProvider)(nil)
