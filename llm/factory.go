// LLM Provider Factory - Ergonomic builder-first API for creating LLM providers.
//
// Quick Start:
//
//	// Simplest: use defaults, read API key from environment
//	deepseek, err := llm.ProviderDeepSeek.FromEnv()
//
//	// With custom model and sampling
//	claude, err := llm.ProviderAnthropic.
//	    Model(llm.ModelAnthropicClaudeSonnet4).
//	    MaxTokens(8192).
//	    Temperature(0.3).
//	    FromEnv()
//
//	// Any OpenAI-compatible endpoint
//	local, err := llm.ProviderCompatible.
//	    Model("llama3.1").
//	    BaseURL("http://localhost:11434/v1").
//	    APIKey("ollama")

package llm

import (
	"fmt"
	"os"
	"slices"
	"strings"
)

// ProviderType represents supported LLM providers.
type ProviderType int

const (
	ProviderOpenAI ProviderType = iota
	ProviderAnthropic
	ProviderDeepSeek
	ProviderGemini
	// ProviderCompatible is any endpoint speaking the OpenAI protocol.
	ProviderCompatible
)

type providerSpec struct {
	name         string
	aliases      []string
	envVar       string
	defaultModel string // empty: the model must be configured
}

var providerSpecs = map[ProviderType]providerSpec{
	ProviderOpenAI:     {"openai", []string{"gpt"}, "OPENAI_API_KEY", ModelOpenAIGPT52},
	ProviderAnthropic:  {"anthropic", []string{"claude"}, "ANTHROPIC_API_KEY", ModelAnthropicClaudeOpus45},
	ProviderDeepSeek:   {"deepseek", nil, "DEEPSEEK_API_KEY", ModelDeepSeekChat},
	ProviderGemini:     {"gemini", []string{"google"}, "GEMINI_API_KEY", ModelGeminiFlash3},
	ProviderCompatible: {"openai-compatible", []string{"compatible"}, "LLM_API_KEY", ""},
}

func (p ProviderType) String() string {
	if spec, ok := providerSpecs[p]; ok {
		return spec.name
	}
	return "unknown"
}

// EnvVar is the environment variable holding the provider's API key.
func (p ProviderType) EnvVar() string {
	return providerSpecs[p].envVar
}

// DefaultModel is used when no model is configured.
func (p ProviderType) DefaultModel() string {
	return providerSpecs[p].defaultModel
}

// ParseProviderType parses a provider name or alias (case-insensitive).
func ParseProviderType(s string) (ProviderType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for pt, spec := range providerSpecs {
		if name == spec.name || slices.Contains(spec.aliases, name) {
			return pt, nil
		}
	}
	return 0, fmt.Errorf("unknown provider: %s", s)
}

// FromEnv creates a provider with defaults, reading API key from environment.
func (p ProviderType) FromEnv() (Provider, error) {
	return NewProviderBuilder(p).FromEnv()
}

// Model starts configuring this provider with a specific model.
func (p ProviderType) Model(model string) *ProviderBuilder {
	return NewProviderBuilder(p).Model(model)
}

// APIKey creates a provider with an explicit API key (uses defaults for everything else).
func (p ProviderType) APIKey(key string) (Provider, error) {
	return NewProviderBuilder(p).APIKey(key)
}

const (
	defaultMaxTokens   = 4096
	defaultTemperature = 0.7
)

// ProviderBuilder is a builder for configuring LLM providers.
type ProviderBuilder struct {
	providerType ProviderType
	opts         Options
	temperature  *float32
}

// NewProviderBuilder creates a new builder for the given provider.
func NewProviderBuilder(providerType ProviderType) *ProviderBuilder {
	return &ProviderBuilder{
		providerType: providerType,
	}
}

// Model sets the model to use.
func (b *ProviderBuilder) Model(model string) *ProviderBuilder {
	b.opts.Model = model
	return b
}

// Name overrides the provider name reported in session records.
func (b *ProviderBuilder) Name(name string) *ProviderBuilder {
	b.opts.Name = name
	return b
}

// BaseURL points the provider at a different endpoint.
func (b *ProviderBuilder) BaseURL(url string) *ProviderBuilder {
	b.opts.BaseURL = url
	return b
}

// MaxTokens sets maximum tokens for responses.
func (b *ProviderBuilder) MaxTokens(tokens uint32) *ProviderBuilder {
	b.opts.MaxTokens = tokens
	return b
}

// Temperature sets temperature (0.0 = deterministic, 1.0 = creative).
func (b *ProviderBuilder) Temperature(temp float32) *ProviderBuilder {
	b.temperature = &temp
	return b
}

// TopP sets nucleus sampling.
func (b *ProviderBuilder) TopP(p float32) *ProviderBuilder {
	b.opts.TopP = &p
	return b
}

// Penalties sets frequency and presence penalties (OpenAI protocol only).
func (b *ProviderBuilder) Penalties(frequency, presence float32) *ProviderBuilder {
	b.opts.FrequencyPenalty = frequency
	b.opts.PresencePenalty = presence
	return b
}

// FromEnv builds the provider with the API key from its environment variable.
func (b *ProviderBuilder) FromEnv() (Provider, error) {
	envVar := b.providerType.EnvVar()
	if key := os.Getenv(envVar); key != "" {
		return b.build(key)
	}
	return nil, fmt.Errorf("%s: %s environment variable not set", b.providerType, envVar)
}

// APIKey builds the provider with an explicit API key.
func (b *ProviderBuilder) APIKey(key string) (Provider, error) {
	return b.build(key)
}

// Options returns the options the builder would build with.
func (b *ProviderBuilder) Options() Options {
	opts := b.opts
	if opts.Model == "" {
		opts.Model = b.providerType.DefaultModel()
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	opts.Temperature = defaultTemperature
	if b.temperature != nil {
		opts.Temperature = *b.temperature
	}
	return opts
}

func (b *ProviderBuilder) build(apiKey string) (Provider, error) {
	opts := b.Options()
	opts.APIKey = apiKey
	if opts.Model == "" {
		return nil, fmt.Errorf("%s: model is required", b.providerType)
	}

	switch b.providerType {
	case ProviderOpenAI:
		return NewOpenAIProvider(opts), nil
	case ProviderAnthropic:
		return NewAnthropicProvider(opts), nil
	case ProviderDeepSeek:
		return NewDeepSeekProvider(opts), nil
	case ProviderGemini:
		return NewGeminiProvider(opts), nil
	case ProviderCompatible:
		return NewCompatibleProvider(opts)
	default:
		return nil, fmt.Errorf("unknown provider type: %v", b.providerType)
	}
}

// Default model identifiers.
const (
	ModelOpenAIGPT52            = "gpt-5.2"
	ModelAnthropicClaudeOpus45  = "claude-opus-4-5-20251101"
	ModelAnthropicClaudeSonnet4 = "claude-sonnet-4-20250514"
	ModelDeepSeekChat           = "deepseek-chat"
	ModelGeminiFlash3           = "gemini-3-flash"
)
