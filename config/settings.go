// Package config provides application settings loaded from environment
// variables and provider definitions loaded from YAML files.
//
// Settings are created via New() which handles:
// - Environment variable parsing with validation
// - Default value application
// - Provider-specific configuration lookup

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/richinex/reasonloop/command"
	"github.com/richinex/reasonloop/llm"
)

// Settings holds all application configuration.
type Settings struct {
	LLM     LLMConfig
	Session SessionConfig
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Provider    string
	Model       string
	MaxTokens   uint32
	Temperature float64
}

// SessionConfig holds reasoning session defaults.
type SessionConfig struct {
	MaxSteps          int
	ReasoningLanguage string
	// CallTimeout bounds a single provider call. Zero means no bound.
	CallTimeout time.Duration
}

// Supported providers and the variable that overrides their default model.
var providers = map[string]string{
	"openai":    "OPENAI_MODEL",
	"anthropic": "ANTHROPIC_MODEL",
	"deepseek":  "DEEPSEEK_MODEL",
	"gemini":    "GEMINI_MODEL",
}

// Provider aliases map to canonical names.
var providerAliases = map[string]string{
	"claude": "anthropic",
	"google": "gemini",
	"gpt":    "openai",
}

// New creates settings for the specified provider, loading values from environment variables.
// Returns an error if the provider is unknown or environment variables contain invalid values.
func New(provider string) (Settings, error) {
	provider = normalizeProvider(provider)

	model, err := ModelFor(provider)
	if err != nil {
		return Settings{}, err
	}

	maxTokens, err := getEnvUint32("LLM_MAX_TOKENS", 4096)
	if err != nil {
		return Settings{}, err
	}

	temperature, err := getEnvFloat64("LLM_TEMPERATURE", 0.7)
	if err != nil {
		return Settings{}, err
	}

	sessionCfg, err := SessionFromEnv()
	if err != nil {
		return Settings{}, err
	}

	return Settings{
		LLM: LLMConfig{
			Provider:    provider,
			Model:       model,
			MaxTokens:   maxTokens,
			Temperature: temperature,
		},
		Session: sessionCfg,
	}, nil
}

// SessionFromEnv loads the session defaults on their own, for providers
// configured from files.
func SessionFromEnv() (SessionConfig, error) {
	maxSteps, err := getEnvInt("SESSION_MAX_STEPS", command.DefaultMaxSteps)
	if err != nil {
		return SessionConfig{}, err
	}
	if maxSteps <= 0 {
		return SessionConfig{}, fmt.Errorf("invalid value for SESSION_MAX_STEPS: %d must be positive", maxSteps)
	}

	callTimeout, err := getEnvDuration("SESSION_CALL_TIMEOUT", 0)
	if err != nil {
		return SessionConfig{}, err
	}

	language := os.Getenv("SESSION_LANGUAGE")
	if language == "" {
		language = command.DefaultLanguage
	}

	return SessionConfig{
		MaxSteps:          maxSteps,
		ReasoningLanguage: language,
		CallTimeout:       callTimeout,
	}, nil
}

// MustNew creates settings for the specified provider.
// Panics if the provider is unknown or environment variables are invalid.
// Use this only when configuration errors should be fatal.
func MustNew(provider string) Settings {
	settings, err := New(provider)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

// normalizeProvider converts provider aliases to canonical names.
func normalizeProvider(provider string) string {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if canonical, ok := providerAliases[provider]; ok {
		return canonical
	}
	return provider
}

func providerType(provider string) (llm.ProviderType, error) {
	if _, ok := providers[provider]; !ok {
		return 0, fmt.Errorf("unknown provider: %q", provider)
	}
	return llm.ParseProviderType(provider)
}

// APIKeyFor returns the API key for a provider from environment variables.
func APIKeyFor(provider string) (string, error) {
	pt, err := providerType(normalizeProvider(provider))
	if err != nil {
		return "", err
	}

	key := os.Getenv(pt.EnvVar())
	if key == "" {
		return "", fmt.Errorf("%s environment variable not set", pt.EnvVar())
	}
	return key, nil
}

// ModelFor returns the model for a provider, checking environment first.
func ModelFor(provider string) (string, error) {
	provider = normalizeProvider(provider)
	pt, err := providerType(provider)
	if err != nil {
		return "", err
	}

	if val := os.Getenv(providers[provider]); val != "" {
		return val, nil
	}
	return pt.DefaultModel(), nil
}

// BuildProvider creates the provider described by the settings, reading its
// API key from the environment.
func (s Settings) BuildProvider() (llm.Provider, error) {
	pt, err := providerType(s.LLM.Provider)
	if err != nil {
		return nil, err
	}
	return llm.NewProviderBuilder(pt).
		Model(s.LLM.Model).
		MaxTokens(s.LLM.MaxTokens).
		Temperature(float32(s.LLM.Temperature)).
		FromEnv()
}

// SupportedProviders returns the list of supported provider names.
func SupportedProviders() []string {
	result := make([]string, 0, len(providers))
	for name := range providers {
		result = append(result, name)
	}
	return result
}

// getEnv parses key with parse, or returns def when key is unset.
func getEnv[T any](key string, def T, parse func(string) (T, error)) (T, error) {
	val := os.Getenv(key)
	if val == "" {
		return def, nil
	}
	v, err := parse(val)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return v, nil
}

func getEnvInt(key string, def int) (int, error) {
	return getEnv(key, def, strconv.Atoi)
}

func getEnvUint32(key string, def uint32) (uint32, error) {
	return getEnv(key, def, func(s string) (uint32, error) {
		n, err := strconv.ParseUint(s, 10, 32)
		return uint32(n), err
	})
}

func getEnvFloat64(key string, def float64) (float64, error) {
	return getEnv(key, def, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	return getEnv(key, def, func(s string) (time.Duration, error) {
		d, err := time.ParseDuration(s)
		if err == nil && d < 0 {
			return 0, errors.New("must not be negative")
		}
		return d, err
	})
}
