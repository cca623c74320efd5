// DeepSeek Provider implementation using go-openai library.
//
// Information Hiding:
// - Uses OpenAI-compatible API with a different base URL
// - Supports deepseek-chat and deepseek-reasoner models

package llm

const deepseekBaseURL = "https://api.deepseek.com/v1"

// NewDeepSeekProvider creates a provider for the DeepSeek API. DeepSeek speaks
// the OpenAI protocol, so the OpenAI transport is reused with its base URL.
func NewDeepSeekProvider(opts Options) *OpenAIProvider {
	if opts.BaseURL == "" {
		opts.BaseURL = deepseekBaseURL
	}
	return newOpenAIProvider(opts, opts.nameOr("deepseek"), false)
}
