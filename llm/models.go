package llm

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage represents a chat message with role and content.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SystemMessage creates a system message.
func SystemMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleSystem, Content: content}
}

// UserMessage creates a user message.
func UserMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: content}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: content}
}

// LLMResponse represents a response from an LLM provider.
type LLMResponse struct {
	Content string
	Usage   *TokenUsage // nil when the provider did not report usage
}

// TokenUsage contains token usage statistics.
// PromptTokens includes CachedTokens.
type TokenUsage struct {
	PromptTokens     uint32 `json:"prompt_tokens"`
	CachedTokens     uint32 `json:"cached_tokens"`
	CompletionTokens uint32 `json:"completion_tokens"`
	TotalTokens      uint32 `json:"total_tokens"`
}

// UncachedPromptTokens returns the prompt tokens billed at the full input rate.
func (u TokenUsage) UncachedPromptTokens() uint32 {
	if u.CachedTokens > u.PromptTokens {
		return 0
	}
	return u.PromptTokens - u.CachedTokens
}

// ResponseFormatType defines the type of response format.
type ResponseFormatType string

// ResponseFormatJSONObject asks for a single JSON object. A nil format means
// free text.
const ResponseFormatJSONObject ResponseFormatType = "json_object"

// ResponseFormat specifies how the LLM should format its response.
type ResponseFormat struct {
	Type ResponseFormatType `json:"type"`
}

// NewJSONObjectFormat creates a JSON object response format.
func NewJSONObjectFormat() *ResponseFormat {
	return &ResponseFormat{Type: ResponseFormatJSONObject}
}

func wantsJSON(format *ResponseFormat) bool {
	return format != nil && format.Type == ResponseFormatJSONObject
}
