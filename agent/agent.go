// Provider-backed step generation.
//
// Information Hiding:
// - Conversation layout sent to the model
// - JSON extraction from replies
// - Token usage conversion
// - Debug call dumps

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/richinex/reasonloop/command"
	jsonutil "github.com/richinex/reasonloop/internal/json"
	"github.com/richinex/reasonloop/llm"
	"github.com/richinex/reasonloop/model"
	"github.com/richinex/reasonloop/session"
)

// Agent turns session requests into chat-completion calls.
// It is safe for concurrent use by several sessions.
type Agent struct {
	config    Config
	llmClient *llm.Client

	mu    sync.Mutex
	calls int
}

// New creates an agent with the given configuration and provider.
func New(config Config, provider llm.Provider) *Agent {
	return &Agent{
		config:    config,
		llmClient: llm.NewClient(provider),
	}
}

// Provider returns the provider the agent calls.
func (a *Agent) Provider() llm.Provider {
	return a.llmClient.Provider()
}

// Generate asks the model for step req.ExpectedStepID.
func (a *Agent) Generate(ctx context.Context, req session.Request) (map[string]any, *model.Usage, error) {
	messages, err := a.Messages(req)
	if err != nil {
		return nil, nil, err
	}

	content, usage, err := a.llmClient.ChatJSON(ctx, messages)
	a.dump(req, messages, content, usage, err)
	if err != nil {
		return nil, nil, err
	}

	payload, err := jsonutil.ExtractObject(content)
	if err != nil {
		// A reply without a JSON object is a malformed envelope, not a failed call.
		return nil, toUsage(usage), &session.ValidationError{StepID: req.ExpectedStepID, Reason: err.Error()}
	}
	return payload, toUsage(usage), nil
}

// Messages builds the conversation for req: the system prompt, the init
// block, then each accepted step followed by the command that came after it.
func (a *Agent) Messages(req session.Request) ([]llm.ChatMessage, error) {
	init := command.Init{
		Task:              req.Task,
		Mode:              req.Mode,
		ReasoningLanguage: req.ReasoningLanguage,
		MaxSteps:          req.MaxSteps,
	}
	if len(req.History) > 0 {
		init.Mode = req.History[0].Mode
		init.ReasoningLanguage = req.History[0].ReasoningLanguage
	}

	messages := make([]llm.ChatMessage, 0, 2+2*len(req.History))
	if a.config.SystemPrompt != "" {
		messages = append(messages, llm.SystemMessage(a.config.SystemPrompt))
	}
	messages = append(messages, llm.UserMessage(command.FormatInit(init)))

	for i, entry := range req.History {
		data, err := json.Marshal(entry.Step)
		if err != nil {
			return nil, fmt.Errorf("failed to encode step %d: %w", entry.Step.StepID, err)
		}
		messages = append(messages, llm.AssistantMessage(string(data)))

		next := req.Directive
		if i+1 < len(req.History) {
			next = req.History[i+1].Directive
		}
		messages = append(messages, llm.UserMessage(next.String()))
	}
	return messages, nil
}

func toUsage(u *llm.TokenUsage) *model.Usage {
	if u == nil {
		return nil
	}
	return &model.Usage{
		InputTokens:  int64(u.UncachedPromptTokens()),
		CachedTokens: int64(u.CachedTokens),
		OutputTokens: int64(u.CompletionTokens),
	}
}

type debugCall struct {
	CallNumber int               `json:"call_number"`
	Timestamp  time.Time         `json:"timestamp"`
	SessionID  string            `json:"session_id"`
	StepID     int               `json:"step_id"`
	Attempt    int               `json:"attempt"`
	Provider   string            `json:"provider"`
	Model      string            `json:"model"`
	Messages   []llm.ChatMessage `json:"messages"`
	Content    string            `json:"content,omitempty"`
	Usage      *llm.TokenUsage   `json:"usage,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// dump writes a debug record of one call. Failures to write are ignored.
func (a *Agent) dump(req session.Request, messages []llm.ChatMessage, content string, usage *llm.TokenUsage, callErr error) {
	if a.config.DebugDir == "" {
		return
	}

	a.mu.Lock()
	a.calls++
	n := a.calls
	a.mu.Unlock()

	provider := a.llmClient.Provider()
	rec := debugCall{
		CallNumber: n,
		Timestamp:  time.Now().UTC(),
		SessionID:  req.SessionID,
		StepID:     req.ExpectedStepID,
		Attempt:    req.Attempt,
		Provider:   provider.Name(),
		Model:      provider.Model(),
		Messages:   messages,
		Content:    content,
		Usage:      usage,
	}
	if callErr != nil {
		rec.Error = callErr.Error()
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(a.config.DebugDir, 0o755); err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(a.config.DebugDir, fmt.Sprintf("call_%03d.json", n)), data, 0o644)
}

// Verify Agent implements session.Port
var _ session.Port = (*Agent)(nil)
