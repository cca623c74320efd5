// Agent builder for fluent configuration.
//
// Information Hiding:
// - Builder state management
// - Default value application

package agent

import "github.com/richinex/reasonloop/llm"

// Builder provides fluent configuration for creating agents.
// Usage: agent.NewBuilder(provider).DebugDir("debug").Build()
type Builder struct {
	provider     llm.Provider
	systemPrompt string
	debugDir     string
}

// NewBuilder creates a builder for an agent backed by provider.
func NewBuilder(provider llm.Provider) *Builder {
	return &Builder{provider: provider}
}

// SystemPrompt replaces the default reasoning protocol prompt.
func (b *Builder) SystemPrompt(prompt string) *Builder {
	b.systemPrompt = prompt
	return b
}

// DebugDir enables per-call request/response dumps into dir.
func (b *Builder) DebugDir(dir string) *Builder {
	b.debugDir = dir
	return b
}

// Config returns the configuration the builder would use.
func (b *Builder) Config() Config {
	cfg := DefaultConfig()
	if b.systemPrompt != "" {
		cfg.SystemPrompt = b.systemPrompt
	}
	cfg.DebugDir = b.debugDir
	return cfg
}

// Build creates the agent.
func (b *Builder) Build() *Agent {
	return New(b.Config(), b.provider)
}
