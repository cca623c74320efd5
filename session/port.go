package session

import (
	"context"

	"github.com/richinex/reasonloop/model"
)

// Port produces raw step payloads. Implementations own prompt construction
// and transport; the session only validates what comes back.
type Port interface {
	// Generate returns the untyped payload for req.ExpectedStepID together
	// with the usage of the call. Usage may be nil when the provider did not
	// report it.
	Generate(ctx context.Context, req Request) (map[string]any, *model.Usage, error)
}

// PortFunc adapts a function to Port.
type PortFunc func(ctx context.Context, req Request) (map[string]any, *model.Usage, error)

// Generate calls f.
func (f PortFunc) Generate(ctx context.Context, req Request) (map[string]any, *model.Usage, error) {
	return f(ctx, req)
}

// Request is the context handed to the Port for one attempt. History holds
// deep copies; the Port may keep them.
type Request struct {
	SessionID         string
	Task              string
	Mode              model.Mode
	ReasoningLanguage string
	MaxSteps          int
	ExpectedStepID    int
	Directive         model.Directive
	History           []Entry
	Attempt           int
}

// Entry is one committed turn: the accepted step with the directive and
// session configuration that produced it.
type Entry struct {
	Step              model.Step      `json:"step"`
	Directive         model.Directive `json:"directive"`
	Mode              model.Mode      `json:"mode"`
	ReasoningLanguage string          `json:"reasoning_language"`
	Usage             *model.Usage    `json:"usage,omitempty"`
	TurnCost          float64         `json:"turn_cost"`
}

func (e Entry) clone() Entry {
	e.Step = e.Step.Clone()
	if e.Usage != nil {
		u := *e.Usage
		e.Usage = &u
	}
	return e
}
