// Package model provides domain types shared across packages.
package model

import "fmt"

// Mode selects how the model is asked to reason on the next step.
type Mode string

const (
	ModeExploreOptimal  Mode = "EXPLORE_OPTIMAL"
	ModeGoSlightlyWrong Mode = "GO_SLIGHTLY_WRONG"
	ModeGoVeryWrong     Mode = "GO_VERY_WRONG"
)

// Modes lists every mode in cycle order.
var Modes = []Mode{ModeExploreOptimal, ModeGoSlightlyWrong, ModeGoVeryWrong}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeExploreOptimal, ModeGoSlightlyWrong, ModeGoVeryWrong:
		return true
	default:
		return false
	}
}

// ParseMode parses a mode name (case-sensitive).
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown mode: %q", s)
	}
	return m, nil
}

// PathQuality is the model's private judgement of the path it took.
type PathQuality string

const (
	PathOptimal    PathQuality = "OPTIMAL"
	PathSuboptimal PathQuality = "SUBOPTIMAL"
	PathFlawed     PathQuality = "FLAWED"
)

// SolutionType describes how much of an answer a step carries.
type SolutionType string

const (
	SolutionNone    SolutionType = "NONE"
	SolutionPartial SolutionType = "PARTIAL"
	SolutionFinal   SolutionType = "FINAL"
)

// ExplorationMode reports whether a step deliberately diverged.
type ExplorationMode struct {
	Active             bool   `json:"active"`
	DivergenceReason   string `json:"divergence_reason"`
	OptimalAlternative string `json:"optimal_alternative"`
}

// HiddenMetadata is the model's self-assessment, not shown to the operator by default.
type HiddenMetadata struct {
	TrueConfidence int         `json:"true_confidence"`
	PathQuality    PathQuality `json:"path_quality"`
	EmbeddedIssues []string    `json:"embedded_issues"`
}

// Solution is the (possibly partial) answer carried by a step.
type Solution struct {
	Type         SolutionType `json:"type"`
	Content      string       `json:"content"`
	Completeness int          `json:"completeness"`
}

// Step is one validated reasoning step (the step envelope).
// Steps are values; use Clone before handing one to code that may keep it.
type Step struct {
	StepID            int             `json:"step_id"`
	ConfidenceLevel   int             `json:"confidence_level"`
	ReasoningLanguage string          `json:"reasoning_language"`
	ExplorationMode   ExplorationMode `json:"exploration_mode"`
	HiddenMetadata    HiddenMetadata  `json:"hidden_metadata"`
	StepTitle         string          `json:"step_title"`
	StepText          string          `json:"step_text"`
	IsFinalResult     bool            `json:"is_final_result"`
	Solution          Solution        `json:"solution"`
}

// Clone returns a deep copy of the step.
func (s Step) Clone() Step {
	if s.HiddenMetadata.EmbeddedIssues != nil {
		issues := make([]string, len(s.HiddenMetadata.EmbeddedIssues))
		copy(issues, s.HiddenMetadata.EmbeddedIssues)
		s.HiddenMetadata.EmbeddedIssues = issues
	}
	return s
}

// DirectiveKind identifies a parsed command.
type DirectiveKind string

const (
	DirectiveContinue          DirectiveKind = "CONTINUE"
	DirectiveExploreOptimal    DirectiveKind = "EXPLORE_OPTIMAL"
	DirectiveGoSlightlyWrong   DirectiveKind = "GO_SLIGHTLY_WRONG"
	DirectiveGoVeryWrong       DirectiveKind = "GO_VERY_WRONG"
	DirectiveReasoningLanguage DirectiveKind = "REASONING_LANGUAGE"
)

// Directive is a parsed instruction for the next turn.
type Directive struct {
	Kind     DirectiveKind `json:"kind"`
	Language string        `json:"language,omitempty"` // REASONING_LANGUAGE only
}

// Continue is the no-op directive.
func Continue() Directive {
	return Directive{Kind: DirectiveContinue}
}

// SwitchMode returns the directive that selects mode m.
func SwitchMode(m Mode) Directive {
	return Directive{Kind: DirectiveKind(m)}
}

// SetLanguage returns a REASONING_LANGUAGE directive.
func SetLanguage(lang string) Directive {
	return Directive{Kind: DirectiveReasoningLanguage, Language: lang}
}

// Mode returns the mode selected by the directive, if it selects one.
func (d Directive) Mode() (Mode, bool) {
	m := Mode(d.Kind)
	return m, m.Valid()
}

// String renders the directive as command text.
func (d Directive) String() string {
	if d.Kind == DirectiveReasoningLanguage {
		return string(d.Kind) + " " + d.Language
	}
	return string(d.Kind)
}

// Pricing holds rates in USD per million tokens.
type Pricing struct {
	InputTokens  float64 `json:"input_tokens" yaml:"input_tokens"`
	CachedTokens float64 `json:"cached_tokens" yaml:"cached_tokens"`
	OutputTokens float64 `json:"output_tokens" yaml:"output_tokens"`
}

// Usage is the token consumption of a single provider call.
// InputTokens excludes cached prompt tokens.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	CachedTokens int64 `json:"cached_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}


// Totals are cumulative token counts and costs for a session.
type Totals struct {
	InputTokens  int64   `json:"input_tokens"`
	CachedTokens int64   `json:"cached_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	InputCost    float64 `json:"input_cost"`
	CachedCost   float64 `json:"cached_cost"`
	OutputCost   float64 `json:"output_cost"`
	CostUSD      float64 `json:"cost_usd"`
}
