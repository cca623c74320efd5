package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/richinex/reasonloop/model"
)

// envelope mirrors model.Step with pointer fields so that a missing field
// can be told apart from a zero value.
type envelope struct {
	StepID            *int                 `json:"step_id" validate:"required"`
	ConfidenceLevel   *int                 `json:"confidence_level" validate:"required,min=1,max=5"`
	ReasoningLanguage *string              `json:"reasoning_language" validate:"required"`
	ExplorationMode   *explorationEnvelope `json:"exploration_mode" validate:"required"`
	HiddenMetadata    *hiddenEnvelope      `json:"hidden_metadata" validate:"required"`
	StepTitle         *string              `json:"step_title" validate:"required,min=1"`
	StepText          *string              `json:"step_text" validate:"required,min=1"`
	IsFinalResult     *bool                `json:"is_final_result" validate:"required"`
	Solution          *solutionEnvelope    `json:"solution" validate:"required"`
}

type explorationEnvelope struct {
	Active             *bool   `json:"active" validate:"required"`
	DivergenceReason   *string `json:"divergence_reason" validate:"required"`
	OptimalAlternative *string `json:"optimal_alternative" validate:"required"`
}

type hiddenEnvelope struct {
	TrueConfidence *int     `json:"true_confidence" validate:"required,min=1,max=5"`
	PathQuality    *string  `json:"path_quality" validate:"required,oneof=OPTIMAL SUBOPTIMAL FLAWED"`
	EmbeddedIssues []string `json:"embedded_issues" validate:"required"`
}

type solutionEnvelope struct {
	Type         *string `json:"type" validate:"required,oneof=NONE PARTIAL FINAL"`
	Content      *string `json:"content" validate:"required"`
	Completeness *int    `json:"completeness" validate:"required,min=0,max=100"`
}

// envelopeValidate is safe for concurrent use and caches struct metadata.
var envelopeValidate = newEnvelopeValidator()

func newEnvelopeValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks a raw provider payload against the step envelope contract
// and returns the step it describes. It has no side effects.
func Validate(raw map[string]any, expected int) (model.Step, error) {
	if raw == nil {
		return model.Step{}, &ValidationError{StepID: expected, Reason: "payload is empty"}
	}

	var env envelope
	if err := decode(raw, &env); err != nil {
		return model.Step{}, typeError(expected, err)
	}

	if err := envelopeValidate.Struct(&env); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return model.Step{}, fieldError(expected, verrs[0])
		}
		return model.Step{}, &ValidationError{StepID: expected, Reason: err.Error()}
	}

	step := env.toStep()
	if err := checkStep(step, expected); err != nil {
		return model.Step{}, err
	}
	return step, nil
}

func decode(raw map[string]any, env *envelope) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, env)
}

func typeError(expected int, err error) *ValidationError {
	var terr *json.UnmarshalTypeError
	if errors.As(err, &terr) {
		return &ValidationError{
			StepID: expected,
			Field:  terr.Field,
			Reason: fmt.Sprintf("expected %s, got %s", terr.Type, terr.Value),
		}
	}
	return &ValidationError{StepID: expected, Reason: err.Error()}
}

func fieldError(expected int, fe validator.FieldError) *ValidationError {
	// Namespace is "envelope.hidden_metadata.true_confidence".
	_, field, _ := strings.Cut(fe.Namespace(), ".")

	var reason string
	switch fe.Tag() {
	case "required":
		reason = "missing required field"
	case "min":
		if fe.Kind() == reflect.String {
			reason = "must not be empty"
		} else {
			reason = fmt.Sprintf("%v is below minimum %s", fe.Value(), fe.Param())
		}
	case "max":
		reason = fmt.Sprintf("%v is above maximum %s", fe.Value(), fe.Param())
	case "oneof":
		reason = fmt.Sprintf("%v is not one of [%s]", fe.Value(), fe.Param())
	default:
		reason = fmt.Sprintf("failed %s check", fe.Tag())
	}
	return &ValidationError{StepID: expected, Field: field, Reason: reason}
}

func checkStep(step model.Step, expected int) error {
	if step.StepID != expected {
		return &ValidationError{
			StepID: expected,
			Field:  "step_id",
			Reason: fmt.Sprintf("expected %d, got %d", expected, step.StepID),
		}
	}
	if step.IsFinalResult {
		if step.Solution.Type != model.SolutionFinal {
			return &ValidationError{
				StepID: expected,
				Field:  "solution.type",
				Reason: fmt.Sprintf("final result requires FINAL solution, got %s", step.Solution.Type),
			}
		}
		if step.Solution.Completeness != 100 {
			return &ValidationError{
				StepID: expected,
				Field:  "solution.completeness",
				Reason: fmt.Sprintf("final result requires completeness 100, got %d", step.Solution.Completeness),
			}
		}
	}
	if step.Solution.Type == model.SolutionNone && step.Solution.Content != "" {
		return &ValidationError{
			StepID: expected,
			Field:  "solution.content",
			Reason: "NONE solution must have empty content",
		}
	}
	return nil
}

func (e *envelope) toStep() model.Step {
	issues := make([]string, len(e.HiddenMetadata.EmbeddedIssues))
	copy(issues, e.HiddenMetadata.EmbeddedIssues)

	return model.Step{
		StepID:            *e.StepID,
		ConfidenceLevel:   *e.ConfidenceLevel,
		ReasoningLanguage: *e.ReasoningLanguage,
		ExplorationMode: model.ExplorationMode{
			Active:             *e.ExplorationMode.Active,
			DivergenceReason:   *e.ExplorationMode.DivergenceReason,
			OptimalAlternative: *e.ExplorationMode.OptimalAlternative,
		},
		HiddenMetadata: model.HiddenMetadata{
			TrueConfidence: *e.HiddenMetadata.TrueConfidence,
			PathQuality:    model.PathQuality(*e.HiddenMetadata.PathQuality),
			EmbeddedIssues: issues,
		},
		StepTitle:     *e.StepTitle,
		StepText:      *e.StepText,
		IsFinalResult: *e.IsFinalResult,
		Solution: model.Solution{
			Type:         model.SolutionType(*e.Solution.Type),
			Content:      *e.Solution.Content,
			Completeness: *e.Solution.Completeness,
		},
	}
}

// StepPayload renders a step back into the untyped form Validate accepts.
func StepPayload(step model.Step) (map[string]any, error) {
	data, err := json.Marshal(step)
	if err != nil {
		return nil, fmt.Errorf("failed to encode step %d: %w", step.StepID, err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode step %d: %w", step.StepID, err)
	}
	return raw, nil
}
