// Package command parses operator input into directives.
//
// Two grammars live here:
// - the per-turn directive grammar (Parse)
// - the session initialization block (ParseInit, ReadInit, FormatInit)

package command

import (
	"fmt"
	"strings"

	"github.com/richinex/reasonloop/model"
)

const languagePrefix = "REASONING_LANGUAGE "

// ParseError reports command text that is not a directive.
// Callers may treat it as a clarification request instead of failing.
type ParseError struct {
	Input string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unrecognized command: %q", e.Input)
}

// Parse converts one line of operator input into a directive.
// Literals must match exactly, including case and surrounding whitespace;
// only the language text of REASONING_LANGUAGE is trimmed. Blank input
// means CONTINUE.
func Parse(raw string) (model.Directive, error) {
	if strings.TrimSpace(raw) == "" {
		return model.Continue(), nil
	}

	switch model.DirectiveKind(raw) {
	case model.DirectiveContinue,
		model.DirectiveExploreOptimal,
		model.DirectiveGoSlightlyWrong,
		model.DirectiveGoVeryWrong:
		return model.Directive{Kind: model.DirectiveKind(raw)}, nil
	}

	if lang, ok := strings.CutPrefix(raw, languagePrefix); ok {
		if lang = strings.TrimSpace(lang); lang != "" {
			return model.SetLanguage(lang), nil
		}
	}

	return model.Directive{}, &ParseError{Input: raw}
}
