// Session initialization block.
//
//	TASK: ```<description>```
//	[MODE: EXPLORE_OPTIMAL|GO_SLIGHTLY_WRONG|GO_VERY_WRONG]
//	[REASONING_LANGUAGE: <text>]
//	[MAX_STEPS: <positive integer>]
//	<blank line>
//
// The task fence may span several lines.

package command

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/richinex/reasonloop/model"
)

// Defaults applied when the block leaves a field out.
const (
	DefaultMode     = model.ModeExploreOptimal
	DefaultLanguage = "English"
	DefaultMaxSteps = 10
)

const fence = "```"

// Init is a parsed initialization block.
type Init struct {
	Task              string
	Mode              model.Mode
	ReasoningLanguage string
	MaxSteps          int
}

// InitError reports a malformed initialization block.
type InitError struct {
	Line   int // 1-based, 0 when not tied to a line
	Reason string
}

func (e *InitError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("init line %d: %s", e.Line, e.Reason)
	}
	return "init: " + e.Reason
}

// ParseInit parses a complete initialization block.
// Trailing blank lines are ignored; the block may not contain any other text.
func ParseInit(text string) (Init, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return parseLines(lines)
}

// ReadInit consumes an initialization block from a line scanner, stopping
// after the blank line that terminates it. The scanner is left positioned at
// the start of the directive stream.
func ReadInit(sc *bufio.Scanner) (Init, error) {
	var lines []string
	inTask := false
	for sc.Scan() {
		line := sc.Text()
		if !inTask && strings.TrimSpace(line) == "" {
			return parseLines(lines)
		}
		lines = append(lines, line)
		if inTask {
			inTask = !strings.Contains(line, fence)
		} else if rest, ok := strings.CutPrefix(strings.TrimSpace(line), "TASK:"); ok {
			rest = strings.TrimSpace(rest)
			inTask = strings.HasPrefix(rest, fence) && !strings.Contains(rest[len(fence):], fence)
		}
	}
	if err := sc.Err(); err != nil {
		return Init{}, fmt.Errorf("failed to read init block: %w", err)
	}
	return Init{}, &InitError{Reason: "init block must be followed by a blank line"}
}

func parseLines(lines []string) (Init, error) {
	init := Init{
		Mode:              DefaultMode,
		ReasoningLanguage: DefaultLanguage,
		MaxSteps:          DefaultMaxSteps,
	}
	seen := make(map[string]bool)

	for i := 0; i < len(lines); i++ {
		lineNo := i + 1
		line := strings.TrimSpace(lines[i])
		if line == "" {
			return Init{}, &InitError{Line: lineNo, Reason: "unexpected blank line inside init block"}
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return Init{}, &InitError{Line: lineNo, Reason: fmt.Sprintf("expected KEY: value, got %q", line)}
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if seen[key] {
			return Init{}, &InitError{Line: lineNo, Reason: fmt.Sprintf("duplicate %s", key)}
		}
		seen[key] = true

		switch key {
		case "TASK":
			task, consumed, err := readTask(value, lines[i+1:])
			if err != nil {
				return Init{}, &InitError{Line: lineNo, Reason: err.Error()}
			}
			init.Task = task
			i += consumed
		case "MODE":
			mode, err := model.ParseMode(value)
			if err != nil {
				return Init{}, &InitError{Line: lineNo, Reason: err.Error()}
			}
			init.Mode = mode
		case "REASONING_LANGUAGE":
			if value == "" {
				return Init{}, &InitError{Line: lineNo, Reason: "REASONING_LANGUAGE must not be empty"}
			}
			init.ReasoningLanguage = value
		case "MAX_STEPS":
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				return Init{}, &InitError{Line: lineNo, Reason: fmt.Sprintf("MAX_STEPS must be a positive integer, got %q", value)}
			}
			init.MaxSteps = n
		default:
			return Init{}, &InitError{Line: lineNo, Reason: fmt.Sprintf("unknown key %q", key)}
		}
	}

	if !seen["TASK"] {
		return Init{}, &InitError{Reason: "missing TASK"}
	}
	return init, nil
}

// readTask extracts a fenced task starting at first, continuing into rest
// when the closing fence is on a later line. Returns how many lines of rest
// were consumed.
func readTask(first string, rest []string) (string, int, error) {
	body, ok := strings.CutPrefix(first, fence)
	if !ok {
		return "", 0, fmt.Errorf("TASK must be wrapped in %s", fence)
	}
	if task, _, closed := strings.Cut(body, fence); closed {
		return checkTask(task, 0)
	}

	parts := []string{body}
	for i, line := range rest {
		if task, _, closed := strings.Cut(line, fence); closed {
			parts = append(parts, task)
			return checkTask(strings.Join(parts, "\n"), i+1)
		}
		parts = append(parts, line)
	}
	return "", 0, fmt.Errorf("unterminated TASK fence")
}

func checkTask(task string, consumed int) (string, int, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return "", 0, fmt.Errorf("TASK must not be empty")
	}
	return task, consumed, nil
}

// FormatInit renders the block sent to the model. Fields equal to their
// defaults are left out.
func FormatInit(init Init) string {
	var b strings.Builder
	fmt.Fprintf(&b, "TASK: %s%s%s\n", fence, init.Task, fence)
	if init.Mode != "" && init.Mode != DefaultMode {
		fmt.Fprintf(&b, "MODE: %s\n", init.Mode)
	}
	if init.ReasoningLanguage != "" && init.ReasoningLanguage != DefaultLanguage {
		fmt.Fprintf(&b, "REASONING_LANGUAGE: %s\n", init.ReasoningLanguage)
	}
	if init.MaxSteps > 0 && init.MaxSteps != DefaultMaxSteps {
		fmt.Fprintf(&b, "MAX_STEPS: %d\n", init.MaxSteps)
	}
	return b.String()
}
