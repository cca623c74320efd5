// Package json extracts JSON objects from model replies.
//
// Even in JSON mode some providers wrap the object in a markdown fence or add
// a sentence before or after it. Extraction tolerates both.
package json

import (
	"encoding/json"
	"fmt"
	"strings"
)

const previewLen = 100

// ExtractError reports a reply that holds no JSON object.
type ExtractError struct {
	Preview string
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("failed to extract JSON object from response: %q", e.Preview)
}

// ExtractObject returns the first JSON object found in response.
//
// The lookup order is: the whole reply (after stripping a markdown fence),
// then the first '{' from which a complete object decodes. Text after the
// object is ignored.
func ExtractObject(response string) (map[string]any, error) {
	raw, err := extract(response)
	if err != nil {
		return nil, err
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return obj, nil
}

func extract(response string) (json.RawMessage, error) {
	body := stripFence(response)

	var whole json.RawMessage
	if err := json.Unmarshal([]byte(body), &whole); err == nil && isObject(whole) {
		return whole, nil
	}

	for i := strings.IndexByte(body, '{'); i != -1; {
		var obj json.RawMessage
		dec := json.NewDecoder(strings.NewReader(body[i:]))
		if err := dec.Decode(&obj); err == nil && isObject(obj) {
			return obj, nil
		}
		next := strings.IndexByte(body[i+1:], '{')
		if next == -1 {
			break
		}
		i += next + 1
	}

	return nil, &ExtractError{Preview: preview(response)}
}

// stripFence removes a surrounding ```lang ... ``` block.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl != -1 && !strings.ContainsAny(s[:nl], "{[") {
		s = s[nl+1:] // language tag
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func isObject(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return strings.HasPrefix(trimmed, "{")
}

func preview(s string) string {
	if len(s) > previewLen {
		return s[:previewLen] + "..."
	}
	return s
}
