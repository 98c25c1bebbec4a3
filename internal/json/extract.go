// Package json provides JSON salvage utilities for model output.
//
// Streamed tool-call arguments and model replies sometimes arrive wrapped
// in markdown fences or surrounded by commentary. This package recovers
// the embedded JSON object from such strings.
package json

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractObject returns the JSON object embedded in s. It handles:
// 1. A pure JSON object - returned as-is
// 2. An object wrapped in markdown code fences (```json ... ```)
// 3. An object embedded in text - first '{' through last '}'
//
// Only objects are handled, not arrays; brace matching is textual, so
// unbalanced braces inside strings can defeat it.
func ExtractObject(s string) (string, error) {
	s = stripCodeFences(s)

	var probe any
	if err := json.Unmarshal([]byte(s), &probe); err == nil {
		return s, nil
	}

	start := strings.Index(s, "{")
	if start != -1 {
		end := strings.LastIndex(s, "}")
		if end != -1 && end > start {
			candidate := s[start : end+1]
			if err := json.Unmarshal([]byte(candidate), &probe); err == nil {
				return candidate, nil
			}
		}
	}

	preview := s
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	return "", fmt.Errorf("no valid JSON object in %q", preview)
}

// Decode extracts the JSON object in s and unmarshals it into out.
func Decode(s string, out any) error {
	extracted, err := ExtractObject(s)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(extracted), out); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return nil
}

// stripCodeFences removes markdown code fence markers.
// Handles ```json\n...\n``` and ```\n...\n```.
func stripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)

	if strings.HasPrefix(trimmed, "```json") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "```json"))
	} else if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
	}

	if strings.HasSuffix(trimmed, "```") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, "```"))
	}

	return trimmed
}
