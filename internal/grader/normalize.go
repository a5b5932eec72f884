package grader

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	openFenceRegex  = regexp.MustCompile("^```[a-zA-Z]*\n?")
	closeFenceRegex = regexp.MustCompile("```$")
)

// Normalize coerces the raw text reply of a text-generation model into a
// fully populated Result. The model is not a reliable JSON producer, so
// extraction degrades through decreasing levels of structure: fence-stripped
// direct parse, then the greedy first-{-to-last-} block, and finally a raw
// fallback that preserves the model text as feedback so the user is never
// shown nothing.
func Normalize(text string) *Result {
	raw, ok := extractCandidate(text)
	if !ok {
		return &Result{
			Correct:          false,
			Feedback:         text,
			Suggestions:      []string{},
			TimeComplexity:   "-",
			ComplexityReason: "-",
		}
	}
	return normalizeObject(raw)
}

// extractCandidate tries to pull a JSON object out of free-form model text.
func extractCandidate(text string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(text)
	unfenced := openFenceRegex.ReplaceAllString(trimmed, "")
	unfenced = closeFenceRegex.ReplaceAllString(unfenced, "")

	var obj map[string]any
	if err := json.Unmarshal([]byte(unfenced), &obj); err == nil {
		return obj, true
	}

	// Fallback: greedy match from the first '{' to the last '}'.
	start := strings.Index(unfenced, "{")
	end := strings.LastIndex(unfenced, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(unfenced[start:end+1]), &obj); err == nil {
			return obj, true
		}
	}

	return nil, false
}

// normalizeObject maps a parsed object of unknown shape onto the strict
// Result shape. Never assumes any field exists.
func normalizeObject(raw map[string]any) *Result {
	return &Result{
		Correct:          truthy(raw["correct"]),
		Feedback:         stringField(raw, "feedback", "message"),
		Suggestions:      arrayField(raw, "suggestions", "tips"),
		TimeComplexity:   stringOrDash(raw, "timeComplexity", "time_complexity"),
		ComplexityReason: stringOrDash(raw, "complexityReason", "complexity_reason"),
	}
}

// truthy applies boolean coercion to a decoded JSON value: absent, false,
// zero, and the empty string are false; everything else (including objects
// and arrays) is true.
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case float64:
		return val != 0
	case string:
		return val != ""
	default:
		return true
	}
}

// stringField returns the first of the named fields that is present and a
// string, or "".
func stringField(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := raw[k].(string); ok {
			return s
		}
	}
	return ""
}

// stringOrDash returns the first of the named fields that is present and
// non-empty, or "-". Non-string scalars are rendered as text rather than
// discarded.
func stringOrDash(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		switch val := raw[k].(type) {
		case string:
			if val != "" {
				return val
			}
		case float64, bool:
			return fmt.Sprintf("%v", val)
		}
	}
	return "-"
}

// arrayField returns the first of the named fields that is an array,
// with each element rendered as a string, or an empty slice.
func arrayField(raw map[string]any, keys ...string) []string {
	for _, k := range keys {
		arr, ok := raw[k].([]any)
		if !ok {
			continue
		}
		out := make([]string, 0, len(arr))
		for _, e := range arr {
			if s, ok := e.(string); ok {
				out = append(out, s)
			} else {
				out = append(out, fmt.Sprintf("%v", e))
			}
		}
		return out
	}
	return []string{}
}
