package grader

import (
	"context"
	"fmt"
)

// Submission is a single piece of code sent for grading.
type Submission struct {
	Language string `json:"language"`
	Topic    string `json:"topic"`
	Code     string `json:"code"`
}

// Result is the normalized grading outcome. Every field is always populated:
// the normalizer substitutes defaults for anything the upstream model omits
// or malforms, so callers never need to nil-check.
type Result struct {
	Correct          bool     `json:"correct"`
	Feedback         string   `json:"feedback"`
	Suggestions      []string `json:"suggestions"`
	TimeComplexity   string   `json:"timeComplexity"`
	ComplexityReason string   `json:"complexityReason"`
}

// Grader sends a code submission to a text-generation service and returns
// a normalized result. Implementations may call different providers or
// return canned results (for tests).
type Grader interface {
	Grade(ctx context.Context, sub Submission) (*Result, error)
}

// ConfigError means a required credential or setting is absent. It is fatal
// for the request and is reported before any outbound call is attempted.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "grader configuration: " + e.Reason
}

// UpstreamError means the text-generation endpoint returned a non-success
// HTTP status. Body carries the upstream response as diagnostic text.
// It is not retried automatically; the user may re-issue the check.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.Status, e.Body)
}
