package grader

import (
	"fmt"
	"strings"
)

// systemPrompt describes the grading task and the required output shape.
// It is sent verbatim as the first prompt segment of every grading request.
const systemPrompt = `You are a strict DSA coach and code analyzer. The user will send code for a programming question.
Evaluate correctness and provide actionable feedback. Also estimate Big-O time complexity of the submitted solution's main routine and a one-line justification.
Respond ONLY in JSON with keys:
{
  "correct": boolean,
  "feedback": string,
  "suggestions": string[],
  "timeComplexity": string,
  "complexityReason": string
}`

// buildUserPrompt embeds the topic, language, and code verbatim into the
// second prompt segment.
func buildUserPrompt(sub Submission) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Topic: %s\n", sub.Topic)
	fmt.Fprintf(&sb, "Language: %s\n\n", sub.Language)
	fmt.Fprintf(&sb, "Code:\n%s\n\n", sub.Code)
	sb.WriteString("Evaluate correctness for the intended question. Check syntax and common logic errors. ")
	sb.WriteString("Provide constructive guidance. Estimate time complexity and reason. Return only JSON.")
	return sb.String()
}
