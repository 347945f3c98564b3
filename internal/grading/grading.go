// Package grading scores essay answers through an external language model.
// Every failure is folded into a Result; nothing here returns an error to
// the exam flow.
package grading

import (
	"context"
	"fmt"

	"github.com/stemsi/exstem-casebook/internal/content"
	"github.com/stemsi/exstem-casebook/internal/model"
)

// MockMarker is stored as the grade when no credential is configured.
const MockMarker = "Error: No API Key (Mock Score: 0/10)"

// ErrKind classifies a failed grading call.
type ErrKind string

const (
	ErrNoCredential ErrKind = "no_credential"
	ErrTransport    ErrKind = "transport"
	ErrMalformed    ErrKind = "malformed"
)

// Result is either Ok(Text) or Err(Kind, Detail).
type Result struct {
	Text   string
	Kind   ErrKind
	Detail string
}

func Ok(text string) Result { return Result{Text: text} }

func Failed(kind ErrKind, detail string) Result {
	return Result{Kind: kind, Detail: detail}
}

func (r Result) OK() bool { return r.Kind == "" }

// Render turns the result into the text stored in the answer sheet.
func (r Result) Render() string {
	switch r.Kind {
	case "":
		return r.Text
	case ErrNoCredential:
		return MockMarker
	default:
		return "AI Error: " + r.Detail
	}
}

// Gateway grades one essay answer against rubric keywords.
type Gateway interface {
	Grade(ctx context.Context, question, studentAnswer, rubric string) Result
}

// Unconfigured is the gateway used when no credential is set.
type Unconfigured struct{}

func (Unconfigured) Grade(context.Context, string, string, string) Result {
	return Failed(ErrNoCredential, "no grading credential configured")
}

// BuildPrompt renders the examiner instruction sent to the model.
func BuildPrompt(question, studentAnswer, rubric string) string {
	return fmt.Sprintf(`Role: Biology Examiner.
Task: Grade this student answer strictly based on keywords.
Question: %s
Student Answer: %s
Rubric Keywords: %s
Output format: Give ONLY the score (0-10) and a short 1-sentence feedback.
Example: Score: 8/10. Correctly identified receptor but missed competitive inhibition.
`, question, studentAnswer, rubric)
}

// Outcome is one graded essay.
type Outcome struct {
	Essay  content.GradedEssay
	Result Result
}

// Pass grades every listed essay in order, one call each. A blank essay is
// graded as an empty answer.
func Pass(ctx context.Context, g Gateway, essays []content.GradedEssay, answers map[string]model.Value) []Outcome {
	out := make([]Outcome, 0, len(essays))
	for _, e := range essays {
		ans := answers[e.AnswerKey]
		out = append(out, Outcome{
			Essay:  e,
			Result: g.Grade(ctx, e.Question, ans.String(), e.Rubric),
		})
	}
	return out
}
