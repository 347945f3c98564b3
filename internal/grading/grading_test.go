package grading

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-casebook/internal/config"
	"github.com/stemsi/exstem-casebook/internal/content"
	"github.com/stemsi/exstem-casebook/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	resp    *genai.GenerateContentResponse
	err     error
}

func (f *fakeGenerator) GenerateContent(_ context.Context, _ string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, contents[0].Parts[0].Text)
	return f.resp, f.err
}

func textResponse(s string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: s}}},
		}},
	}
}

func TestResult_Render(t *testing.T) {
	assert.Equal(t, "Score: 9/10.", Ok("Score: 9/10.").Render())
	assert.Equal(t, MockMarker, Failed(ErrNoCredential, "x").Render())
	assert.Equal(t, "AI Error: connection reset", Failed(ErrTransport, "connection reset").Render())
	assert.True(t, Ok("a").OK())
	assert.False(t, Failed(ErrMalformed, "").OK())
}

func TestUnconfigured_ReturnsMockMarker(t *testing.T) {
	res := Unconfigured{}.Grade(context.Background(), "q", "a", "r")
	assert.Equal(t, ErrNoCredential, res.Kind)
	assert.Equal(t, MockMarker, res.Render())
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("Why?", "Because receptors", "Muscarinic receptor")
	assert.Contains(t, p, "Role: Biology Examiner.")
	assert.Contains(t, p, "Question: Why?")
	assert.Contains(t, p, "Student Answer: Because receptors")
	assert.Contains(t, p, "Rubric Keywords: Muscarinic receptor")
}

func TestGeminiGrader_Grade(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse("  Score: 8/10. Good.  ")}
	g := &GeminiGrader{gen: gen, model: "test", timeout: time.Second}

	res := g.Grade(context.Background(), "Q", "A", "R")
	require.True(t, res.OK())
	assert.Equal(t, "Score: 8/10. Good.", res.Text)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Student Answer: A")
}

func TestGeminiGrader_Failures(t *testing.T) {
	g := &GeminiGrader{gen: &fakeGenerator{err: errors.New("dial tcp: refused")}, model: "test"}
	res := g.Grade(context.Background(), "Q", "A", "R")
	assert.Equal(t, ErrTransport, res.Kind)
	assert.Equal(t, "AI Error: dial tcp: refused", res.Render())

	g = &GeminiGrader{gen: &fakeGenerator{resp: &genai.GenerateContentResponse{}}, model: "test"}
	assert.Equal(t, ErrMalformed, g.Grade(context.Background(), "Q", "A", "R").Kind)
}

type countingGateway struct {
	mu      sync.Mutex
	results []Result
	calls   int
}

func (c *countingGateway) Grade(context.Context, string, string, string) Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if len(c.results) == 0 {
		return Ok("Score: 5/10.")
	}
	r := c.results[0]
	c.results = c.results[1:]
	return r
}

func TestWithRetry_RetriesTransportOnly(t *testing.T) {
	inner := &countingGateway{results: []Result{
		Failed(ErrTransport, "503"),
		Failed(ErrTransport, "503"),
		Ok("Score: 6/10."),
	}}
	res := WithRetry(inner, 3, time.Millisecond).Grade(context.Background(), "q", "a", "r")
	assert.Equal(t, "Score: 6/10.", res.Text)
	assert.Equal(t, 3, inner.calls)

	inner = &countingGateway{results: []Result{Failed(ErrMalformed, "empty")}}
	res = WithRetry(inner, 3, time.Millisecond).Grade(context.Background(), "q", "a", "r")
	assert.Equal(t, ErrMalformed, res.Kind)
	assert.Equal(t, 1, inner.calls)
}

func TestPass_GradesEveryDeclaredEssay(t *testing.T) {
	essays := content.MustDefault().GradedEssays()
	answers := map[string]model.Value{
		"s1_essay1": model.Scalar("competitive inhibition at muscarinic receptors"),
		"s1_essay2": model.Scalar("nicotinic receptors are not blocked"),
	}

	g := &countingGateway{}
	out := Pass(context.Background(), g, essays, answers)
	require.Len(t, out, len(essays))
	assert.Equal(t, len(essays), g.calls)
	for i, e := range essays {
		assert.Equal(t, e.GradeKey, out[i].Essay.GradeKey)
	}
	assert.Equal(t, "s1_grade1", out[0].Essay.GradeKey)
	assert.Equal(t, "s1_grade2", out[1].Essay.GradeKey)
}

func TestNewGateway_WithoutKeyIsUnconfigured(t *testing.T) {
	g := NewGateway(context.Background(), &config.Config{}, zerolog.Nop())
	assert.IsType(t, Unconfigured{}, g)
}
