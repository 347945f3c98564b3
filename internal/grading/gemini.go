package grading

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when GEMINI_MODEL is unset.
const DefaultGeminiModel = "gemini-1.5-flash"

// generator is the slice of the genai client the grader needs.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiGrader grades with the Google Gemini API.
type GeminiGrader struct {
	gen     generator
	model   string
	timeout time.Duration
}

// NewGeminiGrader creates a Gemini-backed grader.
func NewGeminiGrader(ctx context.Context, apiKey, model string, timeout time.Duration) (*GeminiGrader, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}

	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiGrader{gen: client.Models, model: model, timeout: timeout}, nil
}

func (g *GeminiGrader) Grade(ctx context.Context, question, studentAnswer, rubric string) Result {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	var temp float32
	config := &genai.GenerateContentConfig{Temperature: &temp}
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: BuildPrompt(question, studentAnswer, rubric)}},
	}}

	resp, err := g.gen.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return Failed(ErrTransport, err.Error())
	}
	if resp == nil {
		return Failed(ErrMalformed, "empty response")
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return Failed(ErrMalformed, "response carried no text")
	}
	return Ok(text)
}
