package grading

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-casebook/internal/config"
)

// NewGateway picks the grading backend from configuration. A missing key,
// or a client that cannot be built, yields the Unconfigured gateway.
func NewGateway(ctx context.Context, cfg *config.Config, log zerolog.Logger) Gateway {
	if cfg.GoogleAPIKey == "" {
		log.Warn().Msg("GOOGLE_API_KEY not set, essays will receive the mock grade")
		return Unconfigured{}
	}

	g, err := NewGeminiGrader(ctx, cfg.GoogleAPIKey, cfg.GeminiModel, cfg.GradingTimeout)
	if err != nil {
		log.Error().Err(err).Msg("Gemini grader unavailable, falling back to mock grade")
		return Unconfigured{}
	}

	log.Info().Str("model", g.model).Msg("Gemini grader ready")
	return WithRetry(g, cfg.GradingAttempts, cfg.GradingBackoff)
}
