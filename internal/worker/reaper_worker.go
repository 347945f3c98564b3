package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Reaper drops idle sessions.
type Reaper interface {
	ReapIdle(ctx context.Context, maxIdle time.Duration) int
}

// ReaperWorker periodically removes sessions nobody has touched for
// maxIdle. Session state never outlives the process either way; this only
// bounds memory on a long-running server.
type ReaperWorker struct {
	reaper   Reaper
	maxIdle  time.Duration
	interval time.Duration
	log      zerolog.Logger
}

// NewReaperWorker creates a new ReaperWorker that checks every interval.
func NewReaperWorker(reaper Reaper, maxIdle, interval time.Duration, log zerolog.Logger) *ReaperWorker {
	return &ReaperWorker{
		reaper:   reaper,
		maxIdle:  maxIdle,
		interval: interval,
		log:      log.With().Str("component", "reaper_worker").Logger(),
	}
}

// Start runs until ctx is cancelled. Call in a goroutine.
func (w *ReaperWorker) Start(ctx context.Context) {
	w.log.Info().Dur("max_idle", w.maxIdle).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.reaper.ReapIdle(ctx, w.maxIdle)
		}
	}
}
