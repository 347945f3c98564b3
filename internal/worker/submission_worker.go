package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-casebook/internal/config"
	"github.com/stemsi/exstem-casebook/internal/model"
)

// SubmissionStore persists archived submissions.
type SubmissionStore interface {
	Insert(ctx context.Context, rec *model.SubmissionRecord) error
}

// SubmissionWorker drains the persist_submissions queue into PostgreSQL.
type SubmissionWorker struct {
	store SubmissionStore
	rdb   *redis.Client
	queue string
	log   zerolog.Logger
}

// NewSubmissionWorker creates a new SubmissionWorker.
func NewSubmissionWorker(store SubmissionStore, rdb *redis.Client, log zerolog.Logger) *SubmissionWorker {
	return &SubmissionWorker{
		store: store,
		rdb:   rdb,
		queue: config.WorkerKey.PersistSubmissionsQueue,
		log:   log.With().Str("component", "submission_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *SubmissionWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *SubmissionWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or timeout (1 second).
	result, err := w.rdb.BLPop(ctx, time.Second, w.queue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}
	if len(result) < 2 {
		return
	}

	if err := w.persist(ctx, result[1]); err != nil {
		w.log.Error().Err(err).Msg("Persist error, retrying in 5s")
		w.rdb.RPush(ctx, w.queue, result[1])
		select {
		case <-ctx.Done():
		case <-time.After(5 * time.Second):
		}
	}
}

// persist decodes one queue item and stores it. Undecodable items are
// logged and dropped.
func (w *SubmissionWorker) persist(ctx context.Context, raw string) error {
	var rec model.SubmissionRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error, dropping item")
		return nil
	}

	if err := w.store.Insert(ctx, &rec); err != nil {
		return err
	}
	w.log.Info().Str("session_id", rec.SessionID.String()).Msg("Submission archived")
	return nil
}

// drain processes all remaining items in the queue before shutdown.
func (w *SubmissionWorker) drain(ctx context.Context) {
	drained := 0
	for {
		raw, err := w.rdb.LPop(ctx, w.queue).Result()
		if err != nil {
			break
		}
		if err := w.persist(ctx, raw); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, w.queue, raw)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
