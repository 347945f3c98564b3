package submission

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-casebook/internal/config"
	"github.com/stemsi/exstem-casebook/internal/model"
)

// Archiver queues accepted submissions for durable storage.
type Archiver interface {
	Enqueue(ctx context.Context, rec *model.SubmissionRecord) error
}

// RedisArchiver pushes records onto the persist queue drained by the
// submission worker.
type RedisArchiver struct {
	rdb *redis.Client
}

func NewRedisArchiver(rdb *redis.Client) *RedisArchiver {
	return &RedisArchiver{rdb: rdb}
}

func (a *RedisArchiver) Enqueue(ctx context.Context, rec *model.SubmissionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}
	if err := a.rdb.RPush(ctx, config.WorkerKey.PersistSubmissionsQueue, data).Err(); err != nil {
		return fmt.Errorf("queue submission: %w", err)
	}
	return nil
}

// NopArchiver drops records. Used when Redis or the archive is disabled.
type NopArchiver struct{}

func (NopArchiver) Enqueue(context.Context, *model.SubmissionRecord) error { return nil }
