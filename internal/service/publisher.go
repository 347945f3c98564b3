package service

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-casebook/internal/config"
	"github.com/stemsi/exstem-casebook/internal/model"
)

// EventPublisher fans session events out to live monitors. Publishing is
// best effort and never fails the caller.
type EventPublisher interface {
	Publish(ctx context.Context, ev model.SessionEvent)
}

// RedisPublisher publishes each event on the session's channel and on the
// shared monitor channel.
type RedisPublisher struct {
	rdb *redis.Client
	log zerolog.Logger
}

func NewRedisPublisher(rdb *redis.Client, log zerolog.Logger) *RedisPublisher {
	return &RedisPublisher{
		rdb: rdb,
		log: log.With().Str("component", "event_publisher").Logger(),
	}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev model.SessionEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		p.log.Error().Err(err).Msg("Marshal event failed")
		return
	}

	pipe := p.rdb.Pipeline()
	pipe.Publish(ctx, config.CacheKey.SessionEventsChannel(ev.SessionID.String()), data)
	pipe.Publish(ctx, config.CacheKey.MonitorChannel(), data)
	if _, err := pipe.Exec(ctx); err != nil {
		p.log.Warn().Err(err).
			Str("session_id", ev.SessionID.String()).
			Str("type", string(ev.Type)).
			Msg("Publish event failed")
	}
}

// NopPublisher discards events. Used when Redis is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, model.SessionEvent) {}
