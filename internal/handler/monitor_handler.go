package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-casebook/internal/config"
	"github.com/stemsi/exstem-casebook/internal/model"
	"github.com/stemsi/exstem-casebook/internal/response"
	"github.com/stemsi/exstem-casebook/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second

	defaultArchiveLimit = 50
	maxArchiveLimit     = 500
)

// SubmissionLister reads the submission archive.
type SubmissionLister interface {
	ListRecent(ctx context.Context, limit int) ([]model.SubmissionRecord, error)
}

// MonitorHandler gives the proctor a live view of every session.
type MonitorHandler struct {
	rdb            *redis.Client
	monitorService *service.MonitorService
	archive        SubmissionLister
	log            zerolog.Logger
}

// NewMonitorHandler creates a new MonitorHandler. rdb may be nil, in which
// case the stream carries periodic snapshots only.
func NewMonitorHandler(rdb *redis.Client, monitorService *service.MonitorService, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		rdb:            rdb,
		monitorService: monitorService,
		log:            log.With().Str("component", "monitor_handler").Logger(),
	}
}

// WithArchive enables the archived submissions listing.
func (h *MonitorHandler) WithArchive(archive SubmissionLister) *MonitorHandler {
	h.archive = archive
	return h
}

// ListSessions godoc
// GET /api/v1/monitor/sessions
func (h *MonitorHandler) ListSessions(c *gin.Context) {
	response.Success(c, http.StatusOK, h.monitorService.Snapshot())
}

// ListSubmissions godoc
// GET /api/v1/monitor/submissions?limit=50
func (h *MonitorHandler) ListSubmissions(c *gin.Context) {
	if h.archive == nil {
		response.Fail(c, http.StatusServiceUnavailable, response.ErrArchiveDisabled)
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultArchiveLimit)))
	if err != nil || limit < 1 {
		response.Fail(c, http.StatusBadRequest, response.ErrValidation)
		return
	}
	if limit > maxArchiveLimit {
		limit = maxArchiveLimit
	}

	records, err := h.archive.ListRecent(c.Request.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("List archived submissions failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if records == nil {
		records = []model.SubmissionRecord{}
	}
	response.Success(c, http.StatusOK, records)
}

// MonitorSSE godoc
// GET /api/v1/monitor/stream
// Sends a snapshot, then forwards session events from Redis Pub/Sub as
// they happen, with a fresh snapshot every refreshInterval.
func (h *MonitorHandler) MonitorSSE(c *gin.Context) {
	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.sendSnapshot(c)

	var events <-chan *redis.Message
	if h.rdb != nil {
		pubsub := h.rdb.Subscribe(reqCtx, config.CacheKey.MonitorChannel())
		defer pubsub.Close()
		events = pubsub.Channel()
	}

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	h.log.Info().Msg("Proctor attached to live monitor")

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Msg("Proctor detached from live monitor")
			return

		case msg, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			// Payload is already JSON.
			c.Writer.Write([]byte("event: session\ndata: "))
			c.Writer.Write([]byte(msg.Payload))
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()

		case <-refreshTicker.C:
			h.sendSnapshot(c)

		case <-keepAliveTicker.C:
			c.SSEvent("ping", gin.H{"type": "ping"})
			c.Writer.Flush()
		}
	}
}

func (h *MonitorHandler) sendSnapshot(c *gin.Context) {
	c.SSEvent("snapshot", h.monitorService.Snapshot())
	c.Writer.Flush()
}
