package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-casebook/internal/model"
	"github.com/stemsi/exstem-casebook/internal/response"
	"github.com/stemsi/exstem-casebook/internal/service"
	ws "github.com/stemsi/exstem-casebook/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler runs the exam flow over one WebSocket per session.
type WSHandler struct {
	sessionService *service.ExamSessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.ExamSessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/sessions/:id/stream
// Every message is answered with the fresh session state, so a client that
// ticks once a second sees expiries as soon as they happen.
func (h *WSHandler) SessionStream(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	ctx := c.Request.Context()
	if _, err := h.sessionService.State(ctx, id); err != nil {
		failFromError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Str("session_id", id.String()).Logger()
	wsLog.Info().Msg("Student connected")

	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		if err := h.dispatch(ctx, conn, id, &msg); err != nil {
			wsLog.Debug().Err(err).Msg("Write failed")
			return
		}
	}
}

// dispatch handles one client message. Only write errors are returned;
// domain errors are reported to the client.
func (h *WSHandler) dispatch(ctx context.Context, conn *websocket.Conn, id uuid.UUID, msg *ws.RequestPayload) error {
	var (
		st  *model.SessionState
		err error
	)

	switch msg.Action {
	case ws.ActionPing:
		return ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
	case ws.ActionTick:
		st, err = h.sessionService.State(ctx, id)
	case ws.ActionContent:
		sheet, err := h.sessionService.Content(ctx, id)
		if err != nil {
			return writeDomainError(conn, err)
		}
		return ws.WriteTyped(conn, ws.ContentResponse{Event: ws.EventContent, Content: sheet})
	case ws.ActionAnswer:
		if msg.Key == "" || msg.Value == nil {
			return ws.WriteError(conn, string(response.ErrValidation), "key and value are required")
		}
		st, err = h.sessionService.SetAnswer(ctx, id, msg.Key, *msg.Value)
	case ws.ActionAdvance:
		if !msg.Pair().Valid() {
			return ws.WriteError(conn, string(response.ErrValidation), "scenario and phase are required")
		}
		st, err = h.sessionService.Advance(ctx, id, msg.Pair())
	default:
		h.log.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
		return ws.WriteError(conn, string(response.ErrInvalidPayload), "unknown action: "+string(msg.Action))
	}

	if err != nil {
		return writeDomainError(conn, err)
	}
	return ws.WriteTyped(conn, ws.StateResponse{Event: ws.EventState, State: st})
}

func writeDomainError(conn *websocket.Conn, err error) error {
	_, code := classify(err)
	return ws.WriteError(conn, string(code), response.GetMessage(code))
}
