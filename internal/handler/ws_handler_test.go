package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-casebook/internal/content"
	"github.com/stemsi/exstem-casebook/internal/grading"
	"github.com/stemsi/exstem-casebook/internal/model"
	"github.com/stemsi/exstem-casebook/internal/response"
	"github.com/stemsi/exstem-casebook/internal/service"
	"github.com/stemsi/exstem-casebook/internal/session"
	ws "github.com/stemsi/exstem-casebook/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsReply struct {
	Event ws.Event            `json:"event"`
	Code  string              `json:"code"`
	State *model.SessionState `json:"state"`
}

func newWSServer(t *testing.T) (*httptest.Server, *service.ExamSessionService) {
	t.Helper()
	provider := content.MustDefault()
	clock := session.SystemClock{}
	registry := session.NewRegistry(clock, session.NewTimer(session.DefaultAllotments, time.Minute), provider)
	svc := service.NewExamSessionService(service.ExamSessionDeps{
		Registry: registry,
		Content:  provider,
		Assets:   service.NewAssetService(t.TempDir(), provider),
		Verifier: service.NewProctorVerifier("1234", ""),
		Grader:   grading.Unconfigured{},
		Clock:    clock,
	}, zerolog.Nop())

	r := gin.New()
	r.GET("/ws/:id", NewWSHandler(svc, zerolog.Nop(), nil).SessionStream)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, svc
}

func TestWSHandler_Flow(t *testing.T) {
	srv, svc := newWSServer(t)
	st, err := svc.Login(t.Context(), "Rina")
	require.NoError(t, err)
	_, err = svc.Start(t.Context(), st.ID, "1234")
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + st.ID.String()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	send := func(msg any) wsReply {
		t.Helper()
		require.NoError(t, conn.WriteJSON(msg))
		var reply wsReply
		require.NoError(t, conn.ReadJSON(&reply))
		return reply
	}

	reply := send(ws.RequestPayload{Action: ws.ActionTick})
	require.Equal(t, ws.EventState, reply.Event)
	assert.Equal(t, model.PhaseRunning, reply.State.Phase)

	v := model.Choice("Parasympathetic")
	reply = send(ws.RequestPayload{Action: ws.ActionAnswer, Key: "s1_p1_system", Value: &v})
	require.Equal(t, ws.EventState, reply.Event)
	assert.Equal(t, "Parasympathetic", reply.State.Answers["s1_p1_system"].Text)

	reply = send(ws.RequestPayload{Action: ws.ActionAdvance, Scenario: 1, Phase: 1})
	require.Equal(t, ws.EventState, reply.Event)
	assert.Equal(t, model.Pair{Scenario: 1, Phase: 2}, *reply.State.Current)

	reply = send(ws.RequestPayload{Action: ws.ActionAnswer, Key: "s1_p1_system", Value: &v})
	assert.Equal(t, ws.EventError, reply.Event)
	assert.Equal(t, string(response.ErrPairLocked), reply.Code)

	reply = send(ws.RequestPayload{Action: "dance"})
	assert.Equal(t, ws.EventError, reply.Event)
	assert.Equal(t, string(response.ErrInvalidPayload), reply.Code)

	reply = send(ws.RequestPayload{Action: ws.ActionPing})
	assert.Equal(t, ws.EventPong, reply.Event)
}

func TestWSHandler_UnknownSession(t *testing.T) {
	srv, _ := newWSServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/8f9c2a4e-3f1b-4c1e-9d7a-2b6f0e5a1c3d"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
