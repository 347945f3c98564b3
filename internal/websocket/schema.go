package websocket

import "github.com/stemsi/exstem-casebook/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionTick    Action = "tick"
	ActionContent Action = "content"
	ActionAnswer  Action = "answer"
	ActionAdvance Action = "advance"
	ActionPing    Action = "ping"
)

// RequestPayload is every client message. Only the members the action
// needs are read.
type RequestPayload struct {
	Action   Action       `json:"action"`
	Key      string       `json:"key,omitempty"`
	Value    *model.Value `json:"value,omitempty"`
	Scenario int          `json:"scenario,omitempty"`
	Phase    int          `json:"phase,omitempty"`
}

// Pair returns the pair named by an advance request.
func (r *RequestPayload) Pair() model.Pair {
	return model.Pair{Scenario: r.Scenario, Phase: r.Phase}
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError   Event = "error"
	EventState   Event = "state"
	EventContent Event = "content"
	EventPong    Event = "pong"
)

type StateResponse struct {
	Event Event               `json:"event"`
	State *model.SessionState `json:"state"`
}

type ContentResponse struct {
	Event   Event       `json:"event"`
	Content interface{} `json:"content"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
