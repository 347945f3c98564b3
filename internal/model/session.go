package model

import (
	"fmt"

	"github.com/google/uuid"
)

// Phase enumerates the top-level states of an exam session.
type Phase string

const (
	PhaseLogin   Phase = "LOGIN"
	PhaseWait    Phase = "WAIT"
	PhaseRunning Phase = "RUNNING"
	PhaseFinish  Phase = "FINISH"
)

// rank orders phases along the only permitted direction of travel.
func (p Phase) rank() int {
	switch p {
	case PhaseLogin:
		return 0
	case PhaseWait:
		return 1
	case PhaseRunning:
		return 2
	case PhaseFinish:
		return 3
	default:
		return -1
	}
}

// Before reports whether p comes strictly earlier than other.
func (p Phase) Before(other Phase) bool {
	return p.rank() < other.rank()
}

const (
	ScenarioCount      = 5
	PhasesPerScenario  = 3
	PairsPerSession    = ScenarioCount * PhasesPerScenario
	FirstScenario      = 1
	FirstScenarioPhase = 1
)

// Pair identifies one timed unit of exam content.
type Pair struct {
	Scenario int `json:"scenario" yaml:"scenario"`
	Phase    int `json:"phase" yaml:"phase"`
}

// FirstPair is where every RUNNING session begins.
var FirstPair = Pair{Scenario: FirstScenario, Phase: FirstScenarioPhase}

// LastPair is the terminal pair; advancing from it finishes the exam.
var LastPair = Pair{Scenario: ScenarioCount, Phase: PhasesPerScenario}

// Valid reports whether the pair lies inside the 5x3 grid.
func (p Pair) Valid() bool {
	return p.Scenario >= 1 && p.Scenario <= ScenarioCount &&
		p.Phase >= 1 && p.Phase <= PhasesPerScenario
}

// Next returns the successor pair. ok is false for LastPair.
func (p Pair) Next() (next Pair, ok bool) {
	if p.Phase == PhasesPerScenario {
		if p.Scenario == ScenarioCount {
			return Pair{}, false
		}
		return Pair{Scenario: p.Scenario + 1, Phase: 1}, true
	}
	return Pair{Scenario: p.Scenario, Phase: p.Phase + 1}, true
}

// Less orders pairs lexicographically by (scenario, phase).
func (p Pair) Less(other Pair) bool {
	if p.Scenario != other.Scenario {
		return p.Scenario < other.Scenario
	}
	return p.Phase < other.Phase
}

func (p Pair) String() string {
	return fmt.Sprintf("s%d_p%d", p.Scenario, p.Phase)
}

// AllPairs returns the 15 pairs in visiting order.
func AllPairs() []Pair {
	pairs := make([]Pair, 0, PairsPerSession)
	for p, ok := FirstPair, true; ok; p, ok = p.Next() {
		pairs = append(pairs, p)
	}
	return pairs
}

// SessionState is the snapshot a client renders after every poll.
type SessionState struct {
	ID               uuid.UUID        `json:"id"`
	StudentName      string           `json:"student_name,omitempty"`
	Phase            Phase            `json:"phase"`
	Current          *Pair            `json:"current,omitempty"`
	Editable         bool             `json:"editable"`
	AllottedSeconds  float64          `json:"allotted_seconds"`
	RemainingSeconds float64          `json:"remaining_seconds"`
	LockedPairs      []Pair           `json:"locked_pairs"`
	Answers          map[string]Value `json:"answers"`
	GradingDone      bool             `json:"grading_done"`
	Submitted        bool             `json:"submitted"`
}

// LoginRequest is the payload for entering the waiting room.
type LoginRequest struct {
	StudentName string `json:"student_name" binding:"required,max=200"`
}

// StartRequest is the proctor's start signal.
type StartRequest struct {
	Password string `json:"password" binding:"required,max=200"`
}

// AnswerRequest writes one answer for the current pair.
type AnswerRequest struct {
	Key   string `json:"key" binding:"required,max=64,answerkey"`
	Value Value  `json:"value"`
}

// AdvanceRequest names the pair the client is leaving. The server ignores
// the request when that pair has already been locked.
type AdvanceRequest struct {
	Scenario int `json:"scenario" binding:"required,min=1,max=5"`
	Phase    int `json:"phase" binding:"required,min=1,max=3"`
}

// Pair converts the request into a Pair.
func (r AdvanceRequest) Pair() Pair {
	return Pair{Scenario: r.Scenario, Phase: r.Phase}
}
