package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a session lifecycle event sent to the monitor feed.
type EventType string

const (
	EventLogin     EventType = "login"
	EventStart     EventType = "start"
	EventAdvance   EventType = "advance"
	EventFinish    EventType = "finish"
	EventGraded    EventType = "graded"
	EventSubmitted EventType = "submitted"
	EventReaped    EventType = "reaped"
)

// SessionEvent is published on Redis Pub/Sub for every state change.
type SessionEvent struct {
	Type        EventType `json:"type"`
	SessionID   uuid.UUID `json:"session_id"`
	StudentName string    `json:"student_name,omitempty"`
	Phase       Phase     `json:"phase"`
	Trigger     string    `json:"trigger,omitempty"`
	From        *Pair     `json:"from,omitempty"`
	To          *Pair     `json:"to,omitempty"`
	At          time.Time `json:"at"`
}

// SessionSummary is one row of the proctor's monitor view.
type SessionSummary struct {
	ID               uuid.UUID `json:"id"`
	StudentName      string    `json:"student_name"`
	Phase            Phase     `json:"phase"`
	Current          *Pair     `json:"current,omitempty"`
	LockedCount      int       `json:"locked_count"`
	RemainingSeconds float64   `json:"remaining_seconds,omitempty"`
	GradingDone      bool      `json:"grading_done"`
	Submitted        bool      `json:"submitted"`
	LastSeen         time.Time `json:"last_seen"`
}
