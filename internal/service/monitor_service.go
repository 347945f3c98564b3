package service

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-casebook/internal/model"
	"github.com/stemsi/exstem-casebook/internal/session"
)

// MonitorService builds the proctor's overview of live sessions.
type MonitorService struct {
	registry  *session.Registry
	publisher EventPublisher
	clock     session.Clock
	log       zerolog.Logger
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(registry *session.Registry, publisher EventPublisher, clock session.Clock, log zerolog.Logger) *MonitorService {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if clock == nil {
		clock = session.SystemClock{}
	}
	return &MonitorService{
		registry:  registry,
		publisher: publisher,
		clock:     clock,
		log:       log.With().Str("component", "monitor_service").Logger(),
	}
}

// MonitorStats counts sessions per phase.
type MonitorStats struct {
	Total     int `json:"total"`
	Waiting   int `json:"waiting"`
	Running   int `json:"running"`
	Finished  int `json:"finished"`
	Submitted int `json:"submitted"`
}

// MonitorSnapshot is the full monitor view.
type MonitorSnapshot struct {
	Stats    MonitorStats           `json:"stats"`
	Sessions []model.SessionSummary `json:"sessions"`
}

// Snapshot summarizes every live session, oldest activity first. Reading
// does not apply pending expiries; only the student's own poll does.
func (s *MonitorService) Snapshot() *MonitorSnapshot {
	sessions := s.registry.List()
	out := &MonitorSnapshot{Sessions: make([]model.SessionSummary, 0, len(sessions))}

	for _, sess := range sessions {
		st := sess.Snapshot()
		sum := model.SessionSummary{
			ID:               st.ID,
			StudentName:      st.StudentName,
			Phase:            st.Phase,
			Current:          st.Current,
			LockedCount:      len(st.LockedPairs),
			RemainingSeconds: st.RemainingSeconds,
			GradingDone:      st.GradingDone,
			Submitted:        st.Submitted,
			LastSeen:         sess.LastSeen(),
		}
		out.Sessions = append(out.Sessions, sum)

		out.Stats.Total++
		switch st.Phase {
		case model.PhaseWait:
			out.Stats.Waiting++
		case model.PhaseRunning:
			out.Stats.Running++
		case model.PhaseFinish:
			out.Stats.Finished++
		}
		if st.Submitted {
			out.Stats.Submitted++
		}
	}

	sort.Slice(out.Sessions, func(i, j int) bool {
		return out.Sessions[i].LastSeen.Before(out.Sessions[j].LastSeen)
	})
	return out
}

// ReapIdle drops sessions untouched for longer than maxIdle and announces
// each one on the monitor feed.
func (s *MonitorService) ReapIdle(ctx context.Context, maxIdle time.Duration) int {
	ids := s.registry.Reap(maxIdle)
	now := s.clock.Now()
	for _, id := range ids {
		s.publisher.Publish(ctx, model.SessionEvent{Type: model.EventReaped, SessionID: id, At: now})
	}
	if len(ids) > 0 {
		s.log.Info().Int("count", len(ids)).Msg("Reaped idle sessions")
	}
	return len(ids)
}
