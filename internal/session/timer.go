package session

import (
	"time"

	"github.com/stemsi/exstem-casebook/internal/model"
)

// DefaultAllotments is the per-phase time budget in units. Every scenario
// shares the same three budgets.
var DefaultAllotments = map[int]int{1: 120, 2: 240, 3: 240}

// Timer converts phase numbers to durations and measures what is left of a
// pair's budget. It holds no per-session state.
type Timer struct {
	allotted map[int]time.Duration
}

// NewTimer builds a Timer where each allotment unit lasts unit.
func NewTimer(allotments map[int]int, unit time.Duration) *Timer {
	t := &Timer{allotted: make(map[int]time.Duration, len(allotments))}
	for phase, units := range allotments {
		t.allotted[phase] = time.Duration(units) * unit
	}
	return t
}

// Allotted returns the full budget for a phase number.
func (t *Timer) Allotted(phase int) time.Duration {
	return t.allotted[phase]
}

// Remaining returns the budget left for pair p started at start, never
// below zero.
func (t *Timer) Remaining(p model.Pair, start, now time.Time) time.Duration {
	left := t.Allotted(p.Phase) - now.Sub(start)
	if left < 0 {
		return 0
	}
	return left
}

// Expired reports whether the pair's budget is used up.
func (t *Timer) Expired(p model.Pair, start, now time.Time) bool {
	return t.Remaining(p, start, now) <= 0
}
