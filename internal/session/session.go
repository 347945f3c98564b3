package session

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-casebook/internal/model"
)

// Rejected-attempt outcomes. None of them change session state.
var (
	ErrEmptyName        = errors.New("student name is required")
	ErrWrongPassword    = errors.New("wrong proctor password")
	ErrWrongPhase       = errors.New("operation not allowed in current phase")
	ErrPairLocked       = errors.New("pair is locked")
	ErrNotCurrentPair   = errors.New("pair is not the current pair")
	ErrUnknownField     = errors.New("unknown answer field")
	ErrAlreadySubmitted = errors.New("answers already submitted")
	ErrSubmitInFlight   = errors.New("submission already in progress")
)

// StudentNameKey is the answer key holding the login identifier.
const StudentNameKey = "student_name"

// Trigger names what caused an advance.
type Trigger string

const (
	TriggerManual Trigger = "manual"
	TriggerTimer  Trigger = "timer"
)

// Transition describes one applied advance.
type Transition struct {
	Trigger  Trigger
	From     model.Pair
	To       model.Pair
	Finished bool
}

// FieldIndex resolves an answer key to the pair whose inputs own it.
type FieldIndex interface {
	PairOf(key string) (model.Pair, bool)
}

// PasswordVerifier checks the proctor's start password.
type PasswordVerifier interface {
	Verify(password string) bool
}

// Session is one student's exam attempt. All methods are safe for
// concurrent use; every check-then-lock sequence runs under one mutex.
type Session struct {
	id     uuid.UUID
	clock  Clock
	timer  *Timer
	fields FieldIndex

	mu          sync.Mutex
	phase       model.Phase
	current     model.Pair
	locked      map[model.Pair]struct{}
	starts      map[model.Pair]time.Time
	visited     []model.Pair
	answers     *Answers
	gradingDone bool
	submitting  bool
	submitted   bool
	lastSeen    time.Time

	gradeOnce sync.Once
}

// New creates a session in LOGIN.
func New(id uuid.UUID, clock Clock, timer *Timer, fields FieldIndex) *Session {
	return &Session{
		id:       id,
		clock:    clock,
		timer:    timer,
		fields:   fields,
		phase:    model.PhaseLogin,
		locked:   make(map[model.Pair]struct{}, model.PairsPerSession),
		starts:   make(map[model.Pair]time.Time, model.PairsPerSession),
		answers:  newAnswers(),
		lastSeen: clock.Now(),
	}
}

func (s *Session) ID() uuid.UUID { return s.id }

// Login moves LOGIN to WAIT and records the student identifier.
func (s *Session) Login(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = s.clock.Now()

	if s.phase != model.PhaseLogin {
		return ErrWrongPhase
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}

	s.answers.Set(StudentNameKey, model.Scalar(name))
	s.phase = model.PhaseWait
	return nil
}

// Start moves WAIT to RUNNING at the first pair when the password checks out.
func (s *Session) Start(password string, verifier PasswordVerifier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	s.lastSeen = now

	if s.phase != model.PhaseWait {
		return ErrWrongPhase
	}
	if !verifier.Verify(password) {
		return ErrWrongPassword
	}

	s.current = model.FirstPair
	s.phase = model.PhaseRunning
	s.enter(now)
	return nil
}

// Tick is the render-pass hook. It stamps the current pair's start time on
// first visit and advances when the pair's budget has run out. A nil
// Transition means nothing moved.
func (s *Session) Tick() *Transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	s.lastSeen = now
	return s.poll(now)
}

// Advance runs the advance procedure from pair from. Clients pass the pair
// they were looking at, so a click that loses the race against the timer
// finds its pair locked and does nothing.
func (s *Session) Advance(from model.Pair, trigger Trigger) (*Transition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	s.lastSeen = now

	if s.phase.Before(model.PhaseRunning) {
		return nil, ErrWrongPhase
	}

	t := s.poll(now)
	if _, done := s.locked[from]; done {
		return t, nil
	}
	if s.phase != model.PhaseRunning {
		return nil, ErrWrongPhase
	}
	if from != s.current {
		return nil, ErrNotCurrentPair
	}
	return s.advance(trigger, now), nil
}

// SetAnswer stores v under key when key belongs to the current, unlocked
// pair. An expiry observed here is applied first and returned alongside
// ErrPairLocked.
func (s *Session) SetAnswer(key string, v model.Value) (*Transition, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	s.lastSeen = now

	if s.phase != model.PhaseRunning {
		return nil, ErrWrongPhase
	}
	owner, ok := s.fields.PairOf(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, key)
	}

	t := s.poll(now)
	if _, done := s.locked[owner]; done {
		return t, ErrPairLocked
	}
	if owner != s.current {
		return t, ErrNotCurrentPair
	}

	s.answers.Set(key, v)
	return t, nil
}

// poll checks the current pair's timer. Caller holds mu.
func (s *Session) poll(now time.Time) *Transition {
	if s.phase != model.PhaseRunning {
		return nil
	}
	s.enter(now)
	if _, done := s.locked[s.current]; done {
		return nil
	}
	if !s.timer.Expired(s.current, s.starts[s.current], now) {
		return nil
	}
	return s.advance(TriggerTimer, now)
}

// advance locks the current pair and moves on. Caller holds mu and has
// checked that the current pair is unlocked.
func (s *Session) advance(trigger Trigger, now time.Time) *Transition {
	from := s.current
	s.locked[from] = struct{}{}

	next, ok := from.Next()
	if !ok {
		s.phase = model.PhaseFinish
		return &Transition{Trigger: trigger, From: from, Finished: true}
	}

	s.current = next
	s.enter(now)
	return &Transition{Trigger: trigger, From: from, To: next}
}

// enter records the first visit of the current pair.
func (s *Session) enter(now time.Time) {
	if _, seen := s.starts[s.current]; seen {
		return
	}
	s.starts[s.current] = now
	s.visited = append(s.visited, s.current)
}

// GradeOnce runs grade exactly once per session, after FINISH. grade gets a
// copy of the answers and returns entries to append. Concurrent callers
// block until the first run completes. ran reports whether this call did
// the grading.
func (s *Session) GradeOnce(grade func(answers map[string]model.Value) map[string]model.Value) (ran bool, err error) {
	s.mu.Lock()
	s.lastSeen = s.clock.Now()
	finished := s.phase == model.PhaseFinish
	s.mu.Unlock()
	if !finished {
		return false, ErrWrongPhase
	}

	s.gradeOnce.Do(func() {
		s.mu.Lock()
		s.gradingDone = true
		snapshot := s.answers.Snapshot()
		s.mu.Unlock()

		results := grade(snapshot)

		s.mu.Lock()
		for k, v := range results {
			s.answers.Set(k, v)
		}
		s.mu.Unlock()
		ran = true
	})
	return ran, nil
}

// BeginSubmit claims the one submission slot and returns the answers to
// send. EndSubmit must follow.
func (s *Session) BeginSubmit() (map[string]model.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = s.clock.Now()

	switch {
	case s.phase != model.PhaseFinish:
		return nil, ErrWrongPhase
	case s.submitted:
		return nil, ErrAlreadySubmitted
	case s.submitting:
		return nil, ErrSubmitInFlight
	}
	s.submitting = true
	return s.answers.Snapshot(), nil
}

// EndSubmit releases the submission slot. A failed attempt may be retried.
func (s *Session) EndSubmit(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitting = false
	if ok {
		s.submitted = true
	}
}

// Snapshot returns the render state without evaluating the timer.
func (s *Session) Snapshot() model.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()

	st := model.SessionState{
		ID:          s.id,
		Phase:       s.phase,
		LockedPairs: s.lockedPairs(),
		Answers:     s.answers.Snapshot(),
		GradingDone: s.gradingDone,
		Submitted:   s.submitted,
	}
	if v, ok := s.answers.Get(StudentNameKey); ok {
		st.StudentName = v.Text
	}
	if s.phase == model.PhaseRunning {
		cur := s.current
		st.Current = &cur
		_, done := s.locked[cur]
		st.Editable = !done
		st.AllottedSeconds = s.timer.Allotted(cur.Phase).Seconds()
		if start, ok := s.starts[cur]; ok {
			st.RemainingSeconds = s.timer.Remaining(cur, start, now).Seconds()
		} else {
			st.RemainingSeconds = st.AllottedSeconds
		}
	}
	return st
}

func (s *Session) lockedPairs() []model.Pair {
	out := make([]model.Pair, 0, len(s.locked))
	for p := range s.locked {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Phase returns the top-level state.
func (s *Session) Phase() model.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Current returns the active pair. Meaningful only while RUNNING.
func (s *Session) Current() model.Pair {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// IsLocked reports whether p has been finalized.
func (s *Session) IsLocked(p model.Pair) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.locked[p]
	return ok
}

// Visited returns the pairs in the order they first became current.
func (s *Session) Visited() []model.Pair {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Pair(nil), s.visited...)
}

// StartedAt returns when p first became current.
func (s *Session) StartedAt(p model.Pair) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.starts[p]
	return t, ok
}

// Answers returns a copy of the answer store.
func (s *Session) Answers() map[string]model.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answers.Snapshot()
}

// StudentName returns the login identifier, or "" before login.
func (s *Session) StudentName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, _ := s.answers.Get(StudentNameKey)
	return v.Text
}

// LastSeen returns the time of the most recent interaction.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}
