package session

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-casebook/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fieldMap map[string]model.Pair

func (f fieldMap) PairOf(key string) (model.Pair, bool) {
	p, ok := f[key]
	return p, ok
}

type staticPassword string

func (p staticPassword) Verify(pw string) bool { return pw == string(p) }

var testFields = fieldMap{
	"s1_p1_vdo1":   {Scenario: 1, Phase: 1},
	"s1_flowchart": {Scenario: 1, Phase: 2},
	"s1_essay1":    {Scenario: 1, Phase: 3},
	"s2_essay1":    {Scenario: 2, Phase: 3},
}

func newRunning(t *testing.T) (*Session, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	s := New(uuid.New(), clock, NewTimer(DefaultAllotments, time.Second), testFields)
	require.NoError(t, s.Login("School A / ID 7"))
	require.NoError(t, s.Start("1234", staticPassword("1234")))
	return s, clock
}

func TestSession_EndToEndWalkthrough(t *testing.T) {
	clock := newFakeClock()
	s := New(uuid.New(), clock, NewTimer(DefaultAllotments, time.Second), testFields)
	assert.Equal(t, model.PhaseLogin, s.Phase())

	require.NoError(t, s.Login("School A / ID 7"))
	assert.Equal(t, model.PhaseWait, s.Phase())
	assert.Equal(t, "School A / ID 7", s.StudentName())
	assert.Equal(t, model.Scalar("School A / ID 7"), s.Answers()[StudentNameKey])

	require.NoError(t, s.Start("1234", staticPassword("1234")))
	assert.Equal(t, model.PhaseRunning, s.Phase())
	assert.Equal(t, model.Pair{Scenario: 1, Phase: 1}, s.Current())

	tr, err := s.Advance(model.Pair{Scenario: 1, Phase: 1}, TriggerManual)
	require.NoError(t, err)
	require.NotNil(t, tr)
	assert.Equal(t, model.Pair{Scenario: 1, Phase: 2}, s.Current())
	assert.True(t, s.IsLocked(model.Pair{Scenario: 1, Phase: 1}))

	clock.Advance(240 * time.Second)
	tr = s.Tick()
	require.NotNil(t, tr)
	assert.Equal(t, TriggerTimer, tr.Trigger)
	assert.Equal(t, model.Pair{Scenario: 1, Phase: 3}, s.Current())

	for s.Phase() == model.PhaseRunning {
		_, err := s.Advance(s.Current(), TriggerManual)
		require.NoError(t, err)
	}
	assert.Equal(t, model.PhaseFinish, s.Phase())
	assert.Len(t, s.Snapshot().LockedPairs, model.PairsPerSession)
}

func TestSession_VisitsEveryPairOnceInOrder(t *testing.T) {
	s, clock := newRunning(t)

	// Mix timer and manual advances.
	for i := 0; s.Phase() == model.PhaseRunning; i++ {
		if i%2 == 0 {
			clock.Advance(s.timer.Allotted(s.Current().Phase))
			require.NotNil(t, s.Tick())
		} else {
			_, err := s.Advance(s.Current(), TriggerManual)
			require.NoError(t, err)
		}
	}

	assert.Equal(t, model.AllPairs(), s.Visited())
	assert.Equal(t, model.AllPairs(), s.Snapshot().LockedPairs)
}

func TestSession_TimerAndManualProduceSameState(t *testing.T) {
	timerFirst, c1 := newRunning(t)
	manualFirst, c2 := newRunning(t)
	from := model.FirstPair

	c1.Advance(121 * time.Second)
	require.NotNil(t, timerFirst.Tick())
	tr, err := timerFirst.Advance(from, TriggerManual)
	require.NoError(t, err)
	assert.Nil(t, tr, "manual advance after timer must be a no-op")

	tr, err = manualFirst.Advance(from, TriggerManual)
	require.NoError(t, err)
	require.NotNil(t, tr)
	c2.Advance(121 * time.Second)
	assert.Nil(t, manualFirst.Tick(), "the new pair's timer has just started")

	a, b := timerFirst.Snapshot(), manualFirst.Snapshot()
	assert.Equal(t, a.Current, b.Current)
	assert.Equal(t, a.LockedPairs, b.LockedPairs)
	assert.Equal(t, a.Phase, b.Phase)
}

func TestSession_ManualAdvanceAfterExpiryWithoutTick(t *testing.T) {
	s, clock := newRunning(t)
	clock.Advance(500 * time.Second)

	// The click arrives before any poll; the expiry is observed inside
	// Advance and only one transition happens.
	tr, err := s.Advance(model.FirstPair, TriggerManual)
	require.NoError(t, err)
	require.NotNil(t, tr)
	assert.Equal(t, model.FirstPair, tr.From)
	assert.Equal(t, model.Pair{Scenario: 1, Phase: 2}, s.Current())
	assert.Len(t, s.Snapshot().LockedPairs, 1)
}

func TestSession_ConcurrentTriggersApplyOnce(t *testing.T) {
	s, clock := newRunning(t)
	clock.Advance(120 * time.Second)

	var applied atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var tr *Transition
			if i%2 == 0 {
				tr = s.Tick()
			} else {
				var err error
				tr, err = s.Advance(model.FirstPair, TriggerManual)
				assert.NoError(t, err)
			}
			if tr != nil && tr.From == model.FirstPair {
				applied.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), applied.Load())
	assert.Equal(t, model.Pair{Scenario: 1, Phase: 2}, s.Current())
	assert.Equal(t, []model.Pair{model.FirstPair}, s.Snapshot().LockedPairs)
}

func TestSession_ExpirySignalledOncePerPair(t *testing.T) {
	s, clock := newRunning(t)
	clock.Advance(10 * time.Minute)

	require.NotNil(t, s.Tick())
	for i := 0; i < 5; i++ {
		assert.Nil(t, s.Tick())
	}
	assert.Equal(t, model.Pair{Scenario: 1, Phase: 2}, s.Current())
}

func TestSession_RemainingDecreasesAndClampsAtZero(t *testing.T) {
	s, clock := newRunning(t)

	prev := s.Snapshot().RemainingSeconds
	assert.Equal(t, 120.0, prev)
	for i := 0; i < 11; i++ {
		clock.Advance(10 * time.Second)
		cur := s.Snapshot().RemainingSeconds
		assert.Less(t, cur, prev)
		prev = cur
	}
	clock.Advance(time.Hour)
	assert.Equal(t, 0.0, s.Snapshot().RemainingSeconds)
}

func TestSession_SnapshotJSONKeepsZeroRemaining(t *testing.T) {
	s, clock := newRunning(t)
	clock.Advance(time.Hour)

	raw, err := json.Marshal(s.Snapshot())
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	require.Contains(t, body, "remaining_seconds")
	assert.Equal(t, 0.0, body["remaining_seconds"])
	assert.Equal(t, 120.0, body["allotted_seconds"])
}

func TestSession_StartTimeNeverReset(t *testing.T) {
	s, clock := newRunning(t)
	first, ok := s.StartedAt(model.FirstPair)
	require.True(t, ok)

	clock.Advance(30 * time.Second)
	s.Tick()
	again, _ := s.StartedAt(model.FirstPair)
	assert.Equal(t, first, again)
}

func TestSession_LockedPairRejectsWrites(t *testing.T) {
	s, _ := newRunning(t)

	_, err := s.SetAnswer("s1_p1_vdo1", model.Scalar("Fasciculation"))
	require.NoError(t, err)

	_, err = s.Advance(model.FirstPair, TriggerManual)
	require.NoError(t, err)

	_, err = s.SetAnswer("s1_p1_vdo1", model.Scalar("changed"))
	assert.ErrorIs(t, err, ErrPairLocked)
	assert.Equal(t, model.Scalar("Fasciculation"), s.Answers()["s1_p1_vdo1"])
}

func TestSession_WriteAfterExpiryIsRefused(t *testing.T) {
	s, clock := newRunning(t)
	clock.Advance(121 * time.Second)

	tr, err := s.SetAnswer("s1_p1_vdo1", model.Scalar("late"))
	assert.ErrorIs(t, err, ErrPairLocked)
	require.NotNil(t, tr)
	_, stored := s.Answers()["s1_p1_vdo1"]
	assert.False(t, stored)
}

func TestSession_WriteRules(t *testing.T) {
	s, _ := newRunning(t)

	_, err := s.SetAnswer("s1_essay1", model.Scalar("early"))
	assert.ErrorIs(t, err, ErrNotCurrentPair)

	_, err = s.SetAnswer("nope", model.Scalar("x"))
	assert.ErrorIs(t, err, ErrUnknownField)

	_, err = s.SetAnswer("s1_p1_vdo1", model.Value{Kind: "bogus"})
	assert.ErrorIs(t, err, model.ErrInvalidValue)
}

func TestSession_RejectedInputsLeaveStateAlone(t *testing.T) {
	clock := newFakeClock()
	s := New(uuid.New(), clock, NewTimer(DefaultAllotments, time.Second), testFields)

	assert.ErrorIs(t, s.Login("   "), ErrEmptyName)
	assert.Equal(t, model.PhaseLogin, s.Phase())

	assert.ErrorIs(t, s.Start("1234", staticPassword("1234")), ErrWrongPhase)

	require.NoError(t, s.Login("student"))
	assert.ErrorIs(t, s.Start("0000", staticPassword("1234")), ErrWrongPassword)
	assert.Equal(t, model.PhaseWait, s.Phase())

	_, err := s.Advance(model.FirstPair, TriggerManual)
	assert.ErrorIs(t, err, ErrWrongPhase)
	assert.ErrorIs(t, s.Login("again"), ErrWrongPhase)
}

func TestSession_AdvanceRejectsFuturePair(t *testing.T) {
	s, _ := newRunning(t)
	_, err := s.Advance(model.Pair{Scenario: 2, Phase: 1}, TriggerManual)
	assert.ErrorIs(t, err, ErrNotCurrentPair)
	assert.Equal(t, model.FirstPair, s.Current())
}

func finish(t *testing.T, s *Session) {
	t.Helper()
	for s.Phase() == model.PhaseRunning {
		_, err := s.Advance(s.Current(), TriggerManual)
		require.NoError(t, err)
	}
}

func TestSession_AdvanceAfterFinishIsNoop(t *testing.T) {
	s, _ := newRunning(t)
	finish(t, s)

	tr, err := s.Advance(model.LastPair, TriggerManual)
	assert.NoError(t, err)
	assert.Nil(t, tr)
	assert.Nil(t, s.Tick())
	assert.Equal(t, model.PhaseFinish, s.Phase())
}

func TestSession_GradeOnce(t *testing.T) {
	s, _ := newRunning(t)

	_, err := s.GradeOnce(func(map[string]model.Value) map[string]model.Value { return nil })
	assert.ErrorIs(t, err, ErrWrongPhase)

	finish(t, s)
	assert.False(t, s.Snapshot().GradingDone)

	var calls atomic.Int32
	grade := func(answers map[string]model.Value) map[string]model.Value {
		calls.Add(1)
		return map[string]model.Value{"s1_grade1": model.Scalar("Score: 7/10")}
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.GradeOnce(grade)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	st := s.Snapshot()
	assert.True(t, st.GradingDone)
	assert.Equal(t, model.Scalar("Score: 7/10"), st.Answers["s1_grade1"])
}

func TestSession_SubmitSlot(t *testing.T) {
	s, _ := newRunning(t)
	_, err := s.BeginSubmit()
	assert.ErrorIs(t, err, ErrWrongPhase)

	finish(t, s)

	_, err = s.BeginSubmit()
	require.NoError(t, err)
	_, err = s.BeginSubmit()
	assert.ErrorIs(t, err, ErrSubmitInFlight)

	s.EndSubmit(false)
	answers, err := s.BeginSubmit()
	require.NoError(t, err)
	assert.Contains(t, answers, StudentNameKey)

	s.EndSubmit(true)
	_, err = s.BeginSubmit()
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
	assert.True(t, s.Snapshot().Submitted)
}
