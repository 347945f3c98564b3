package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-casebook/internal/content"
	"github.com/stemsi/exstem-casebook/internal/grading"
	"github.com/stemsi/exstem-casebook/internal/model"
	"github.com/stemsi/exstem-casebook/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
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

type countingGrader struct {
	mu      sync.Mutex
	calls   []string
	answers []string
}

func (g *countingGrader) Grade(_ context.Context, question, studentAnswer, _ string) grading.Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, question)
	g.answers = append(g.answers, studentAnswer)
	return grading.Ok("Score: 7/10. Fine.")
}

type fakeSubmitter struct {
	mu       sync.Mutex
	fail     error
	calls    int
	received map[string]model.Value
}

func (f *fakeSubmitter) Submit(_ context.Context, answers map[string]model.Value, _ string, _ map[string]string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail != nil {
		return false, f.fail
	}
	f.received = answers
	return true, nil
}

type recordingArchiver struct {
	mu      sync.Mutex
	records []*model.SubmissionRecord
}

func (a *recordingArchiver) Enqueue(_ context.Context, rec *model.SubmissionRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, rec)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.SessionEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev model.SessionEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) types() []model.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc       *ExamSessionService
	clock     *fakeClock
	grader    *countingGrader
	submitter *fakeSubmitter
	archiver  *recordingArchiver
	publisher *recordingPublisher
	assetDir  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	provider := content.MustDefault()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	f := &fixture{
		clock:     clock,
		grader:    &countingGrader{},
		submitter: &fakeSubmitter{},
		archiver:  &recordingArchiver{},
		publisher: &recordingPublisher{},
		assetDir:  t.TempDir(),
	}
	registry := session.NewRegistry(clock, session.NewTimer(session.DefaultAllotments, time.Second), provider)
	f.svc = NewExamSessionService(ExamSessionDeps{
		Registry:      registry,
		Content:       provider,
		Assets:        NewAssetService(f.assetDir, provider),
		Verifier:      NewProctorVerifier("1234", ""),
		Grader:        f.grader,
		Submitter:     f.submitter,
		Archiver:      f.archiver,
		Publisher:     f.publisher,
		Clock:         clock,
		SubmissionURL: "https://forms.example/submit",
	}, zerolog.Nop())
	return f
}

func (f *fixture) running(t *testing.T) *model.SessionState {
	t.Helper()
	ctx := context.Background()
	st, err := f.svc.Login(ctx, "School A / ID 7")
	require.NoError(t, err)
	st, err = f.svc.Start(ctx, st.ID, "1234")
	require.NoError(t, err)
	return st
}

func (f *fixture) finish(t *testing.T, st *model.SessionState) {
	t.Helper()
	ctx := context.Background()
	for st.Phase == model.PhaseRunning {
		var err error
		st, err = f.svc.Advance(ctx, st.ID, *st.Current)
		require.NoError(t, err)
	}
	require.Equal(t, model.PhaseFinish, st.Phase)
}

func TestLoginAndStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Login(ctx, "   ")
	assert.ErrorIs(t, err, session.ErrEmptyName)

	st, err := f.svc.Login(ctx, "School A / ID 7")
	require.NoError(t, err)
	assert.Equal(t, model.PhaseWait, st.Phase)
	assert.Equal(t, "School A / ID 7", st.Answers["student_name"].Text)

	_, err = f.svc.Start(ctx, st.ID, "nope")
	assert.ErrorIs(t, err, session.ErrWrongPassword)

	st, err = f.svc.Start(ctx, st.ID, "1234")
	require.NoError(t, err)
	assert.Equal(t, model.PhaseRunning, st.Phase)
	assert.Equal(t, model.FirstPair, *st.Current)
	assert.Equal(t, []model.EventType{model.EventLogin, model.EventStart}, f.publisher.types())
}

func TestState_TimerAdvancesOnPoll(t *testing.T) {
	f := newFixture(t)
	st := f.running(t)

	f.clock.Advance(121 * time.Second)
	st, err := f.svc.State(context.Background(), st.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Pair{Scenario: 1, Phase: 2}, *st.Current)
	assert.True(t, st.Editable)
	assert.Equal(t, []model.Pair{{Scenario: 1, Phase: 1}}, st.LockedPairs)
	assert.Contains(t, f.publisher.types(), model.EventAdvance)
}

func TestSetAnswer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := f.running(t)

	_, err := f.svc.SetAnswer(ctx, st.ID, "s1_p1_system", model.Choice("Parasympathetic"))
	require.NoError(t, err)

	_, err = f.svc.SetAnswer(ctx, st.ID, "s1_p1_system", model.Choice("Limbic"))
	assert.ErrorIs(t, err, content.ErrValueMismatch)

	_, err = f.svc.SetAnswer(ctx, st.ID, "s1_grade1", model.Scalar("10/10"))
	assert.ErrorIs(t, err, session.ErrUnknownField)

	_, err = f.svc.SetAnswer(ctx, st.ID, "s1_essay1", model.Scalar("early"))
	assert.ErrorIs(t, err, session.ErrNotCurrentPair)

	f.clock.Advance(125 * time.Second)
	_, err = f.svc.SetAnswer(ctx, st.ID, "s1_p1_vdo1", model.Scalar("Fasciculation"))
	assert.ErrorIs(t, err, session.ErrPairLocked)

	st, err = f.svc.State(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, "Parasympathetic", st.Answers["s1_p1_system"].Text)
	_, written := st.Answers["s1_p1_vdo1"]
	assert.False(t, written)
}

func TestAdvance_StaleClickIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := f.running(t)

	first, err := f.svc.Advance(ctx, st.ID, model.FirstPair)
	require.NoError(t, err)
	second, err := f.svc.Advance(ctx, st.ID, model.FirstPair)
	require.NoError(t, err)

	assert.Equal(t, *first.Current, *second.Current)
	assert.Equal(t, first.LockedPairs, second.LockedPairs)
}

func TestContent_WarnsOnMissingAssets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := f.running(t)

	require.NoError(t, os.WriteFile(filepath.Join(f.assetDir, "Question1_VDO1.mp4"), []byte("mp4"), 0o644))

	c, err := f.svc.Content(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FirstPair, c.Pair)
	assert.True(t, c.Editable)
	require.Len(t, c.Assets, 2)
	assert.True(t, c.Assets[0].Available)
	assert.False(t, c.Assets[1].Available)
	require.Len(t, c.Warnings, 1)
	assert.Contains(t, c.Warnings[0], "Question1_VDO2.mp4")

	st, err = f.svc.Advance(ctx, st.ID, model.FirstPair)
	require.NoError(t, err)
	c, err = f.svc.Content(ctx, st.ID)
	require.NoError(t, err)
	require.Len(t, c.Fields, 1)
	assert.Len(t, c.Fields[0].Blocks, 10)
}

func TestResults_GradesEveryEssayOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := f.running(t)

	for st.Phase == model.PhaseRunning {
		if *st.Current == (model.Pair{Scenario: 1, Phase: 3}) {
			_, err := f.svc.SetAnswer(ctx, st.ID, "s1_essay1", model.Scalar("competitive inhibition"))
			require.NoError(t, err)
			_, err = f.svc.SetAnswer(ctx, st.ID, "s1_essay2", model.Scalar("nicotinic"))
			require.NoError(t, err)
		}
		var err error
		st, err = f.svc.Advance(ctx, st.ID, *st.Current)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Results(ctx, st.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	res, err := f.svc.Results(ctx, st.ID)
	require.NoError(t, err)
	assert.True(t, res.GradingDone)

	essays := content.MustDefault().GradedEssays()
	assert.Len(t, f.grader.calls, len(essays))
	for _, e := range essays {
		assert.Equal(t, "Score: 7/10. Fine.", res.Answers[e.GradeKey].Text, e.GradeKey)
	}
	assert.Equal(t, "competitive inhibition", f.grader.answers[0])
	assert.Equal(t, "nicotinic", f.grader.answers[1])
}

func TestResults_BlankEssaysStillGraded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := f.running(t)
	f.finish(t, st)

	res, err := f.svc.Results(ctx, st.ID)
	require.NoError(t, err)

	essays := content.MustDefault().GradedEssays()
	require.Len(t, f.grader.calls, len(essays))
	for i, e := range essays {
		assert.Empty(t, f.grader.answers[i], e.AnswerKey)
		_, ok := res.Answers[e.GradeKey]
		assert.True(t, ok, e.GradeKey)
	}
}

// atLastPair walks a running session to (5,3) by manual advances.
func (f *fixture) atLastPair(t *testing.T) *model.SessionState {
	t.Helper()
	ctx := context.Background()
	st := f.running(t)
	last := model.Pair{Scenario: 5, Phase: 3}
	for *st.Current != last {
		var err error
		st, err = f.svc.Advance(ctx, st.ID, *st.Current)
		require.NoError(t, err)
	}
	return st
}

func TestFinishingCalls_ApplyExpiredLastPair(t *testing.T) {
	ctx := context.Background()

	t.Run("Results", func(t *testing.T) {
		f := newFixture(t)
		st := f.atLastPair(t)
		f.clock.Advance(241 * time.Second)

		res, err := f.svc.Results(ctx, st.ID)
		require.NoError(t, err)
		assert.Equal(t, model.PhaseFinish, res.Phase)
		assert.True(t, res.GradingDone)
		assert.Equal(t, "Score: 7/10. Fine.", res.Answers["s5_grade1"].Text)
		assert.Contains(t, f.publisher.types(), model.EventFinish)
	})

	t.Run("Export", func(t *testing.T) {
		f := newFixture(t)
		st := f.atLastPair(t)
		f.clock.Advance(241 * time.Second)

		answers, err := f.svc.Export(ctx, st.ID)
		require.NoError(t, err)
		_, ok := answers["s1_grade1"]
		assert.True(t, ok)
	})

	t.Run("Submit", func(t *testing.T) {
		f := newFixture(t)
		st := f.atLastPair(t)
		f.clock.Advance(241 * time.Second)

		res, err := f.svc.Submit(ctx, st.ID)
		require.NoError(t, err)
		assert.True(t, res.Submitted)
	})

	t.Run("NotYetExpired", func(t *testing.T) {
		f := newFixture(t)
		st := f.atLastPair(t)
		f.clock.Advance(239 * time.Second)

		_, err := f.svc.Results(ctx, st.ID)
		assert.ErrorIs(t, err, session.ErrWrongPhase)
	})
}

func TestResults_MockMarkerWithoutCredential(t *testing.T) {
	f := newFixture(t)
	f.svc.grader = grading.Unconfigured{}
	ctx := context.Background()
	st := f.running(t)

	st, err := f.svc.Advance(ctx, st.ID, model.Pair{Scenario: 1, Phase: 1})
	require.NoError(t, err)
	st, err = f.svc.Advance(ctx, st.ID, model.Pair{Scenario: 1, Phase: 2})
	require.NoError(t, err)
	_, err = f.svc.SetAnswer(ctx, st.ID, "s1_essay1", model.Scalar("antagonist"))
	require.NoError(t, err)
	f.finish(t, st)

	res, err := f.svc.Results(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, grading.MockMarker, res.Answers["s1_grade1"].Text)
}

func TestResults_BeforeFinish(t *testing.T) {
	f := newFixture(t)
	st := f.running(t)

	_, err := f.svc.Results(context.Background(), st.ID)
	assert.ErrorIs(t, err, session.ErrWrongPhase)
}

func TestSubmit_RetryAfterFailureThenOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := f.running(t)
	f.finish(t, st)

	f.submitter.fail = errors.New("connection refused")
	_, err := f.svc.Submit(ctx, st.ID)
	assert.ErrorIs(t, err, ErrSubmissionFailed)
	assert.Empty(t, f.archiver.records)

	f.submitter.fail = nil
	res, err := f.svc.Submit(ctx, st.ID)
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Equal(t, "School A / ID 7", f.submitter.received["student_name"].Text)
	require.Len(t, f.archiver.records, 1)
	assert.Equal(t, st.ID, f.archiver.records[0].SessionID)

	_, err = f.svc.Submit(ctx, st.ID)
	assert.ErrorIs(t, err, session.ErrAlreadySubmitted)
	assert.Equal(t, 2, f.submitter.calls)
}

func TestExport_IncludesGrades(t *testing.T) {
	f := newFixture(t)
	f.svc.grader = grading.Unconfigured{}
	st := f.running(t)
	f.finish(t, st)

	answers, err := f.svc.Export(context.Background(), st.ID)
	require.NoError(t, err)
	assert.Equal(t, "School A / ID 7", answers["student_name"].Text)
	assert.Equal(t, grading.MockMarker, answers["s1_grade1"].Text)
	assert.Equal(t, grading.MockMarker, answers["s5_grade1"].Text)
}

func TestUnknownSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.State(context.Background(), uuid.New())
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}
