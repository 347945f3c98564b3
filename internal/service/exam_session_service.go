package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-casebook/internal/content"
	"github.com/stemsi/exstem-casebook/internal/grading"
	"github.com/stemsi/exstem-casebook/internal/model"
	"github.com/stemsi/exstem-casebook/internal/session"
	"github.com/stemsi/exstem-casebook/internal/submission"
)

// ErrSubmissionFailed wraps any failed delivery to the remote form. The
// student may retry; CSV export stays available either way.
var ErrSubmissionFailed = errors.New("submission failed")

// ExamSessionService drives the exam flow of every live session.
type ExamSessionService struct {
	registry  *session.Registry
	content   *content.Provider
	assets    *AssetService
	verifier  session.PasswordVerifier
	grader    grading.Gateway
	submitter submission.Gateway
	archiver  submission.Archiver
	publisher EventPublisher
	clock     session.Clock
	formURL   string
	log       zerolog.Logger
}

// ExamSessionDeps bundles the collaborators of ExamSessionService.
type ExamSessionDeps struct {
	Registry      *session.Registry
	Content       *content.Provider
	Assets        *AssetService
	Verifier      session.PasswordVerifier
	Grader        grading.Gateway
	Submitter     submission.Gateway
	Archiver      submission.Archiver
	Publisher     EventPublisher
	Clock         session.Clock
	SubmissionURL string
}

// NewExamSessionService creates a new ExamSessionService. Nil archiver and
// publisher fall back to no-ops.
func NewExamSessionService(deps ExamSessionDeps, log zerolog.Logger) *ExamSessionService {
	s := &ExamSessionService{
		registry:  deps.Registry,
		content:   deps.Content,
		assets:    deps.Assets,
		verifier:  deps.Verifier,
		grader:    deps.Grader,
		submitter: deps.Submitter,
		archiver:  deps.Archiver,
		publisher: deps.Publisher,
		clock:     deps.Clock,
		formURL:   deps.SubmissionURL,
		log:       log.With().Str("component", "exam_session_service").Logger(),
	}
	if s.archiver == nil {
		s.archiver = submission.NopArchiver{}
	}
	if s.publisher == nil {
		s.publisher = NopPublisher{}
	}
	if s.grader == nil {
		s.grader = grading.Unconfigured{}
	}
	if s.clock == nil {
		s.clock = session.SystemClock{}
	}
	return s
}

// FieldView is a field as the client renders it.
type FieldView struct {
	content.Field
	Blocks []string `json:"blocks,omitempty"`
}

// AssetView is a scenario asset with its availability.
type AssetView struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Label     string `json:"label"`
	URL       string `json:"url"`
	Available bool   `json:"available"`
}

// PairContent is the question sheet of the current pair.
type PairContent struct {
	Pair             model.Pair  `json:"pair"`
	ScenarioTitle    string      `json:"scenario_title"`
	PhaseTitle       string      `json:"phase_title"`
	Prompt           string      `json:"prompt,omitempty"`
	Fields           []FieldView `json:"fields"`
	Assets           []AssetView `json:"assets,omitempty"`
	Warnings         []string    `json:"warnings,omitempty"`
	Editable         bool        `json:"editable"`
	RemainingSeconds float64     `json:"remaining_seconds"`
}

// Login opens a new session for the student and moves it to WAIT.
func (s *ExamSessionService) Login(ctx context.Context, studentName string) (*model.SessionState, error) {
	if strings.TrimSpace(studentName) == "" {
		return nil, session.ErrEmptyName
	}

	sess := s.registry.Create()
	if err := sess.Login(studentName); err != nil {
		s.registry.Remove(sess.ID())
		return nil, err
	}

	st := sess.Snapshot()
	s.log.Info().Str("session_id", st.ID.String()).Str("student", st.StudentName).Msg("Student logged in")
	s.publish(ctx, sess, model.EventLogin, nil)
	return &st, nil
}

// Start moves a waiting session to RUNNING when the proctor password is
// correct.
func (s *ExamSessionService) Start(ctx context.Context, id uuid.UUID, password string) (*model.SessionState, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}

	if err := sess.Start(password, s.verifier); err != nil {
		if errors.Is(err, session.ErrWrongPassword) {
			s.log.Warn().Str("session_id", id.String()).Msg("Wrong proctor password")
		}
		return nil, err
	}

	s.log.Info().Str("session_id", id.String()).Msg("Exam started")
	s.publish(ctx, sess, model.EventStart, nil)
	st := sess.Snapshot()
	return &st, nil
}

// State runs the render pass: it applies a pending expiry, then returns the
// snapshot the client renders.
func (s *ExamSessionService) State(ctx context.Context, id uuid.UUID) (*model.SessionState, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}

	s.observe(ctx, sess, sess.Tick())
	st := sess.Snapshot()
	return &st, nil
}

// Content returns the question sheet of the current pair. Missing asset
// files surface as warnings.
func (s *ExamSessionService) Content(ctx context.Context, id uuid.UUID) (*PairContent, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}

	s.observe(ctx, sess, sess.Tick())
	st := sess.Snapshot()
	if st.Phase != model.PhaseRunning || st.Current == nil {
		return nil, session.ErrWrongPhase
	}

	pair := *st.Current
	phase, err := s.content.Phase(pair)
	if err != nil {
		return nil, err
	}

	out := &PairContent{
		Pair:             pair,
		PhaseTitle:       phase.Title,
		Prompt:           phase.Prompt,
		Fields:           make([]FieldView, 0, len(phase.Fields)),
		Editable:         st.Editable,
		RemainingSeconds: st.RemainingSeconds,
	}
	for i := range phase.Fields {
		f := &phase.Fields[i]
		view := FieldView{Field: *f}
		if f.Kind == content.FieldOrdering {
			view.Blocks = f.Blocks()
		}
		out.Fields = append(out.Fields, view)
	}

	if sc, ok := s.content.Scenario(pair.Scenario); ok {
		out.ScenarioTitle = sc.Title
		for _, a := range sc.Assets {
			view := AssetView{
				Name:  a.Name,
				Kind:  a.Kind,
				Label: a.Label,
				URL:   AssetURL(pair.Scenario, a.Name),
			}
			if _, err := s.assets.Resolve(pair.Scenario, a.Name); err != nil {
				out.Warnings = append(out.Warnings, fmt.Sprintf("%s is not available: %s", a.Label, a.File))
				s.log.Warn().Err(err).Int("scenario", pair.Scenario).Str("asset", a.Name).Msg("Asset missing")
			} else {
				view.Available = true
			}
			out.Assets = append(out.Assets, view)
		}
	}

	return out, nil
}

// SetAnswer writes one answer for the current pair.
func (s *ExamSessionService) SetAnswer(ctx context.Context, id uuid.UUID, key string, value model.Value) (*model.SessionState, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}

	if _, ok := s.content.PairOf(key); !ok {
		return nil, fmt.Errorf("%w: %s", session.ErrUnknownField, key)
	}
	if err := s.content.CheckValue(key, value); err != nil {
		return nil, err
	}

	t, err := sess.SetAnswer(key, value)
	s.observe(ctx, sess, t)
	if err != nil {
		return nil, err
	}

	st := sess.Snapshot()
	return &st, nil
}

// Advance leaves pair from. A click that lost the race against the timer is
// a no-op and still returns the fresh snapshot.
func (s *ExamSessionService) Advance(ctx context.Context, id uuid.UUID, from model.Pair) (*model.SessionState, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}

	t, err := sess.Advance(from, session.TriggerManual)
	s.observe(ctx, sess, t)
	if err != nil {
		return nil, err
	}

	st := sess.Snapshot()
	return &st, nil
}

// Results grades the essays on the first call after FINISH and returns the
// complete answer sheet.
func (s *ExamSessionService) Results(ctx context.Context, id uuid.UUID) (*model.SessionState, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}

	if err := s.grade(ctx, sess); err != nil {
		return nil, err
	}

	st := sess.Snapshot()
	return &st, nil
}

// Export returns the graded answer sheet for download.
func (s *ExamSessionService) Export(ctx context.Context, id uuid.UUID) (map[string]model.Value, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}

	if err := s.grade(ctx, sess); err != nil {
		return nil, err
	}
	return sess.Answers(), nil
}

// Submit sends the graded answer sheet to the remote form once. Failed
// attempts release the slot so the student can retry.
func (s *ExamSessionService) Submit(ctx context.Context, id uuid.UUID) (*model.SubmitResult, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}

	if err := s.grade(ctx, sess); err != nil {
		return nil, err
	}

	answers, err := sess.BeginSubmit()
	if err != nil {
		return nil, err
	}

	ok, sendErr := s.submitter.Submit(ctx, answers, s.formURL, s.content.SubmissionFields())
	sess.EndSubmit(ok)

	sessLog := s.log.With().Str("session_id", id.String()).Logger()
	if !ok {
		if sendErr == nil {
			sendErr = submission.ErrRejected
		}
		sessLog.Warn().Err(sendErr).Msg("Submission failed")
		return nil, fmt.Errorf("%w: %w", ErrSubmissionFailed, sendErr)
	}

	sessLog.Info().Msg("Answers submitted")
	s.publish(ctx, sess, model.EventSubmitted, nil)

	rec := model.NewSubmissionRecord(id, sess.StudentName(), answers, s.clock.Now())
	if err := s.archiver.Enqueue(ctx, rec); err != nil {
		sessLog.Error().Err(err).Msg("Queue submission for archive failed")
	}

	return &model.SubmitResult{Accepted: true, Submitted: true}, nil
}

// grade runs the grading pass exactly once per session. It polls the timer
// first so an expired last pair finishes the exam. The pass is detached from
// ctx and always runs to completion.
func (s *ExamSessionService) grade(ctx context.Context, sess *session.Session) error {
	s.observe(ctx, sess, sess.Tick())

	gradeCtx := context.WithoutCancel(ctx)
	essays := s.content.GradedEssays()

	ran, err := sess.GradeOnce(func(answers map[string]model.Value) map[string]model.Value {
		outcomes := grading.Pass(gradeCtx, s.grader, essays, answers)
		results := make(map[string]model.Value, len(outcomes))
		failed := 0
		for _, o := range outcomes {
			results[o.Essay.GradeKey] = model.Scalar(o.Result.Render())
			if !o.Result.OK() {
				failed++
				s.log.Warn().
					Str("session_id", sess.ID().String()).
					Str("essay", o.Essay.AnswerKey).
					Str("kind", string(o.Result.Kind)).
					Str("detail", o.Result.Detail).
					Msg("Essay not graded")
			}
		}
		s.log.Info().
			Str("session_id", sess.ID().String()).
			Int("graded", len(outcomes)-failed).
			Int("failed", failed).
			Msg("Grading pass complete")
		return results
	})
	if err != nil {
		return err
	}
	if ran {
		s.publish(ctx, sess, model.EventGraded, nil)
	}
	return nil
}

// observe logs and publishes a transition applied by the session.
func (s *ExamSessionService) observe(ctx context.Context, sess *session.Session, t *session.Transition) {
	if t == nil {
		return
	}

	ev := s.log.Info().
		Str("session_id", sess.ID().String()).
		Str("trigger", string(t.Trigger)).
		Str("from", t.From.String())
	if t.Finished {
		ev.Msg("Exam finished")
		s.publish(ctx, sess, model.EventFinish, t)
		return
	}
	ev.Str("to", t.To.String()).Msg("Pair advanced")
	s.publish(ctx, sess, model.EventAdvance, t)
}

func (s *ExamSessionService) publish(ctx context.Context, sess *session.Session, typ model.EventType, t *session.Transition) {
	ev := model.SessionEvent{
		Type:        typ,
		SessionID:   sess.ID(),
		StudentName: sess.StudentName(),
		Phase:       sess.Phase(),
		At:          s.clock.Now(),
	}
	if t != nil {
		from := t.From
		ev.From = &from
		ev.Trigger = string(t.Trigger)
		if !t.Finished {
			to := t.To
			ev.To = &to
		}
	}
	s.publisher.Publish(ctx, ev)
}
