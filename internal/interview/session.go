package interview

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/fadilmartias/questy/internal/apperr"
	"github.com/fadilmartias/questy/pkg/log"
)

const statusTTL = 5 * time.Second

type Options struct {
	MaxQuestions        int
	EnforceMaxQuestions bool
}

// Session is the interview of one student. All mutations happen under mu;
// network calls are made without holding it and their results are dropped
// when the epoch moved on in the meantime.
type Session struct {
	mu         sync.Mutex
	state      State
	workflow   Workflow
	opts       Options
	logger     log.Logger
	now        func() time.Time
	lastHealth time.Time
	submitting bool
	kick       chan struct{}
}

func NewSession(studentID string, workflow Workflow, opts Options, logger log.Logger) *Session {
	if opts.MaxQuestions <= 0 {
		opts.MaxQuestions = 20
	}
	return &Session{
		state: State{
			Stage:        StageStart,
			StudentID:    studentID,
			MaxQuestions: opts.MaxQuestions,
		},
		workflow: workflow,
		opts:     opts,
		logger:   log.With(logger, log.Fields{"student_id": studentID}),
		now:      time.Now,
		kick:     make(chan struct{}, 1),
	}
}

// Snapshot returns a copy of the state with expired banners dropped.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	if st.Status != "" && !st.StatusExpiresAt.IsZero() && s.now().After(st.StatusExpiresAt) {
		st.Status = ""
	}
	st.Progress = progress(st.QuestionCount, st.MaxQuestions)
	return st
}

func progress(count, max int) int {
	if max <= 0 {
		return 0
	}
	p := count * 100 / max
	if p > 100 {
		p = 100
	}
	return p
}

// MarkAlreadyPassed is only valid before the interview started.
func (s *Session) MarkAlreadyPassed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Stage == StageStart {
		s.state.Stage = StageAlreadyPassed
		s.state.Epoch++
	}
}

func (s *Session) setStatus(msg string) {
	s.state.Status = msg
	s.state.StatusExpiresAt = s.now().Add(statusTTL)
}

func (s *Session) complete(msg string) {
	s.state.Stage = StageComplete
	s.state.CurrentQuestion = ""
	s.state.WaitingForQuestion = false
	s.state.Epoch++
	if msg != "" {
		s.setStatus(msg)
	}
}

// Start validates the form, uploads the CV and asks the workflow to begin.
func (s *Session) Start(ctx context.Context, name, phone string, cv *CV, upload UploadFunc) error {
	name = strings.TrimSpace(name)
	phone = strings.TrimSpace(phone)
	fields := map[string]string{}
	if name == "" {
		fields["name"] = "Name is required"
	}
	if phone == "" {
		fields["phone"] = "Phone number is required"
	}
	if cv == nil || len(cv.Data) == 0 {
		fields["cv"] = "CV file is required"
	}
	if len(fields) > 0 {
		return apperr.Validation("Please fill in all fields and upload your CV", fields)
	}

	s.mu.Lock()
	if s.state.Stage != StageStart {
		stage := s.state.Stage
		s.mu.Unlock()
		return apperr.Conflict("Interview cannot be started from stage " + string(stage))
	}
	if s.submitting {
		s.mu.Unlock()
		return apperr.Conflict("Interview is already being started")
	}
	s.submitting = true
	studentID := s.state.StudentID
	s.mu.Unlock()

	err := s.begin(ctx, studentID, name, phone, cv, upload)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitting = false
	if err != nil {
		s.setStatus("Failed to start interview: " + err.Error())
		return err
	}
	s.state.Stage = StageInterview
	s.state.Name = name
	s.state.Phone = phone
	s.state.QuestionCount = 1
	s.state.WaitingForQuestion = true
	s.state.CurrentQuestion = ""
	s.state.Error = ""
	s.state.Epoch++
	s.lastHealth = s.now()
	s.setStatus("Interview started, waiting for the first question")
	s.logger.Info().Msg("interview started")
	return nil
}

func (s *Session) begin(ctx context.Context, studentID, name, phone string, cv *CV, upload UploadFunc) error {
	if upload != nil {
		if err := upload(ctx, studentID, cv); err != nil {
			return err
		}
	}
	return s.workflow.StartInterview(ctx, StartRequest{StudentID: studentID, Name: name, Phone: phone})
}

// Tick polls the workflow once when a question is awaited.
func (s *Session) Tick(ctx context.Context) error {
	s.mu.Lock()
	if s.state.Stage != StageInterview || !s.state.WaitingForQuestion {
		s.lastHealth = s.now()
		s.mu.Unlock()
		return nil
	}
	epoch := s.state.Epoch
	studentID := s.state.StudentID
	s.mu.Unlock()

	poll, err := s.workflow.LatestQuestion(ctx, studentID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Epoch != epoch {
		s.logger.Debug().Uint64("epoch", epoch).Msg("discarding stale poll result")
		return nil
	}
	if err != nil {
		s.state.ConsecutiveFailures++
		s.setStatus("Connection problem while fetching the next question, retrying")
		return err
	}
	s.state.ConsecutiveFailures = 0
	s.lastHealth = s.now()

	switch {
	case poll.Question != "":
		s.state.CurrentQuestion = poll.Question
		s.state.WaitingForQuestion = false
		s.state.Epoch++
	case poll.Stop:
		s.complete("Interview complete")
		s.logger.Info().Msg("interview stopped by workflow")
	}
	return nil
}

// SubmitAnswer sends the answer for the current question.
func (s *Session) SubmitAnswer(ctx context.Context, answer string) error {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return apperr.Validation("Please enter an answer", map[string]string{"answer": "Answer is required"})
	}

	s.mu.Lock()
	if s.state.Stage != StageInterview || s.state.CurrentQuestion == "" {
		s.mu.Unlock()
		return apperr.Validation("There is no question to answer", nil)
	}
	if s.submitting {
		s.mu.Unlock()
		return apperr.Conflict("An answer is already being submitted")
	}
	s.submitting = true
	req := AnswerRequest{
		StudentID: s.state.StudentID,
		Name:      s.state.Name,
		Question:  s.state.CurrentQuestion,
		Answer:    answer,
	}
	epoch := s.state.Epoch
	s.mu.Unlock()

	reply, err := s.workflow.SubmitAnswer(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitting = false
	if s.state.Epoch != epoch {
		return apperr.Conflict("Interview changed while the answer was being sent")
	}
	if err != nil {
		s.setStatus("Failed to submit answer: " + err.Error())
		return err
	}
	if reply.Message != "" {
		s.complete(reply.Message)
		return nil
	}

	if s.opts.EnforceMaxQuestions && s.state.QuestionCount >= s.opts.MaxQuestions {
		s.complete("Interview complete")
		return nil
	}
	s.state.QuestionCount++
	s.state.CurrentQuestion = ""
	s.state.WaitingForQuestion = true
	s.state.Epoch++
	s.lastHealth = s.now()
	select {
	case s.kick <- struct{}{}:
	default:
	}
	return nil
}

// fail stops waiting and records err in the state.
func (s *Session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.WaitingForQuestion = false
	s.state.Error = err.Error()
	s.state.Epoch++
	s.setStatus(err.Error())
}

func (s *Session) stalledFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Stage != StageInterview || !s.state.WaitingForQuestion {
		return 0
	}
	return s.now().Sub(s.lastHealth)
}

func (s *Session) awaiting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Stage == StageInterview && s.state.WaitingForQuestion
}

func (s *Session) failures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ConsecutiveFailures
}

// Kicked fires after an answer was accepted.
func (s *Session) Kicked() <-chan struct{} {
	return s.kick
}
