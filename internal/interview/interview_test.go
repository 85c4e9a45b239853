package interview

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fadilmartias/questy/internal/apperr"
	"github.com/fadilmartias/questy/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWorkflow struct {
	mu       sync.Mutex
	polls    []Poll
	pollErr  error
	reply    AnswerReply
	startErr error
	answers  []AnswerRequest
	starts   []StartRequest
	pollHits int
	// entered and block, when set, hold LatestQuestion until the test lets go.
	entered chan struct{}
	block   chan struct{}
}

var _ Workflow = (*fakeWorkflow)(nil)

func (f *fakeWorkflow) StartInterview(_ context.Context, req StartRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, req)
	return f.startErr
}

func (f *fakeWorkflow) LatestQuestion(_ context.Context, _ string) (Poll, error) {
	if f.block != nil {
		f.entered <- struct{}{}
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pollHits++
	if f.pollErr != nil {
		return Poll{}, f.pollErr
	}
	if len(f.polls) == 0 {
		return Poll{}, nil
	}
	p := f.polls[0]
	f.polls = f.polls[1:]
	return p, nil
}

func (f *fakeWorkflow) SubmitAnswer(_ context.Context, req AnswerRequest) (AnswerReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, req)
	return f.reply, nil
}

func (f *fakeWorkflow) hits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pollHits
}

var testCV = &CV{Filename: "cv.pdf", Data: []byte("%PDF")}

func startedSession(t *testing.T, wf *fakeWorkflow) *Session {
	t.Helper()
	s := NewSession("s1", wf, Options{MaxQuestions: 20}, log.Nop())
	require.NoError(t, s.Start(context.Background(), "Jane", "555-1234", testCV, nil))
	return s
}

func TestStartRequiresAllFields(t *testing.T) {
	wf := &fakeWorkflow{}
	s := NewSession("s1", wf, Options{}, log.Nop())
	uploads := 0
	upload := func(context.Context, string, *CV) error { uploads++; return nil }

	err := s.Start(context.Background(), "Jane", " ", nil, upload)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, e.Kind)
	assert.Contains(t, e.Fields, "phone")
	assert.Contains(t, e.Fields, "cv")
	assert.Zero(t, uploads)
	assert.Empty(t, wf.starts)
	assert.Equal(t, StageStart, s.Snapshot().Stage)
}

func TestStartMovesToInterview(t *testing.T) {
	wf := &fakeWorkflow{}
	s := NewSession("s1", wf, Options{MaxQuestions: 20}, log.Nop())
	var uploaded string
	err := s.Start(context.Background(), "Jane", "555", testCV, func(_ context.Context, id string, cv *CV) error {
		uploaded = id + "/" + cv.Filename
		return nil
	})
	require.NoError(t, err)

	st := s.Snapshot()
	assert.Equal(t, StageInterview, st.Stage)
	assert.True(t, st.WaitingForQuestion)
	assert.Equal(t, 1, st.QuestionCount)
	assert.Equal(t, 5, st.Progress)
	assert.Equal(t, "s1/cv.pdf", uploaded)
	assert.Equal(t, []StartRequest{{StudentID: "s1", Name: "Jane", Phone: "555"}}, wf.starts)
}

func TestStartFailureKeepsStartStage(t *testing.T) {
	wf := &fakeWorkflow{startErr: apperr.Service("boom", 500)}
	s := NewSession("s1", wf, Options{}, log.Nop())

	err := s.Start(context.Background(), "Jane", "555", testCV, nil)
	require.Error(t, err)
	st := s.Snapshot()
	assert.Equal(t, StageStart, st.Stage)
	assert.NotEmpty(t, st.Status)
}

func TestTickIsNoopWhenNotWaiting(t *testing.T) {
	wf := &fakeWorkflow{}
	s := NewSession("s1", wf, Options{}, log.Nop())
	require.NoError(t, s.Tick(context.Background()))
	assert.Zero(t, wf.hits())

	wf.polls = []Poll{{Question: "Q1"}}
	s = startedSession(t, wf)
	require.NoError(t, s.Tick(context.Background()))
	require.NoError(t, s.Tick(context.Background()))
	assert.Equal(t, 1, wf.hits())
	assert.Equal(t, "Q1", s.Snapshot().CurrentQuestion)
}

func TestQuestionThenStop(t *testing.T) {
	wf := &fakeWorkflow{polls: []Poll{{}, {Question: "Tell me about yourself"}}}
	s := startedSession(t, wf)
	ctx := context.Background()

	require.NoError(t, s.Tick(ctx))
	assert.True(t, s.Snapshot().WaitingForQuestion)

	require.NoError(t, s.Tick(ctx))
	st := s.Snapshot()
	assert.Equal(t, "Tell me about yourself", st.CurrentQuestion)
	assert.False(t, st.WaitingForQuestion)

	require.NoError(t, s.SubmitAnswer(ctx, "I am Jane"))
	st = s.Snapshot()
	assert.Equal(t, 2, st.QuestionCount)
	assert.True(t, st.WaitingForQuestion)
	assert.Empty(t, st.CurrentQuestion)
	assert.Equal(t, AnswerRequest{StudentID: "s1", Name: "Jane", Question: "Tell me about yourself", Answer: "I am Jane"}, wf.answers[0])

	wf.polls = []Poll{{Stop: true}}
	require.NoError(t, s.Tick(ctx))
	st = s.Snapshot()
	assert.Equal(t, StageComplete, st.Stage)
	assert.Empty(t, st.CurrentQuestion)

	hits := wf.hits()
	require.NoError(t, s.Tick(ctx))
	assert.Equal(t, hits, wf.hits(), "no polling after completion")
}

func TestQuestionWinsOverStop(t *testing.T) {
	wf := &fakeWorkflow{polls: []Poll{{Question: "Q", Stop: true}}}
	s := startedSession(t, wf)
	require.NoError(t, s.Tick(context.Background()))
	st := s.Snapshot()
	assert.Equal(t, StageInterview, st.Stage)
	assert.Equal(t, "Q", st.CurrentQuestion)
}

func TestBlankAnswerChangesNothing(t *testing.T) {
	wf := &fakeWorkflow{polls: []Poll{{Question: "Q"}}}
	s := startedSession(t, wf)
	require.NoError(t, s.Tick(context.Background()))
	before := s.Snapshot()

	err := s.SubmitAnswer(context.Background(), "   ")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Empty(t, wf.answers)
	assert.Equal(t, before, s.Snapshot())
}

func TestAnswerWithMessageCompletes(t *testing.T) {
	wf := &fakeWorkflow{polls: []Poll{{Question: "Q"}}, reply: AnswerReply{Message: "Thank you for your time"}}
	s := startedSession(t, wf)
	require.NoError(t, s.Tick(context.Background()))

	require.NoError(t, s.SubmitAnswer(context.Background(), "done"))
	st := s.Snapshot()
	assert.Equal(t, StageComplete, st.Stage)
	assert.Equal(t, "Thank you for your time", st.Status)
}

func TestAnswerWithoutQuestionRejected(t *testing.T) {
	s := startedSession(t, &fakeWorkflow{})
	err := s.SubmitAnswer(context.Background(), "hello")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestEnforcedMaxQuestions(t *testing.T) {
	wf := &fakeWorkflow{polls: []Poll{{Question: "Q1"}, {Question: "Q2"}}}
	s := NewSession("s1", wf, Options{MaxQuestions: 2, EnforceMaxQuestions: true}, log.Nop())
	ctx := context.Background()
	require.NoError(t, s.Start(ctx, "Jane", "555", testCV, nil))

	require.NoError(t, s.Tick(ctx))
	require.NoError(t, s.SubmitAnswer(ctx, "a1"))
	require.NoError(t, s.Tick(ctx))
	require.NoError(t, s.SubmitAnswer(ctx, "a2"))
	st := s.Snapshot()
	assert.Equal(t, StageComplete, st.Stage)
	assert.Equal(t, 100, st.Progress)
}

func TestProgressClamped(t *testing.T) {
	assert.Equal(t, 100, progress(25, 20))
	assert.Equal(t, 50, progress(10, 20))
	assert.Equal(t, 0, progress(3, 0))
}

func TestStalePollDiscarded(t *testing.T) {
	wf := &fakeWorkflow{polls: []Poll{{Question: "Q1"}}}
	s := startedSession(t, wf)
	ctx := context.Background()
	require.NoError(t, s.Tick(ctx))

	require.NoError(t, s.SubmitAnswer(ctx, "a1"))
	wf.polls = []Poll{{Question: "Q1"}}
	wf.entered = make(chan struct{})
	wf.block = make(chan struct{})

	epochBefore := s.Snapshot().Epoch
	done := make(chan error, 1)
	go func() { done <- s.Tick(ctx) }()
	<-wf.entered
	s.mu.Lock()
	s.state.Epoch++
	s.mu.Unlock()
	close(wf.block)
	require.NoError(t, <-done)

	st := s.Snapshot()
	assert.Empty(t, st.CurrentQuestion, "stale result must not surface")
	assert.Equal(t, epochBefore+1, st.Epoch)
}

func TestPollFailureSetsBanner(t *testing.T) {
	wf := &fakeWorkflow{pollErr: errors.New("connection refused")}
	s := startedSession(t, wf)
	require.Error(t, s.Tick(context.Background()))
	st := s.Snapshot()
	assert.Equal(t, 1, st.ConsecutiveFailures)
	assert.NotEmpty(t, st.Status)
	assert.Equal(t, StageInterview, st.Stage)

	s.now = func() time.Time { return time.Now().Add(statusTTL + time.Second) }
	assert.Empty(t, s.Snapshot().Status)
}

func TestMarkAlreadyPassed(t *testing.T) {
	s := NewSession("s1", &fakeWorkflow{}, Options{}, log.Nop())
	s.MarkAlreadyPassed()
	assert.Equal(t, StageAlreadyPassed, s.Snapshot().Stage)
	err := s.Start(context.Background(), "Jane", "555", testCV, nil)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestPollerRunsUntilStop(t *testing.T) {
	wf := &fakeWorkflow{polls: []Poll{{}, {}, {Stop: true}}}
	s := startedSession(t, wf)
	p := NewPoller(s, PollerOptions{Interval: time.Millisecond, MaxWait: time.Second}, log.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, p.Run(ctx))
	assert.Equal(t, StageComplete, s.Snapshot().Stage)
	assert.Equal(t, 3, wf.hits())
}

func TestPollerTimesOut(t *testing.T) {
	wf := &fakeWorkflow{pollErr: errors.New("connection refused")}
	s := startedSession(t, wf)
	p := NewPoller(s, PollerOptions{
		Interval:    time.Millisecond,
		BackoffBase: time.Millisecond,
		BackoffMax:  5 * time.Millisecond,
		MaxWait:     30 * time.Millisecond,
	}, log.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := p.Run(ctx)
	assert.True(t, apperr.Is(err, apperr.KindTimeout))
	st := s.Snapshot()
	assert.False(t, st.WaitingForQuestion)
	assert.NotEmpty(t, st.Error)
	assert.Greater(t, wf.hits(), 1)
}

func TestPollerCancelled(t *testing.T) {
	s := startedSession(t, &fakeWorkflow{})
	p := NewPoller(s, PollerOptions{Interval: time.Hour}, log.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- p.Run(ctx) }()
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
}

func TestCalculateBackoffBounds(t *testing.T) {
	base, max := 100*time.Millisecond, time.Second
	for attempt := 1; attempt <= 10; attempt++ {
		d := calculateBackoff(base, max, attempt)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, max+max/8)
	}
	first := calculateBackoff(base, max, 1)
	assert.InDelta(t, float64(base), float64(first), float64(base)/8+1)
}

func TestRegistryTeardownStopsPoller(t *testing.T) {
	wf := &fakeWorkflow{}
	r := NewRegistry(wf, Options{MaxQuestions: 20}, PollerOptions{Interval: time.Millisecond}, log.Nop())
	s := r.Session("s1", func(*Session) {})
	require.NotNil(t, s)
	assert.Same(t, s, r.Session("s1", nil))
	require.NoError(t, s.Start(context.Background(), "Jane", "555", testCV, nil))

	r.StartPolling("s1")
	r.StartPolling("s1")
	require.Eventually(t, func() bool { return wf.hits() > 2 }, time.Second, time.Millisecond)
	r.Teardown("s1")
	hits := wf.hits()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, hits, wf.hits())
	assert.Nil(t, r.Session("s1", nil))
}

func TestPollerExitsWhileQuestionShown(t *testing.T) {
	wf := &fakeWorkflow{polls: []Poll{{Question: "Q1"}}}
	r := NewRegistry(wf, Options{MaxQuestions: 20}, PollerOptions{Interval: time.Millisecond, MaxWait: 20 * time.Millisecond}, log.Nop())
	s := r.Session("s1", func(*Session) {})
	require.NoError(t, s.Start(context.Background(), "Jane", "555", testCV, nil))

	r.StartPolling("s1")
	require.Eventually(t, func() bool { return !r.Running("s1") }, time.Second, time.Millisecond)
	st := s.Snapshot()
	assert.Equal(t, "Q1", st.CurrentQuestion)
	assert.False(t, st.WaitingForQuestion)
	assert.Empty(t, st.Error)
	hits := wf.hits()

	require.NoError(t, s.SubmitAnswer(context.Background(), "my answer"))
	r.StartPolling("s1")
	require.Eventually(t, func() bool { return wf.hits() > hits }, time.Second, time.Millisecond)
	r.Teardown("s1")
	assert.False(t, r.Running("s1"))
}
