package interview

import (
	"context"
	"sync"

	"github.com/fadilmartias/questy/pkg/log"
)

type entry struct {
	session *Session
	cancel  context.CancelFunc
	done    chan struct{}
}

// Registry owns the live sessions and their pollers. At most one poller runs
// per student.
type Registry struct {
	mu       sync.Mutex
	entries  map[string]*entry
	workflow Workflow
	opts     Options
	poll     PollerOptions
	logger   log.Logger
}

func NewRegistry(workflow Workflow, opts Options, poll PollerOptions, logger log.Logger) *Registry {
	return &Registry{
		entries:  make(map[string]*entry),
		workflow: workflow,
		opts:     opts,
		poll:     poll,
		logger:   logger,
	}
}

// Session returns the student's session, creating it when fresh is non-nil.
// fresh runs on a newly created session before it becomes visible.
func (r *Registry) Session(studentID string, fresh func(*Session)) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[studentID]; ok {
		return e.session
	}
	if fresh == nil {
		return nil
	}
	s := NewSession(studentID, r.workflow, r.opts, r.logger)
	fresh(s)
	r.entries[studentID] = &entry{session: s}
	return s
}

// StartPolling launches the poller unless one is already running. The poller
// exits while a question is on screen; the next answer starts it again.
func (r *Registry) StartPolling(studentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[studentID]
	if !ok {
		return
	}
	if e.done != nil {
		select {
		case <-e.done:
		default:
			return
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done
	poller := NewPoller(e.session, r.poll, log.With(r.logger, log.Fields{"student_id": studentID}))
	go func() {
		defer cancel()
		for {
			err := poller.Run(ctx)
			if err != nil && ctx.Err() == nil {
				r.logger.Warn().Err(err).Str("student_id", studentID).Msg("[Poller] stopped")
			}
			// done is closed under mu so an answer that arrives while the
			// poller is exiting either sees it running or starts a new one.
			r.mu.Lock()
			if err == nil && ctx.Err() == nil && e.session.awaiting() {
				r.mu.Unlock()
				continue
			}
			close(done)
			r.mu.Unlock()
			return
		}
	}()
}

// Teardown cancels the poller and forgets the session.
func (r *Registry) Teardown(studentID string) {
	r.mu.Lock()
	e, ok := r.entries[studentID]
	delete(r.entries, studentID)
	r.mu.Unlock()
	if !ok {
		return
	}
	e.stop()
}

// Running reports whether a poller is active for the student.
func (r *Registry) Running(studentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[studentID]
	if !ok || e.done == nil {
		return false
	}
	select {
	case <-e.done:
		return false
	default:
		return true
	}
}

func (r *Registry) Close() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()
	for _, e := range entries {
		e.stop()
	}
}

func (e *entry) stop() {
	if e.cancel != nil {
		e.cancel()
		<-e.done
	}
}
