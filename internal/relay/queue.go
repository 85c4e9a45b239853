package relay

import (
	"context"
	"sync"
	"time"
)

// Next is what a poll of the latest-question endpoint sees.
type Next struct {
	Question string
	Stop     bool
}

// Queue holds pending questions per student. Next serves the stop flag first,
// then the question being answered, then pops the oldest pending question.
type Queue interface {
	Open(ctx context.Context, studentID string) error
	Push(ctx context.Context, studentID, question string) error
	Stop(ctx context.Context, studentID string) error
	Next(ctx context.Context, studentID string) (Next, error)
	Answered(ctx context.Context, studentID, question string) error
}

type studentQueue struct {
	pending []string
	current string
	stop    bool
	touched time.Time
}

// MemoryQueue is the single-process Queue. Idle students expire after ttl.
type MemoryQueue struct {
	mu       sync.Mutex
	students map[string]*studentQueue
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryQueue(ttl time.Duration) *MemoryQueue {
	return &MemoryQueue{students: make(map[string]*studentQueue), ttl: ttl, now: time.Now}
}

// get returns the student's queue, creating it when create is set.
func (q *MemoryQueue) get(studentID string, create bool) *studentQueue {
	now := q.now()
	sq, ok := q.students[studentID]
	if ok && q.ttl > 0 && now.Sub(sq.touched) > q.ttl {
		delete(q.students, studentID)
		sq, ok = nil, false
	}
	if !ok {
		if !create {
			return nil
		}
		sq = &studentQueue{}
		q.students[studentID] = sq
	}
	sq.touched = now
	return sq
}

// Open clears a stop flag left from an earlier interview.
func (q *MemoryQueue) Open(_ context.Context, studentID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.get(studentID, true).stop = false
	return nil
}

func (q *MemoryQueue) Push(_ context.Context, studentID, question string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	sq := q.get(studentID, true)
	sq.pending = append(sq.pending, question)
	return nil
}

func (q *MemoryQueue) Stop(_ context.Context, studentID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.get(studentID, true).stop = true
	return nil
}

func (q *MemoryQueue) Next(_ context.Context, studentID string) (Next, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	sq := q.get(studentID, false)
	switch {
	case sq == nil:
		return Next{}, nil
	case sq.stop:
		return Next{Stop: true}, nil
	case sq.current != "":
		return Next{Question: sq.current}, nil
	case len(sq.pending) > 0:
		sq.current = sq.pending[0]
		sq.pending = sq.pending[1:]
		return Next{Question: sq.current}, nil
	}
	return Next{}, nil
}

func (q *MemoryQueue) Answered(_ context.Context, studentID, question string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if sq := q.get(studentID, false); sq != nil && sq.current == question {
		sq.current = ""
	}
	return nil
}
