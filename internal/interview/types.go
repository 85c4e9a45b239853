package interview

import (
	"context"
	"time"
)

type Stage string

const (
	StageStart         Stage = "start"
	StageInterview     Stage = "interview"
	StageComplete      Stage = "complete"
	StageAlreadyPassed Stage = "already-passed"
)

// Poll is one answer of the latest-question endpoint.
type Poll struct {
	Question string
	Stop     bool
}

type AnswerReply struct {
	Message string
}

type StartRequest struct {
	StudentID string
	Name      string
	Phone     string
}

type AnswerRequest struct {
	StudentID string
	Name      string
	Question  string
	Answer    string
}

// Workflow is the external engine producing questions and consuming answers.
type Workflow interface {
	StartInterview(ctx context.Context, req StartRequest) error
	LatestQuestion(ctx context.Context, studentID string) (Poll, error)
	SubmitAnswer(ctx context.Context, req AnswerRequest) (AnswerReply, error)
}

type CV struct {
	Filename    string
	ContentType string
	Data        []byte
}

// UploadFunc stores the CV before the workflow is asked to start.
type UploadFunc func(ctx context.Context, studentID string, cv *CV) error

type State struct {
	Stage               Stage     `json:"stage"`
	StudentID           string    `json:"student_id"`
	Name                string    `json:"name,omitempty"`
	Phone               string    `json:"phone,omitempty"`
	QuestionCount       int       `json:"question_count"`
	MaxQuestions        int       `json:"max_questions"`
	Progress            int       `json:"progress"`
	CurrentQuestion     string    `json:"current_question,omitempty"`
	WaitingForQuestion  bool      `json:"waiting_for_question"`
	Status              string    `json:"status,omitempty"`
	StatusExpiresAt     time.Time `json:"-"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Error               string    `json:"error,omitempty"`
	Epoch               uint64    `json:"epoch"`
}
