package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fadilmartias/questy/internal/apperr"
	"github.com/fadilmartias/questy/internal/config"
	"github.com/fadilmartias/questy/internal/interview"
	"github.com/fadilmartias/questy/pkg/log"
	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

// InterviewWorkflowService speaks to the question relay in front of the
// interview workflow.
type InterviewWorkflowService struct {
	client *resty.Client
	logger log.Logger
}

var _ interview.Workflow = (*InterviewWorkflowService)(nil)

func NewInterviewWorkflowService(cfg *config.InterviewConfig, logger log.Logger) *InterviewWorkflowService {
	return &InterviewWorkflowService{
		client: resty.New().
			SetBaseURL(strings.TrimRight(cfg.WorkflowURL, "/")).
			SetTimeout(cfg.RequestTimeout).
			SetHeader("Content-Type", "application/json"),
		logger: logger,
	}
}

func (s *InterviewWorkflowService) StartInterview(ctx context.Context, req interview.StartRequest) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"body": map[string]string{
				"student_id": req.StudentID,
				"name":       req.Name,
				"phone":      req.Phone,
			},
		}).
		Post("/start-interview")
	if err != nil {
		return apperr.Network("could not reach interview workflow", err)
	}
	if resp.IsError() {
		return apperr.Service(fmt.Sprintf("Failed to start interview: %d", resp.StatusCode()), resp.StatusCode())
	}
	return nil
}

func (s *InterviewWorkflowService) LatestQuestion(ctx context.Context, studentID string) (interview.Poll, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Cache-Control", "no-store").
		SetQueryParam("student_id", studentID).
		SetQueryParam("ts", strconv.FormatInt(time.Now().UnixMilli(), 10)).
		Get("/api/latest-question")
	if err != nil {
		return interview.Poll{}, apperr.Network("could not reach interview workflow", err)
	}
	if resp.IsError() {
		return interview.Poll{}, apperr.Service(fmt.Sprintf("latest-question failed with status %d", resp.StatusCode()), resp.StatusCode())
	}

	body := resp.String()
	if !strings.Contains(resp.Header().Get("Content-Type"), "json") || !gjson.Valid(body) {
		return interview.Poll{}, apperr.Service("latest-question returned a non-JSON response", resp.StatusCode())
	}
	return ParsePoll(body), nil
}

// ParsePoll reads {question}, {stop_interview: true|"true"} or {complete: true}.
func ParsePoll(body string) interview.Poll {
	r := gjson.Parse(body)
	var p interview.Poll
	if q := r.Get("question"); q.Type == gjson.String {
		p.Question = strings.TrimSpace(q.Str)
	}
	stop := r.Get("stop_interview")
	p.Stop = stop.Type == gjson.True ||
		(stop.Type == gjson.String && stop.Str == "true") ||
		r.Get("complete").Type == gjson.True
	return p
}

func (s *InterviewWorkflowService) SubmitAnswer(ctx context.Context, req interview.AnswerRequest) (interview.AnswerReply, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"question":   req.Question,
			"answer":     req.Answer,
			"name":       req.Name,
			"student_id": req.StudentID,
		}).
		Post("/receive-answer")
	if err != nil {
		return interview.AnswerReply{}, apperr.Network("could not reach interview workflow", err)
	}
	if resp.IsError() {
		return interview.AnswerReply{}, apperr.Service(fmt.Sprintf("Failed to submit answer: %d", resp.StatusCode()), resp.StatusCode())
	}
	return interview.AnswerReply{Message: gjson.Get(resp.String(), "message").String()}, nil
}
