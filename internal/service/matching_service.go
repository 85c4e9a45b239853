package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fadilmartias/questy/internal/apperr"
	"github.com/fadilmartias/questy/internal/config"
	"github.com/fadilmartias/questy/internal/dto"
	"github.com/fadilmartias/questy/internal/model"
	"github.com/fadilmartias/questy/pkg/log"
	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

type MatchingServiceInterface interface {
	Search(ctx context.Context, companyID, requirements string) (*dto.HRSearchRecord, error)
}

// MatchingService proxies candidate searches to the matching webhook.
type MatchingService struct {
	client     *resty.Client
	webhookURL string
	logger     log.Logger
}

func NewMatchingService(cfg *config.MatchingConfig, logger log.Logger) *MatchingService {
	return &MatchingService{
		client:     resty.New().SetTimeout(cfg.RequestTimeout),
		webhookURL: cfg.WebhookURL,
		logger:     logger,
	}
}

func (s *MatchingService) Search(ctx context.Context, companyID, requirements string) (*dto.HRSearchRecord, error) {
	if s.webhookURL == "" {
		return nil, apperr.ServiceConfiguration("matching webhook is not configured", nil)
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{
			"hr_company_id":     companyID,
			"requirements_text": requirements,
		}).
		Post(s.webhookURL)
	if err != nil {
		return nil, apperr.Network("could not reach matching webhook", err)
	}
	if resp.IsError() {
		return nil, apperr.Service(
			fmt.Sprintf("Webhook failed with status: %d. %s", resp.StatusCode(), resp.String()),
			resp.StatusCode())
	}

	rec, err := ParseSearchRecord(resp.String())
	if err != nil {
		return nil, err
	}
	if rec.HRCompanyID == "" {
		rec.HRCompanyID = companyID
	}
	if rec.RequirementsText == "" {
		rec.RequirementsText = requirements
	}
	s.logger.Info().Str("hr_company_id", companyID).Int("results", len(rec.MatchingResults)).Msg("search completed")
	return rec, nil
}

// ParseSearchRecord accepts the record itself or a one-element array of it.
// matching_results may arrive as an array or as a JSON-encoded string.
func ParseSearchRecord(body string) (*dto.HRSearchRecord, error) {
	if !gjson.Valid(body) {
		return nil, apperr.Service("matching webhook returned a non-JSON response", 0)
	}
	r := gjson.Parse(body)
	if r.IsArray() {
		r = r.Get("0")
	}
	if !r.IsObject() {
		return nil, apperr.Service("matching webhook returned an unexpected payload", 0)
	}

	rec := &dto.HRSearchRecord{
		ID:               r.Get("id").String(),
		HRCompanyID:      r.Get("hr_company_id").String(),
		RequirementsText: r.Get("requirements_text").String(),
		MatchingResults:  []model.MatchResult{},
	}
	if ts := r.Get("created_at"); ts.Exists() {
		rec.CreatedAt = ts.Time()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	results := r.Get("matching_results")
	if results.Type == gjson.String {
		results = gjson.Parse(results.Str)
	}
	for i, m := range results.Array() {
		rank := int(m.Get("rank").Int())
		if rank == 0 {
			rank = i + 1
		}
		rec.MatchingResults = append(rec.MatchingResults, model.MatchResult{
			StudentID:   m.Get("student_id").String(),
			Name:        strings.TrimSpace(m.Get("name").String()),
			Rank:        rank,
			Score:       clampScore(m.Get("score").Float()),
			Explanation: m.Get("explanation").String(),
		})
	}
	return rec, nil
}

func clampScore(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
