package dto

import (
	"encoding/json"
	"time"

	"github.com/fadilmartias/questy/internal/model"
	"github.com/google/uuid"
)

type HRSearchRecord struct {
	ID               string              `json:"id"`
	HRCompanyID      string              `json:"hr_company_id"`
	RequirementsText string              `json:"requirements_text"`
	CreatedAt        time.Time           `json:"created_at"`
	MatchingResults  []model.MatchResult `json:"matching_results"`
}

func FromHRNeed(n *model.HRNeed) (HRSearchRecord, error) {
	results, err := n.Results()
	if err != nil {
		return HRSearchRecord{}, err
	}
	return HRSearchRecord{
		ID:               n.ID.String(),
		HRCompanyID:      n.HRCompanyID,
		RequirementsText: n.RequirementsText,
		CreatedAt:        n.CreatedAt,
		MatchingResults:  results,
	}, nil
}

// ToHRNeed drops the in-memory unlock fields before persisting.
func (r HRSearchRecord) ToHRNeed() (*model.HRNeed, error) {
	stripped := make([]model.MatchResult, len(r.MatchingResults))
	for i, m := range r.MatchingResults {
		m.CVURL, m.Phone = nil, nil
		stripped[i] = m
	}
	b, err := json.Marshal(stripped)
	if err != nil {
		return nil, err
	}
	n := &model.HRNeed{
		HRCompanyID:      r.HRCompanyID,
		RequirementsText: r.RequirementsText,
		MatchingResults:  b,
		CreatedAt:        r.CreatedAt,
	}
	if id, err := uuid.Parse(r.ID); err == nil {
		n.ID = id
	}
	return n, nil
}

type InterviewStartDTO struct {
	Name  string `form:"name" json:"name"`
	Phone string `form:"phone" json:"phone"`
}

type InterviewAnswerDTO struct {
	Answer string `json:"answer"`
}

type SearchRequestDTO struct {
	RequirementsText string `json:"requirements_text"`
}

type UnlockRequestDTO struct {
	N int `json:"n"`
}
