package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type MatchResult struct {
	StudentID   string  `json:"student_id"`
	Name        string  `json:"name"`
	Rank        int     `json:"rank"`
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation"`
	// Filled only in memory after an unlock.
	CVURL *string `json:"cvUrl,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

type HRNeed struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	HRCompanyID      string         `gorm:"type:varchar(64);index" json:"hr_company_id"`
	RequirementsText string         `gorm:"type:text" json:"requirements_text"`
	MatchingResults  datatypes.JSON `json:"matching_results"`
	CreatedAt        time.Time      `gorm:"index" json:"created_at"`
}

func (h *HRNeed) TableName() string {
	return "hr_needs"
}

func (h *HRNeed) BeforeCreate(*gorm.DB) error {
	assignID(&h.ID)
	return nil
}

func (h *HRNeed) Results() ([]MatchResult, error) {
	if len(h.MatchingResults) == 0 {
		return nil, nil
	}
	var out []MatchResult
	err := json.Unmarshal(h.MatchingResults, &out)
	return out, err
}
