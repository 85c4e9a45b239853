package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StudentSummary is written by the interview workflow once a student has
// finished; its presence means the interview was already passed.
type StudentSummary struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID   string    `gorm:"type:varchar(64);index" json:"student_id"`
	Phone       string    `gorm:"type:varchar(50)" json:"phone"`
	Summary     string    `gorm:"type:text" json:"summary"`
	LastUpdated time.Time `gorm:"index" json:"last_updated"`
}

func (s *StudentSummary) TableName() string {
	return "student_summaries"
}

func (s *StudentSummary) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	if s.LastUpdated.IsZero() {
		s.LastUpdated = time.Now()
	}
	return nil
}
