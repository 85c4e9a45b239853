package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type StudentCV struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID  string    `gorm:"type:varchar(64);index" json:"student_id"`
	FilePath   string    `gorm:"type:text" json:"file_path"`
	Name       string    `gorm:"type:varchar(255)" json:"name"`
	UploadedAt time.Time `gorm:"index" json:"uploaded_at"`
}

func (c *StudentCV) TableName() string {
	return "student_cvs"
}

func (c *StudentCV) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	if c.UploadedAt.IsZero() {
		c.UploadedAt = time.Now()
	}
	return nil
}
