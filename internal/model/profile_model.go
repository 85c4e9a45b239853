package model

import "time"

// Profile is the student profile row, keyed by the auth identity id.
type Profile struct {
	ID         string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	Email      string    `gorm:"type:varchar(255);index" json:"email"`
	FullName   string    `gorm:"type:varchar(255)" json:"full_name"`
	University string    `gorm:"type:varchar(255)" json:"university"`
	Role       string    `gorm:"type:varchar(20);default:student" json:"role"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (p *Profile) TableName() string {
	return "profiles"
}
