package model

import "time"

type Recruiter struct {
	UserID      string    `gorm:"type:varchar(64);primaryKey" json:"user_id"`
	FullName    string    `gorm:"type:varchar(255)" json:"full_name"`
	Company     string    `gorm:"type:varchar(255)" json:"company"`
	Email       string    `gorm:"type:varchar(255);index" json:"email"`
	PhoneNumber string    `gorm:"type:varchar(50)" json:"phone_number"`
	Role        string    `gorm:"type:varchar(20);default:recruiter" json:"role"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (r *Recruiter) TableName() string {
	return "recruiters"
}
