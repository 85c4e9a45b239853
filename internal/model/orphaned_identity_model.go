package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	OrphanStatusPending         = "pending"
	OrphanStatusProfileRestored = "profile_restored"
	OrphanStatusIdentityDeleted = "identity_deleted"
)

// OrphanedIdentity records an auth identity whose profile row could not be
// written and which could not be deleted on the spot.
type OrphanedIdentity struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Realm      string         `gorm:"type:varchar(20);index" json:"realm"`
	IdentityID string         `gorm:"type:varchar(64);uniqueIndex" json:"identity_id"`
	Email      string         `gorm:"type:varchar(255)" json:"email"`
	Profile    datatypes.JSON `json:"profile"`
	Reason     string         `gorm:"type:text" json:"reason"`
	Status     string         `gorm:"type:varchar(30);index;default:pending" json:"status"`
	Attempts   int            `json:"attempts"`
	LastError  string         `gorm:"type:text" json:"last_error"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func (o *OrphanedIdentity) TableName() string {
	return "orphaned_identities"
}

func (o *OrphanedIdentity) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	if o.Status == "" {
		o.Status = OrphanStatusPending
	}
	return nil
}
