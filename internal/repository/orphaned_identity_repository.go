package repository

import (
	"context"

	"github.com/fadilmartias/questy/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrphanedIdentityRepository struct {
	db *gorm.DB
}

func NewOrphanedIdentityRepository(db *gorm.DB) *OrphanedIdentityRepository {
	return &OrphanedIdentityRepository{db}
}

// Record inserts the orphan, or refreshes reason and error when the identity
// is already tracked.
func (r *OrphanedIdentityRepository) Record(ctx context.Context, o *model.OrphanedIdentity) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "identity_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"reason", "last_error", "profile", "updated_at"}),
	}).Create(o).Error
}

func (r *OrphanedIdentityRepository) ListPending(ctx context.Context, limit int) ([]model.OrphanedIdentity, error) {
	var orphans []model.OrphanedIdentity
	err := r.db.WithContext(ctx).
		Where("status = ?", model.OrphanStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&orphans).Error
	return orphans, err
}

func (r *OrphanedIdentityRepository) Update(ctx context.Context, o *model.OrphanedIdentity) error {
	return r.db.WithContext(ctx).Save(o).Error
}
