package repository

import (
	"context"

	"github.com/fadilmartias/questy/internal/model"
	"gorm.io/gorm"
)

type HRNeedRepository struct {
	db *gorm.DB
}

func NewHRNeedRepository(db *gorm.DB) *HRNeedRepository {
	return &HRNeedRepository{db}
}

func (r *HRNeedRepository) Create(ctx context.Context, need *model.HRNeed) error {
	return r.db.WithContext(ctx).Create(need).Error
}

// ListByCompany pages through a recruiter's searches, newest first.
func (r *HRNeedRepository) ListByCompany(ctx context.Context, companyID string, page, pageSize int) ([]model.HRNeed, int64, error) {
	var (
		needs []model.HRNeed
		total int64
	)
	q := r.db.WithContext(ctx).Model(&model.HRNeed{}).Where("hr_company_id = ?", companyID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&needs).Error
	return needs, total, err
}

func (r *HRNeedRepository) FindByID(ctx context.Context, companyID, id string) (*model.HRNeed, error) {
	var need model.HRNeed
	err := r.db.WithContext(ctx).
		First(&need, "id = ? AND hr_company_id = ?", id, companyID).Error
	return &need, err
}
