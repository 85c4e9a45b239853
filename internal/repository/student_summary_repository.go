package repository

import (
	"context"

	"github.com/fadilmartias/questy/internal/model"
	"gorm.io/gorm"
)

type StudentSummaryRepository struct {
	db *gorm.DB
}

func NewStudentSummaryRepository(db *gorm.DB) *StudentSummaryRepository {
	return &StudentSummaryRepository{db}
}

func (r *StudentSummaryRepository) Create(ctx context.Context, s *model.StudentSummary) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *StudentSummaryRepository) ExistsForStudent(ctx context.Context, studentID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.StudentSummary{}).
		Where("student_id = ?", studentID).
		Count(&count).Error
	return count > 0, err
}

func (r *StudentSummaryRepository) LatestByStudent(ctx context.Context, studentID string) (*model.StudentSummary, error) {
	var s model.StudentSummary
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("last_updated DESC").
		First(&s).Error
	return &s, err
}
