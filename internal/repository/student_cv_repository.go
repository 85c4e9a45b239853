package repository

import (
	"context"

	"github.com/fadilmartias/questy/internal/model"
	"gorm.io/gorm"
)

type StudentCVRepository struct {
	db *gorm.DB
}

func NewStudentCVRepository(db *gorm.DB) *StudentCVRepository {
	return &StudentCVRepository{db}
}

func (r *StudentCVRepository) Create(ctx context.Context, cv *model.StudentCV) error {
	return r.db.WithContext(ctx).Create(cv).Error
}

// LatestByStudent returns the most recently uploaded CV or gorm.ErrRecordNotFound.
func (r *StudentCVRepository) LatestByStudent(ctx context.Context, studentID string) (*model.StudentCV, error) {
	var cv model.StudentCV
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("uploaded_at DESC").
		First(&cv).Error
	return &cv, err
}
