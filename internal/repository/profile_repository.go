package repository

import (
	"context"

	"github.com/fadilmartias/questy/internal/model"
	"gorm.io/gorm"
)

type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db}
}

// SaveStudent upserts by identity id so a retried write is harmless.
func (r *ProfileRepository) SaveStudent(ctx context.Context, p *model.Profile) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *ProfileRepository) SaveRecruiter(ctx context.Context, rec *model.Recruiter) error {
	return r.db.WithContext(ctx).Save(rec).Error
}

func (r *ProfileRepository) FindStudent(ctx context.Context, id string) (*model.Profile, error) {
	var p model.Profile
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	return &p, err
}

func (r *ProfileRepository) FindRecruiter(ctx context.Context, userID string) (*model.Recruiter, error) {
	var rec model.Recruiter
	err := r.db.WithContext(ctx).First(&rec, "user_id = ?", userID).Error
	return &rec, err
}
