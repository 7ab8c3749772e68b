package repository

import (
	"context"
	"time"

	"skillswap/internal/models"

	"gorm.io/gorm"
)

// UploadRepository tracks files stored under the upload directory
type UploadRepository interface {
	Create(ctx context.Context, upload *models.Upload) error
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]models.Upload, error)
	Delete(ctx context.Context, ids []uint) error
}

type uploadRepository struct {
	db *gorm.DB
}

// NewUploadRepository creates a new upload repository
func NewUploadRepository(db *gorm.DB) UploadRepository {
	return &uploadRepository{db: db}
}

func (r *uploadRepository) Create(ctx context.Context, upload *models.Upload) error {
	if err := r.db.WithContext(ctx).Create(upload).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *uploadRepository) ListOlderThan(ctx context.Context, cutoff time.Time) ([]models.Upload, error) {
	var uploads []models.Upload
	// the newest upload of each kind is the one in use
	current := r.db.Model(&models.Upload{}).Select("MAX(id)").Group("user_id, kind")
	err := r.db.WithContext(ctx).
		Where("created_at < ? AND id NOT IN (?)", cutoff, current).
		Order("id ASC").
		Find(&uploads).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return uploads, nil
}

func (r *uploadRepository) Delete(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Upload{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
