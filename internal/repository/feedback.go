package repository

import (
	"context"

	"skillswap/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FeedbackRepository defines the interface for feedback persistence
type FeedbackRepository interface {
	Create(ctx context.Context, feedback *models.Feedback) error
	ListForReviewee(ctx context.Context, userID uint) ([]models.Feedback, error)
	ExistsForReviewer(ctx context.Context, swapID, reviewerID uint) (bool, error)
	AverageRating(ctx context.Context) (float64, error)
}

type feedbackRepository struct {
	db *gorm.DB
}

// NewFeedbackRepository creates a new feedback repository
func NewFeedbackRepository(db *gorm.DB) FeedbackRepository {
	return &feedbackRepository{db: db}
}

func (r *feedbackRepository) Create(ctx context.Context, feedback *models.Feedback) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(feedback).Error; err != nil {
		return wrapWriteError(err, "feedback for this swap has already been left")
	}
	if err := r.db.WithContext(ctx).Preload("Reviewer").First(feedback, feedback.ID).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *feedbackRepository) ListForReviewee(ctx context.Context, userID uint) ([]models.Feedback, error) {
	var feedback []models.Feedback
	err := r.db.WithContext(ctx).
		Preload("Reviewer").
		Where("reviewee_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&feedback).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return feedback, nil
}

func (r *feedbackRepository) ExistsForReviewer(ctx context.Context, swapID, reviewerID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Feedback{}).
		Where("swap_request_id = ? AND reviewer_id = ?", swapID, reviewerID).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// AverageRating is zero when no feedback exists.
func (r *feedbackRepository) AverageRating(ctx context.Context) (float64, error) {
	var avg *float64
	if err := r.db.WithContext(ctx).Model(&models.Feedback{}).Select("AVG(rating)").Scan(&avg).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	if avg == nil {
		return 0, nil
	}
	return *avg, nil
}
