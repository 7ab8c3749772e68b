package repository

import (
	"context"
	"time"

	"skillswap/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageRepository defines the interface for swap thread messages
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	ListForSwap(ctx context.Context, swapID uint) ([]models.Message, error)
	MarkRead(ctx context.Context, swapID, readerID uint) (int64, error)
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(message).Error; err != nil {
		return models.NewInternalError(err)
	}
	if err := r.db.WithContext(ctx).Preload("Sender").First(message, message.ID).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// ListForSwap returns the thread in creation order.
func (r *messageRepository) ListForSwap(ctx context.Context, swapID uint) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Where("swap_request_id = ?", swapID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return messages, nil
}

// MarkRead flags every message in the thread not written by readerID as read.
func (r *messageRepository) MarkRead(ctx context.Context, swapID, readerID uint) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("swap_request_id = ? AND sender_id <> ? AND is_read = ?", swapID, readerID, false).
		Update("is_read", true)
	if result.Error != nil {
		return 0, models.NewInternalError(result.Error)
	}
	return result.RowsAffected, nil
}

// DeleteReadBefore purges read messages older than cutoff whose swap has
// reached a terminal status.
func (r *messageRepository) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	terminal := r.db.Model(&models.SwapRequest{}).
		Select("id").
		Where("status IN ?", []models.SwapStatus{models.SwapStatusCompleted, models.SwapStatusRejected})

	result := r.db.WithContext(ctx).
		Where("is_read = ? AND created_at < ? AND swap_request_id IN (?)", true, cutoff, terminal).
		Delete(&models.Message{})
	if result.Error != nil {
		return 0, models.NewInternalError(result.Error)
	}
	return result.RowsAffected, nil
}
