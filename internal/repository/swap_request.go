package repository

import (
	"context"
	"log/slog"
	"time"

	"skillswap/internal/models"
	"skillswap/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SwapRequestRepository defines the interface for swap request persistence
type SwapRequestRepository interface {
	Create(ctx context.Context, swap *models.SwapRequest) error
	GetByID(ctx context.Context, id uint) (*models.SwapRequest, error)
	ListForUser(ctx context.Context, userID uint, status models.SwapStatus) ([]models.SwapRequest, error)
	UpdateStatusIf(ctx context.Context, id uint, expected, next models.SwapStatus, at time.Time) error
	CompletedBetween(ctx context.Context, from, to time.Time) ([]models.SwapRequest, error)
	CountByStatus(ctx context.Context) (map[models.SwapStatus]int64, error)
	CountReceivedSince(ctx context.Context, userID uint, since time.Time) (int64, error)
	CountCompletedSince(ctx context.Context, userID uint, since time.Time) (int64, error)
}

type swapRequestRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewSwapRequestRepository creates a new swap request repository
func NewSwapRequestRepository(db *gorm.DB) SwapRequestRepository {
	return &swapRequestRepository{db: db, log: observability.NewRepoLogger("swap_requests")}
}

func (r *swapRequestRepository) withParticipants(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Requester").
		Preload("Receiver").
		Preload("OfferedSkill").
		Preload("RequestedSkill")
}

func (r *swapRequestRepository) Create(ctx context.Context, swap *models.SwapRequest) error {
	if swap.Status == "" {
		swap.Status = models.SwapStatusPending
	}
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(swap).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *swapRequestRepository) GetByID(ctx context.Context, id uint) (*models.SwapRequest, error) {
	var swap models.SwapRequest
	if err := r.withParticipants(ctx).First(&swap, id).Error; err != nil {
		return nil, wrapLookupError(err, "Swap request", id)
	}
	return &swap, nil
}

// ListForUser returns requests the user sent or received, newest first.
// An empty status returns every status.
func (r *swapRequestRepository) ListForUser(ctx context.Context, userID uint, status models.SwapStatus) ([]models.SwapRequest, error) {
	q := r.withParticipants(ctx).Where("requester_id = ? OR receiver_id = ?", userID, userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var swaps []models.SwapRequest
	if err := q.Order("created_at DESC, id DESC").Find(&swaps).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return swaps, nil
}

// UpdateStatusIf moves the request to next only while it is still in expected.
// It returns a CONFLICT error when another writer changed the status first.
func (r *swapRequestRepository) UpdateStatusIf(ctx context.Context, id uint, expected, next models.SwapStatus, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.SwapRequest{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(map[string]interface{}{"status": next, "updated_at": at})
	if result.Error != nil {
		r.log.LogError(ctx, result.Error, "update_status")
		return models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewConflictError("swap request status changed concurrently, reload and retry")
	}
	r.log.LogWrite(ctx, "update_status",
		slog.Uint64("id", uint64(id)),
		slog.String("from", string(expected)),
		slog.String("to", string(next)),
	)
	return nil
}

func (r *swapRequestRepository) CompletedBetween(ctx context.Context, from, to time.Time) ([]models.SwapRequest, error) {
	var swaps []models.SwapRequest
	err := r.withParticipants(ctx).
		Where("status = ? AND updated_at >= ? AND updated_at < ?", models.SwapStatusCompleted, from, to).
		Order("id ASC").
		Find(&swaps).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return swaps, nil
}

func (r *swapRequestRepository) CountByStatus(ctx context.Context) (map[models.SwapStatus]int64, error) {
	type row struct {
		Status models.SwapStatus
		Total  int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&models.SwapRequest{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	counts := make(map[models.SwapStatus]int64, len(models.SwapStatuses))
	for _, s := range models.SwapStatuses {
		counts[s] = 0
	}
	for _, r := range rows {
		counts[r.Status] = r.Total
	}
	return counts, nil
}

func (r *swapRequestRepository) CountReceivedSince(ctx context.Context, userID uint, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.SwapRequest{}).
		Where("receiver_id = ? AND created_at >= ?", userID, since).
		Count(&count).Error
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (r *swapRequestRepository) CountCompletedSince(ctx context.Context, userID uint, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.SwapRequest{}).
		Where("(requester_id = ? OR receiver_id = ?) AND status = ? AND updated_at >= ?",
			userID, userID, models.SwapStatusCompleted, since).
		Count(&count).Error
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}
