package service

import (
	"context"
	"strings"

	"skillswap/internal/cache"
	"skillswap/internal/models"
	"skillswap/internal/repository"
)

// CreateFeedbackInput is the payload of POST /api/feedback.
type CreateFeedbackInput struct {
	SwapRequestID uint
	RevieweeID    uint
	Rating        int
	Comment       string
}

// FeedbackNotifier is told about stored feedback.
type FeedbackNotifier interface {
	FeedbackReceived(fb models.Feedback)
}

// FeedbackService records ratings left after a completed swap.
type FeedbackService struct {
	feedback repository.FeedbackRepository
	swaps    repository.SwapRequestRepository
	cache    *cache.Store
	notifier FeedbackNotifier
}

// NewFeedbackService returns a new FeedbackService.
func NewFeedbackService(feedback repository.FeedbackRepository, swaps repository.SwapRequestRepository, store *cache.Store, notifier FeedbackNotifier) *FeedbackService {
	if store == nil {
		store = cache.NewStore(nil)
	}
	return &FeedbackService{feedback: feedback, swaps: swaps, cache: store, notifier: notifier}
}

// Create stores reviewerID's feedback on the other participant.
func (s *FeedbackService) Create(ctx context.Context, reviewerID uint, in CreateFeedbackInput) (*models.FeedbackWithReviewer, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, models.NewValidationError("Rating must be between 1 and 5")
	}

	swap, err := s.swaps.GetByID(ctx, in.SwapRequestID)
	if err != nil {
		return nil, err
	}
	if !swap.IsParticipant(reviewerID) {
		return nil, models.NewForbiddenError("You are not a participant in this swap request")
	}
	if in.RevieweeID == reviewerID {
		return nil, models.NewValidationError("You cannot leave feedback for yourself")
	}
	if in.RevieweeID != swap.OtherParticipant(reviewerID) {
		return nil, models.NewValidationError("Feedback must be for the other participant of the swap")
	}
	if swap.Status != models.SwapStatusCompleted {
		return nil, &models.AppError{
			Code:    models.CodeInvalidTransition,
			Message: "Feedback can only be left on a completed swap",
		}
	}

	exists, err := s.feedback.ExistsForReviewer(ctx, swap.ID, reviewerID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, models.NewConflictError("feedback for this swap has already been left")
	}

	fb := &models.Feedback{
		SwapRequestID: swap.ID,
		ReviewerID:    reviewerID,
		RevieweeID:    in.RevieweeID,
		Rating:        in.Rating,
		Comment:       strings.TrimSpace(in.Comment),
	}
	if err := s.feedback.Create(ctx, fb); err != nil {
		return nil, err
	}
	fb.Reviewer = swap.Requester
	if reviewerID == swap.ReceiverID {
		fb.Reviewer = swap.Receiver
	}

	s.cache.InvalidateFeedback(ctx, in.RevieweeID)
	if s.notifier != nil {
		s.notifier.FeedbackReceived(*fb)
	}

	out := fb.WithReviewer()
	return &out, nil
}

// ListForUser returns feedback the user received, newest first.
func (s *FeedbackService) ListForUser(ctx context.Context, userID uint) ([]models.FeedbackWithReviewer, error) {
	var out []models.FeedbackWithReviewer
	err := s.cache.CacheAside(ctx, cache.UserFeedbackKey(userID), &out, cache.UserFeedbackTTL, func() error {
		rows, err := s.feedback.ListForReviewee(ctx, userID)
		if err != nil {
			return err
		}
		out = make([]models.FeedbackWithReviewer, 0, len(rows))
		for i := range rows {
			out = append(out, rows[i].WithReviewer())
		}
		return nil
	})
	return out, err
}
