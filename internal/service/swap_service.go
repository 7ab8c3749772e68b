package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"skillswap/internal/cache"
	"skillswap/internal/middleware"
	"skillswap/internal/models"
	"skillswap/internal/observability"
	"skillswap/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// SwapNotifier receives committed swap changes. Implementations must not block.
type SwapNotifier interface {
	SwapCreated(swap models.SwapRequest)
	SwapStatusChanged(swap models.SwapRequest, actorID uint)
}

// CreateSwapRequestInput is the payload of a new swap request.
type CreateSwapRequestInput struct {
	RequesterID      uint
	ReceiverID       uint
	OfferedSkillID   uint
	RequestedSkillID uint
	Message          string
	PreferredTime    string
}

// SwapService owns the swap request lifecycle.
type SwapService struct {
	swaps      repository.SwapRequestRepository
	users      repository.UserRepository
	skills     repository.SkillRepository
	userSkills repository.UserSkillRepository
	cache      *cache.Store
	notifier   SwapNotifier
	now        func() time.Time
}

// NewSwapService returns a new SwapService.
func NewSwapService(
	swaps repository.SwapRequestRepository,
	users repository.UserRepository,
	skills repository.SkillRepository,
	userSkills repository.UserSkillRepository,
	store *cache.Store,
	notifier SwapNotifier,
) *SwapService {
	if store == nil {
		store = cache.NewStore(nil)
	}
	return &SwapService{
		swaps:      swaps,
		users:      users,
		skills:     skills,
		userSkills: userSkills,
		cache:      store,
		notifier:   notifier,
		now:        time.Now,
	}
}

// Create validates and persists a pending request from RequesterID to ReceiverID.
func (s *SwapService) Create(ctx context.Context, in CreateSwapRequestInput) (*models.SwapRequestWithParticipants, error) {
	if in.ReceiverID == 0 || in.OfferedSkillID == 0 || in.RequestedSkillID == 0 {
		return nil, models.NewValidationError("receiver, offered skill and requested skill are required")
	}
	if in.RequesterID == in.ReceiverID {
		return nil, models.NewValidationError("Cannot send a swap request to yourself")
	}

	if _, err := s.users.GetByID(ctx, in.ReceiverID); err != nil {
		return nil, err
	}
	if _, err := s.skills.GetByID(ctx, in.OfferedSkillID); err != nil {
		return nil, err
	}
	if _, err := s.skills.GetByID(ctx, in.RequestedSkillID); err != nil {
		return nil, err
	}

	offers, err := s.userSkills.Offers(ctx, in.RequesterID, in.OfferedSkillID)
	if err != nil {
		return nil, err
	}
	if !offers {
		return nil, models.NewValidationError("You can only offer a skill from your offered list")
	}
	wants, err := s.userSkills.Wants(ctx, in.ReceiverID, in.RequestedSkillID)
	if err != nil {
		return nil, err
	}
	if !wants {
		return nil, models.NewValidationError("The requested skill is not in the receiver's wanted list")
	}

	swap := &models.SwapRequest{
		RequesterID:      in.RequesterID,
		ReceiverID:       in.ReceiverID,
		OfferedSkillID:   in.OfferedSkillID,
		RequestedSkillID: in.RequestedSkillID,
		Message:          strings.TrimSpace(in.Message),
		PreferredTime:    strings.TrimSpace(in.PreferredTime),
		Status:           models.SwapStatusPending,
	}
	if err := s.swaps.Create(ctx, swap); err != nil {
		return nil, err
	}

	created, err := s.swaps.GetByID(ctx, swap.ID)
	if err != nil {
		return nil, err
	}

	s.cache.InvalidateSwapRequests(ctx, created.RequesterID, created.ReceiverID)
	if s.notifier != nil {
		s.notifier.SwapCreated(*created)
	}

	out := created.WithParticipants()
	return &out, nil
}

// UpdateStatus applies one lifecycle transition on behalf of actorID.
func (s *SwapService) UpdateStatus(ctx context.Context, id uint, next models.SwapStatus, actorID uint) (*models.SwapRequestWithParticipants, error) {
	ctx, span := observability.StartSpan(ctx, "swap.update_status",
		attribute.Int64("swap.id", int64(id)),
		attribute.String("swap.next_status", string(next)))
	result, err := s.updateStatus(ctx, id, next, actorID)
	observability.EndSpan(span, err)
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			observability.SwapTransitionRejections.WithLabelValues(appErr.Code).Inc()
		}
		return nil, err
	}
	return result, nil
}

func (s *SwapService) updateStatus(ctx context.Context, id uint, next models.SwapStatus, actorID uint) (*models.SwapRequestWithParticipants, error) {
	if !next.Valid() {
		return nil, models.NewValidationError("Invalid status; must be one of pending, accepted, rejected, completed")
	}

	swap, err := s.swaps.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	role := swap.RoleOf(actorID)
	if role == models.SwapRoleNone {
		return nil, models.NewForbiddenError("You are not a participant in this swap request")
	}

	allowed, ok := models.TransitionRoles(swap.Status, next)
	if !ok {
		return nil, models.NewInvalidTransitionError(swap.Status, next)
	}
	if !roleAllowed(allowed, role) {
		return nil, models.NewForbiddenError("Only the receiver can accept or reject a swap request")
	}

	from := swap.Status
	if err := s.swaps.UpdateStatusIf(ctx, id, from, next, s.now()); err != nil {
		return nil, err
	}
	observability.SwapTransitions.WithLabelValues(string(from), string(next)).Inc()
	middleware.Logger.InfoContext(ctx, "swap request status changed",
		slog.Uint64("swap_request_id", uint64(id)),
		slog.String("from", string(from)),
		slog.String("to", string(next)),
		slog.Uint64("actor_id", uint64(actorID)))

	updated, err := s.swaps.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cache.InvalidateSwapRequests(ctx, updated.RequesterID, updated.ReceiverID)
	if s.notifier != nil {
		s.notifier.SwapStatusChanged(*updated, actorID)
	}

	out := updated.WithParticipants()
	return &out, nil
}

func roleAllowed(allowed []models.SwapRole, role models.SwapRole) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

// ListForUser returns requests the user sent or received, newest first.
func (s *SwapService) ListForUser(ctx context.Context, userID uint, status models.SwapStatus) ([]models.SwapRequestWithParticipants, error) {
	if status != "" && !status.Valid() {
		return nil, models.NewValidationError("Invalid status filter")
	}

	var out []models.SwapRequestWithParticipants
	err := s.cache.CacheAside(ctx, cache.SwapRequestsKey(userID, status), &out, cache.SwapRequestsTTL, func() error {
		swaps, err := s.swaps.ListForUser(ctx, userID, status)
		if err != nil {
			return err
		}
		out = make([]models.SwapRequestWithParticipants, 0, len(swaps))
		for i := range swaps {
			out = append(out, swaps[i].WithParticipants())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns a request visible to actorID.
func (s *SwapService) Get(ctx context.Context, id, actorID uint) (*models.SwapRequest, error) {
	swap, err := s.swaps.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !swap.IsParticipant(actorID) {
		return nil, models.NewForbiddenError("You are not a participant in this swap request")
	}
	return swap, nil
}
