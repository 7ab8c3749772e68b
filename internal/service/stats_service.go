package service

import (
	"context"
	"time"

	"skillswap/internal/cache"
	"skillswap/internal/models"
	"skillswap/internal/repository"
)

const digestSuggestions = 3

// StatsService computes platform aggregates and digest figures.
type StatsService struct {
	users    repository.UserRepository
	swaps    repository.SwapRequestRepository
	feedback repository.FeedbackRepository
	skills   repository.SkillRepository
	cache    *cache.Store
	now      func() time.Time
}

// NewStatsService returns a new StatsService.
func NewStatsService(
	users repository.UserRepository,
	swaps repository.SwapRequestRepository,
	feedback repository.FeedbackRepository,
	skills repository.SkillRepository,
	store *cache.Store,
) *StatsService {
	if store == nil {
		store = cache.NewStore(nil)
	}
	return &StatsService{users: users, swaps: swaps, feedback: feedback, skills: skills, cache: store, now: time.Now}
}

// Platform returns the cached admin aggregates.
func (s *StatsService) Platform(ctx context.Context) (*models.PlatformStats, error) {
	var stats models.PlatformStats
	err := s.cache.CacheAside(ctx, cache.PlatformStatsKey, &stats, cache.PlatformStatsTTL, func() error {
		fresh, err := s.compute(ctx)
		if err != nil {
			return err
		}
		stats = *fresh
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// Refresh recomputes the aggregates and overwrites the cache.
func (s *StatsService) Refresh(ctx context.Context) (*models.PlatformStats, error) {
	stats, err := s.compute(ctx)
	if err != nil {
		return nil, err
	}
	// a cache failure still leaves the caller with fresh numbers
	_ = s.cache.SetJSON(ctx, cache.PlatformStatsKey, stats, cache.PlatformStatsTTL)
	return stats, nil
}

func (s *StatsService) compute(ctx context.Context) (*models.PlatformStats, error) {
	totalUsers, err := s.users.Count(ctx)
	if err != nil {
		return nil, err
	}
	byStatus, err := s.swaps.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	avg, err := s.feedback.AverageRating(ctx)
	if err != nil {
		return nil, err
	}

	var totalSwaps int64
	for _, n := range byStatus {
		totalSwaps += n
	}

	return &models.PlatformStats{
		TotalUsers:    totalUsers,
		TotalSwaps:    totalSwaps,
		AverageRating: avg,
		// no moderation pipeline exists yet
		FlaggedContent: 0,
		SwapsByStatus:  byStatus,
		GeneratedAt:    s.now().UTC(),
	}, nil
}

// Digest gathers one user's figures since the given time.
func (s *StatsService) Digest(ctx context.Context, user models.User, since time.Time) (models.DigestStats, error) {
	received, err := s.swaps.CountReceivedSince(ctx, user.ID, since)
	if err != nil {
		return models.DigestStats{}, err
	}
	completed, err := s.swaps.CountCompletedSince(ctx, user.ID, since)
	if err != nil {
		return models.DigestStats{}, err
	}
	newSkills, err := s.skills.CountCreatedSince(ctx, since)
	if err != nil {
		return models.DigestStats{}, err
	}
	suggested, err := s.users.Browse(ctx, models.BrowseFilter{ExcludeID: user.ID, Limit: digestSuggestions})
	if err != nil {
		return models.DigestStats{}, err
	}

	return models.DigestStats{
		NewSwapRequests: received,
		CompletedSwaps:  completed,
		NewSkills:       newSkills,
		SuggestedUsers:  suggested,
	}, nil
}
