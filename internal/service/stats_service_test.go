package service

import (
	"context"
	"testing"
	"time"

	"skillswap/internal/cache"
	"skillswap/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsService_Platform(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	done := h.fx.CreateSwap(t, h.db, models.SwapStatusCompleted)
	h.fx.CreateSwap(t, h.db, models.SwapStatusPending)
	h.fx.CreateSwap(t, h.db, models.SwapStatusPending)

	for reviewer, reviewee := range map[uint]uint{h.fx.A.ID: h.fx.B.ID, h.fx.B.ID: h.fx.A.ID} {
		rating := 5
		if reviewer == h.fx.B.ID {
			rating = 4
		}
		_, err := h.feedback.Create(ctx, reviewer, CreateFeedbackInput{SwapRequestID: done.ID, RevieweeID: reviewee, Rating: rating})
		require.NoError(t, err)
	}

	stats, err := h.stats.Platform(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalUsers)
	assert.Equal(t, int64(3), stats.TotalSwaps)
	assert.InDelta(t, 4.5, stats.AverageRating, 0.001)
	assert.Zero(t, stats.FlaggedContent)
	assert.Equal(t, int64(2), stats.SwapsByStatus[models.SwapStatusPending])
	assert.Equal(t, int64(0), stats.SwapsByStatus[models.SwapStatusRejected])
	assert.True(t, h.mr.Exists(cache.PlatformStatsKey))

	// cached copy is served until refreshed
	h.fx.CreateSwap(t, h.db, models.SwapStatusRejected)
	cached, err := h.stats.Platform(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), cached.TotalSwaps)

	fresh, err := h.stats.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), fresh.TotalSwaps)
	again, err := h.stats.Platform(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), again.TotalSwaps)
}

func TestStatsService_Digest(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fx.CreateSwap(t, h.db, models.SwapStatusPending)
	h.fx.CreateSwap(t, h.db, models.SwapStatusCompleted)

	since := time.Now().Add(-7 * 24 * time.Hour)
	digest, err := h.stats.Digest(ctx, *h.fx.B, since)
	require.NoError(t, err)
	assert.Equal(t, int64(2), digest.NewSwapRequests)
	assert.Equal(t, int64(1), digest.CompletedSwaps)
	assert.Equal(t, int64(2), digest.NewSkills)
	require.NotEmpty(t, digest.SuggestedUsers)
	for _, u := range digest.SuggestedUsers {
		assert.NotEqual(t, h.fx.B.ID, u.ID)
	}

	later, err := h.stats.Digest(ctx, *h.fx.A, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, later.NewSwapRequests)
	assert.Zero(t, later.NewSkills)
}
