package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"skillswap/internal/models"
)

const (
	AllSkillsKey        = "all_skills"
	PlatformStatsKey    = "platform_stats"
	SkillSearchPrefix   = "skill_search:%s"
	SkillSearchPattern  = "skill_search:*"
	UserSkillsPrefix    = "user_skills:%d:%s"
	SwapRequestsPrefix  = "swap_requests:%d:%s"
	UserFeedbackPrefix  = "user_feedback:%d"
	SwapMessagesPrefix  = "swap_messages:%d"
	NotificationPrefix  = "notify:%s"
	BrowsePrefix        = "browse:%d:%s"
	allSwapStatusSuffix = "all"
)

const (
	AllSkillsTTL     = time.Hour
	SkillSearchTTL   = 5 * time.Minute
	UserSkillsTTL    = 5 * time.Minute
	SwapRequestsTTL  = time.Minute
	PlatformStatsTTL = time.Hour
	UserFeedbackTTL  = 5 * time.Minute
	SwapMessagesTTL  = time.Minute
	NotificationTTL  = 24 * time.Hour
	BrowseTTL        = time.Minute
)

func SkillSearchKey(query string) string {
	return fmt.Sprintf(SkillSearchPrefix, strings.ToLower(strings.TrimSpace(query)))
}

func UserSkillsKey(userID uint, direction models.SkillDirection) string {
	return fmt.Sprintf(UserSkillsPrefix, userID, direction)
}

// SwapRequestsKey keys a user's list; an empty status means unfiltered.
func SwapRequestsKey(userID uint, status models.SwapStatus) string {
	suffix := string(status)
	if suffix == "" {
		suffix = allSwapStatusSuffix
	}
	return fmt.Sprintf(SwapRequestsPrefix, userID, suffix)
}

func UserFeedbackKey(userID uint) string {
	return fmt.Sprintf(UserFeedbackPrefix, userID)
}

func SwapMessagesKey(swapID uint) string {
	return fmt.Sprintf(SwapMessagesPrefix, swapID)
}

// BrowseKey keys one page of the directory as seen by viewerID.
func BrowseKey(viewerID uint, rawQuery string) string {
	return fmt.Sprintf(BrowsePrefix, viewerID, rawQuery)
}

// NotificationKey keys a claim for one delivery.
func NotificationKey(idempotencyKey string) string {
	return fmt.Sprintf(NotificationPrefix, idempotencyKey)
}

// InvalidateUserSkills drops both skill lists of a user.
func (s *Store) InvalidateUserSkills(ctx context.Context, userID uint) {
	s.Delete(ctx, UserSkillsKey(userID, models.SkillsOffered), UserSkillsKey(userID, models.SkillsWanted))
}

// InvalidateSwapRequests drops every status variant of each user's swap list.
func (s *Store) InvalidateSwapRequests(ctx context.Context, userIDs ...uint) {
	keys := make([]string, 0, len(userIDs)*(len(models.SwapStatuses)+1))
	for _, id := range userIDs {
		keys = append(keys, SwapRequestsKey(id, ""))
		for _, status := range models.SwapStatuses {
			keys = append(keys, SwapRequestsKey(id, status))
		}
	}
	s.Delete(ctx, keys...)
}

// InvalidateSkills drops the catalogue and every cached search.
func (s *Store) InvalidateSkills(ctx context.Context) {
	s.Delete(ctx, AllSkillsKey)
	s.DeletePattern(ctx, SkillSearchPattern)
}

// InvalidateFeedback drops a reviewee's feedback list and the platform stats.
func (s *Store) InvalidateFeedback(ctx context.Context, revieweeID uint) {
	s.Delete(ctx, UserFeedbackKey(revieweeID), PlatformStatsKey)
}

func (s *Store) InvalidateSwapMessages(ctx context.Context, swapID uint) {
	s.Delete(ctx, SwapMessagesKey(swapID))
}
