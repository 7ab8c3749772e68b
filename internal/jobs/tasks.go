package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"skillswap/internal/cache"
	"skillswap/internal/featureflags"
	"skillswap/internal/middleware"
	"skillswap/internal/models"
)

// Job names.
const (
	DailyCleanup      = "daily-cleanup"
	WeeklyDigest      = "weekly-digest"
	FeedbackReminders = "feedback-reminders"
	CacheWarming      = "cache-warming"
	StatsUpdate       = "stats-update"
	FileCleanup       = "file-cleanup"
	InactiveUsers     = "inactive-users"
)

const (
	messageRetention  = 90 * 24 * time.Hour
	uploadRetention   = 30 * 24 * time.Hour
	inactiveAfter     = 90 * 24 * time.Hour
	digestWindow      = 7 * 24 * time.Hour
	digestActiveSince = 30 * 24 * time.Hour
	reminderWindow    = 24 * time.Hour
	digestClaimTTL    = 6 * 24 * time.Hour
	reminderClaimTTL  = 3 * 24 * time.Hour
)

type MessageStore interface {
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type UserStore interface {
	ListActive(ctx context.Context, since time.Time) ([]models.User, error)
	CountInactive(ctx context.Context, since time.Time) (int64, error)
}

type SwapStore interface {
	CompletedBetween(ctx context.Context, from, to time.Time) ([]models.SwapRequest, error)
}

type FeedbackStore interface {
	ExistsForReviewer(ctx context.Context, swapID, reviewerID uint) (bool, error)
}

type SkillWarmer interface {
	Warm(ctx context.Context) error
}

type StatsSource interface {
	Refresh(ctx context.Context) (*models.PlatformStats, error)
	Digest(ctx context.Context, user models.User, since time.Time) (models.DigestStats, error)
}

type UploadCleaner interface {
	CleanupOlderThan(ctx context.Context, age time.Duration) (int, error)
}

type Mailer interface {
	SendFeedbackReminder(ctx context.Context, recipient, other models.User, swapID uint) error
	SendWeeklyDigest(ctx context.Context, user models.User, stats models.DigestStats) error
}

// Deps are the collaborators the maintenance jobs drive.
type Deps struct {
	Messages MessageStore
	Users    UserStore
	Swaps    SwapStore
	Feedback FeedbackStore
	Skills   SkillWarmer
	Stats    StatsSource
	Uploads  UploadCleaner
	Mailer   Mailer
	Claims   *cache.Store
	Flags    *featureflags.Manager

	// DigestPause spaces out digest emails.
	DigestPause time.Duration
}

type tasks struct {
	Deps
	now func() time.Time
}

// RegisterDefaults adds the seven maintenance jobs to s.
func RegisterDefaults(s *Scheduler, d Deps) error {
	if d.Claims == nil {
		d.Claims = cache.NewStore(nil)
	}
	if d.Flags == nil {
		d.Flags = featureflags.NewManager("")
	}
	t := &tasks{Deps: d, now: func() time.Time { return s.now().UTC() }}

	for _, job := range []Job{
		{Name: DailyCleanup, Schedule: "0 2 * * *", Run: t.dailyCleanup},
		{Name: WeeklyDigest, Schedule: "0 9 * * 0", Run: t.weeklyDigest},
		{Name: FeedbackReminders, Schedule: "0 18 * * *", Run: t.feedbackReminders},
		{Name: CacheWarming, Schedule: "0 * * * *", Run: t.cacheWarming},
		{Name: StatsUpdate, Schedule: "*/30 * * * *", Run: t.statsUpdate},
		{Name: FileCleanup, Schedule: "0 3 * * *", Run: t.fileCleanup},
		{Name: InactiveUsers, Schedule: "0 1 * * 1", Run: t.inactiveUsers},
	} {
		if err := s.Register(job); err != nil {
			return err
		}
	}
	return nil
}

func (t *tasks) dailyCleanup(ctx context.Context) error {
	n, err := t.Messages.DeleteReadBefore(ctx, t.now().Add(-messageRetention))
	if err != nil {
		return err
	}
	middleware.Logger.InfoContext(ctx, "old messages removed", slog.Int64("count", n))
	return nil
}

func (t *tasks) weeklyDigest(ctx context.Context) error {
	now := t.now()
	users, err := t.Users.ListActive(ctx, now.Add(-digestActiveSince))
	if err != nil {
		return err
	}

	year, week := now.ISOWeek()
	var sent, failed int
	for _, user := range users {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if user.Email == "" || !t.Flags.Enabled(featureflags.WeeklyDigest, user.ID) {
			continue
		}
		key := cache.NotificationKey(fmt.Sprintf("digest:%d:%d-%02d", user.ID, year, week))
		if !t.Claims.ClaimOnce(ctx, key, digestClaimTTL) {
			continue
		}

		stats, err := t.Stats.Digest(ctx, user, now.Add(-digestWindow))
		if err == nil {
			err = t.Mailer.SendWeeklyDigest(ctx, user, stats)
		}
		if err != nil {
			failed++
			middleware.Logger.WarnContext(ctx, "weekly digest failed",
				slog.Uint64("user_id", uint64(user.ID)), slog.String("error", err.Error()))
			continue
		}
		sent++
		if !pause(ctx, t.DigestPause) {
			return ctx.Err()
		}
	}

	middleware.Logger.InfoContext(ctx, "weekly digests sent", slog.Int("sent", sent), slog.Int("failed", failed))
	if failed > 0 {
		return fmt.Errorf("%d of %d weekly digests failed", failed, sent+failed)
	}
	return nil
}

func (t *tasks) feedbackReminders(ctx context.Context) error {
	now := t.now()
	swaps, err := t.Swaps.CompletedBetween(ctx, now.Add(-reminderWindow), now)
	if err != nil {
		return err
	}

	var sent int
	var errs []error
	for _, swap := range swaps {
		pairs := [][2]models.User{
			{swap.Requester, swap.Receiver},
			{swap.Receiver, swap.Requester},
		}
		for _, p := range pairs {
			recipient, other := p[0], p[1]
			if recipient.Email == "" || !t.Flags.Enabled(featureflags.FeedbackReminders, recipient.ID) {
				continue
			}
			left, err := t.Feedback.ExistsForReviewer(ctx, swap.ID, recipient.ID)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if left {
				continue
			}
			key := cache.NotificationKey(fmt.Sprintf("reminder:%d:%d", swap.ID, recipient.ID))
			if !t.Claims.ClaimOnce(ctx, key, reminderClaimTTL) {
				continue
			}
			if err := t.Mailer.SendFeedbackReminder(ctx, recipient, other, swap.ID); err != nil {
				errs = append(errs, fmt.Errorf("swap %d user %d: %w", swap.ID, recipient.ID, err))
				continue
			}
			sent++
		}
	}

	middleware.Logger.InfoContext(ctx, "feedback reminders sent", slog.Int("sent", sent), slog.Int("swaps", len(swaps)))
	return errors.Join(errs...)
}

func (t *tasks) cacheWarming(ctx context.Context) error {
	skillErr := t.Skills.Warm(ctx)
	_, statsErr := t.Stats.Refresh(ctx)
	return errors.Join(skillErr, statsErr)
}

func (t *tasks) statsUpdate(ctx context.Context) error {
	stats, err := t.Stats.Refresh(ctx)
	if err != nil {
		return err
	}
	middleware.Logger.InfoContext(ctx, "platform stats updated",
		slog.Int64("users", stats.TotalUsers), slog.Int64("swaps", stats.TotalSwaps))
	return nil
}

func (t *tasks) fileCleanup(ctx context.Context) error {
	n, err := t.Uploads.CleanupOlderThan(ctx, uploadRetention)
	if err != nil {
		return err
	}
	middleware.Logger.InfoContext(ctx, "old uploads removed", slog.Int("count", n))
	return nil
}

// inactiveUsers only reports; accounts are never modified.
func (t *tasks) inactiveUsers(ctx context.Context) error {
	n, err := t.Users.CountInactive(ctx, t.now().Add(-inactiveAfter))
	if err != nil {
		return err
	}
	middleware.Logger.InfoContext(ctx, "inactive users", slog.Int64("count", n), slog.Duration("threshold", inactiveAfter))
	return nil
}

func pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
