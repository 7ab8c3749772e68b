package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"skillswap/internal/cache"
	"skillswap/internal/featureflags"
	"skillswap/internal/models"
	"skillswap/internal/repository"
	"skillswap/internal/service"
	"skillswap/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingMailer struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
}

func (m *recordingMailer) SendFeedbackReminder(_ context.Context, recipient, other models.User, swapID uint) error {
	return m.record(fmt.Sprintf("reminder:%s:%s:%d", recipient.Username, other.Username, swapID), recipient.Username)
}

func (m *recordingMailer) SendWeeklyDigest(_ context.Context, user models.User, stats models.DigestStats) error {
	return m.record(fmt.Sprintf("digest:%s:%d", user.Username, stats.NewSwapRequests), user.Username)
}

func (m *recordingMailer) record(call, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[username] {
		return errors.New("smtp refused")
	}
	m.calls = append(m.calls, call)
	return nil
}

func (m *recordingMailer) sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

type env struct {
	db     *gorm.DB
	mr     *miniredis.Miniredis
	fx     *testutil.SwapFixture
	mailer *recordingMailer
	sched  *Scheduler
	now    time.Time
}

func newEnv(t *testing.T, flags string) *env {
	t.Helper()
	db := testutil.NewTestDB(t)
	mr, rdb := testutil.NewTestRedis(t)
	store := cache.NewStore(rdb)
	fx := testutil.NewSwapFixture(t, db)

	users := repository.NewUserRepository(db)
	swaps := repository.NewSwapRequestRepository(db)
	feedback := repository.NewFeedbackRepository(db)
	skills := repository.NewSkillRepository(db)
	userSkills := repository.NewUserSkillRepository(db)
	userSvc := service.NewUserService(users, userSkills)

	e := &env{db: db, mr: mr, fx: fx, mailer: &recordingMailer{fail: map[string]bool{}}, sched: NewScheduler(), now: time.Now().UTC().Add(time.Minute)}
	// a minute ahead so rows created during the test fall inside every window
	e.sched.now = func() time.Time { return e.now }

	require.NoError(t, RegisterDefaults(e.sched, Deps{
		Messages: repository.NewMessageRepository(db),
		Users:    users,
		Swaps:    swaps,
		Feedback: feedback,
		Skills:   service.NewSkillService(skills, store),
		Stats:    service.NewStatsService(users, swaps, feedback, skills, store),
		Uploads:  service.NewAvatarService(repository.NewUploadRepository(db), userSvc, nil),
		Mailer:   e.mailer,
		Claims:   store,
		Flags:    featureflags.NewManager(flags),
	}))
	return e
}

func TestRegisterDefaults(t *testing.T) {
	e := newEnv(t, "")
	assert.Equal(t, []string{
		CacheWarming, DailyCleanup, FeedbackReminders, FileCleanup, InactiveUsers, StatsUpdate, WeeklyDigest,
	}, e.sched.Names())

	schedules := map[string]string{}
	for _, st := range e.sched.Status() {
		schedules[st.Name] = st.Schedule
	}
	assert.Equal(t, "0 9 * * 0", schedules[WeeklyDigest])
	assert.Equal(t, "*/30 * * * *", schedules[StatsUpdate])
}

func TestFeedbackReminders(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()

	recent := e.fx.CreateSwap(t, e.db, models.SwapStatusCompleted)
	old := e.fx.CreateSwap(t, e.db, models.SwapStatusCompleted)
	require.NoError(t, e.db.Model(old).UpdateColumn("updated_at", e.now.Add(-48*time.Hour)).Error)
	e.fx.CreateSwap(t, e.db, models.SwapStatusAccepted)

	// alice already reviewed bob on the recent swap
	require.NoError(t, e.db.Omit("SwapRequest", "Reviewer", "Reviewee").Create(&models.Feedback{
		SwapRequestID: recent.ID, ReviewerID: e.fx.A.ID, RevieweeID: e.fx.B.ID, Rating: 5,
	}).Error)

	require.NoError(t, e.sched.RunJob(ctx, FeedbackReminders))
	assert.Equal(t, []string{fmt.Sprintf("reminder:bob:alice:%d", recent.ID)}, e.mailer.sent())

	require.NoError(t, e.sched.RunJob(ctx, FeedbackReminders))
	assert.Len(t, e.mailer.sent(), 1, "reminders are claimed once")
}

func TestFeedbackReminders_FlagOff(t *testing.T) {
	e := newEnv(t, "feedback_reminders=off")
	e.fx.CreateSwap(t, e.db, models.SwapStatusCompleted)

	require.NoError(t, e.sched.RunJob(context.Background(), FeedbackReminders))
	assert.Empty(t, e.mailer.sent())
}

func TestWeeklyDigest(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()
	e.fx.CreateSwap(t, e.db, models.SwapStatusPending)

	seen := e.now.Add(-time.Hour)
	require.NoError(t, e.db.Model(&models.User{}).Where("1 = 1").UpdateColumn("last_seen_at", seen).Error)
	require.NoError(t, e.db.Model(&models.User{}).Where("1 = 1").UpdateColumn("created_at", e.now.Add(-60*24*time.Hour)).Error)
	// carol has not been around for two months
	require.NoError(t, e.db.Model(e.fx.C).UpdateColumn("last_seen_at", e.now.Add(-60*24*time.Hour)).Error)

	require.NoError(t, e.sched.RunJob(ctx, WeeklyDigest))
	assert.ElementsMatch(t, []string{"digest:alice:0", "digest:bob:1"}, e.mailer.sent())

	require.NoError(t, e.sched.RunJob(ctx, WeeklyDigest))
	assert.Len(t, e.mailer.sent(), 2, "one digest per user per week")

	e.now = e.now.Add(7 * 24 * time.Hour)
	require.NoError(t, e.db.Model(&models.User{}).Where("1 = 1").UpdateColumn("last_seen_at", e.now.Add(-time.Hour)).Error)
	e.mailer.fail["bob"] = true
	err := e.sched.RunJob(ctx, WeeklyDigest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 weekly digests failed")
}

func TestMaintenanceJobs(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()

	t.Run("cache warming fills skills and stats", func(t *testing.T) {
		require.NoError(t, e.sched.RunJob(ctx, CacheWarming))
		assert.True(t, e.mr.Exists(cache.AllSkillsKey))
		assert.True(t, e.mr.Exists(cache.PlatformStatsKey))
	})

	t.Run("stats update overwrites the cache", func(t *testing.T) {
		e.fx.CreateSwap(t, e.db, models.SwapStatusPending)
		require.NoError(t, e.sched.RunJob(ctx, StatsUpdate))
		raw, err := e.mr.Get(cache.PlatformStatsKey)
		require.NoError(t, err)
		assert.Contains(t, raw, `"total_swaps":1`)
	})

	t.Run("daily cleanup removes old read messages", func(t *testing.T) {
		done := e.fx.CreateSwap(t, e.db, models.SwapStatusCompleted)
		msg := &models.Message{SwapRequestID: done.ID, SenderID: e.fx.A.ID, Content: "thanks", IsRead: true}
		require.NoError(t, e.db.Omit("SwapRequest", "Sender").Create(msg).Error)
		require.NoError(t, e.db.Model(msg).UpdateColumn("created_at", e.now.Add(-100*24*time.Hour)).Error)

		require.NoError(t, e.sched.RunJob(ctx, DailyCleanup))
		var count int64
		require.NoError(t, e.db.Model(&models.Message{}).Count(&count).Error)
		assert.Zero(t, count)
	})

	t.Run("file cleanup and inactive users succeed on an empty store", func(t *testing.T) {
		require.NoError(t, e.sched.RunJob(ctx, FileCleanup))
		require.NoError(t, e.sched.RunJob(ctx, InactiveUsers))
	})
}
