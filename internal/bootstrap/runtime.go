// Package bootstrap assembles the long-lived collaborators shared by the
// server and the command line tools.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"skillswap/internal/cache"
	"skillswap/internal/config"
	"skillswap/internal/database"
	"skillswap/internal/email"
	"skillswap/internal/featureflags"
	"skillswap/internal/jobs"
	"skillswap/internal/middleware"
	"skillswap/internal/models"
	"skillswap/internal/notifications"
	"skillswap/internal/observability"
	"skillswap/internal/repository"
	"skillswap/internal/service"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const digestPause = 500 * time.Millisecond

// Options control runtime initialization behavior.
type Options struct {
	// SkipRedis runs without a cache, presence or cross-instance delivery.
	SkipRedis bool
	// Tracing installs the OpenTelemetry provider described by the config.
	Tracing bool
}

// Runtime is the wired application graph.
type Runtime struct {
	Config *config.Config
	DB     *gorm.DB
	Redis  *redis.Client
	Cache  *cache.Store
	Tokens *middleware.JWTManager
	Flags  *featureflags.Manager

	Hub      *notifications.Hub
	Notifier *notifications.Notifier
	Realtime *notifications.Dispatcher
	Mailer   *email.Service
	Fanout   *service.Fanout

	Users      repository.UserRepository
	Auth       *service.AuthService
	Profiles   *service.UserService
	Avatars    *service.AvatarService
	Skills     *service.SkillService
	UserSkills *service.UserSkillService
	Swaps      *service.SwapService
	Feedback   *service.FeedbackService
	Messages   *service.MessageService
	Stats      *service.StatsService

	Scheduler *jobs.Scheduler

	stopTracing func(context.Context) error
}

// InitRuntime connects to the database and Redis and builds every service on
// top of them. Redis is optional; an unreachable server leaves it nil.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	stopTracing := func(context.Context) error { return nil }
	if opts.Tracing {
		stop, err := observability.InitTracing(observability.TracingConfig{
			ServiceName:    "skillswap-api",
			ServiceVersion: "1.0.0",
			Environment:    cfg.Env,
			Enabled:        cfg.TracingEnabled,
			Exporter:       cfg.OTelExporter,
			OTLPEndpoint:   cfg.OTelOTLPEndpoint,
			SamplerRatio:   1.0,
		})
		if err != nil {
			return nil, fmt.Errorf("tracing init failed: %w", err)
		}
		stopTracing = stop
	}

	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	var rdb *redis.Client
	if !opts.SkipRedis {
		rdb = cache.InitRedis(ctx, cfg.RedisURL)
	}

	rt, err := Build(cfg, db, rdb)
	if err != nil {
		return nil, err
	}
	rt.stopTracing = stopTracing

	if err := ensureAdmins(ctx, cfg, rt.Users); err != nil {
		return nil, fmt.Errorf("failed to promote configured admins: %w", err)
	}
	return rt, nil
}

// Build wires services over already-open connections. rdb may be nil.
func Build(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*Runtime, error) {
	if cfg == nil || db == nil {
		return nil, errors.New("bootstrap requires config and database")
	}

	sender, err := email.NewSender(cfg)
	if err != nil {
		return nil, fmt.Errorf("email sender: %w", err)
	}

	store := cache.NewStore(rdb)
	tokens := middleware.NewJWTManager(cfg)
	flags := featureflags.NewManager(cfg.FeatureFlags)

	var notifier *notifications.Notifier
	if rdb != nil {
		notifier = notifications.NewNotifier(rdb)
	}
	hub := notifications.NewHub(rdb)
	hub.SetPresenceCallbacks(
		func(id uint) { middleware.Logger.Debug("member online", "user_id", id) },
		func(id uint) { middleware.Logger.Debug("member offline", "user_id", id) },
	)
	realtime := notifications.NewDispatcher(hub, notifier)
	mailer := email.NewService(sender, email.MustRenderer(), cfg.FrontendURL)
	fanout := service.NewFanout(realtime, mailer, store)

	users := repository.NewUserRepository(db)
	swapRepo := repository.NewSwapRequestRepository(db)
	skillRepo := repository.NewSkillRepository(db)
	userSkills := repository.NewUserSkillRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	profiles := service.NewUserService(users, userSkills)
	rt := &Runtime{
		Config:     cfg,
		DB:         db,
		Redis:      rdb,
		Cache:      store,
		Tokens:     tokens,
		Flags:      flags,
		Hub:        hub,
		Notifier:   notifier,
		Realtime:   realtime,
		Mailer:     mailer,
		Fanout:     fanout,
		Users:      users,
		Auth:       service.NewAuthService(users, tokens, fanout),
		Profiles:   profiles,
		Avatars:    service.NewAvatarService(repository.NewUploadRepository(db), profiles, cfg),
		Skills:     service.NewSkillService(skillRepo, store),
		UserSkills: service.NewUserSkillService(userSkills, skillRepo, store),
		Swaps:      service.NewSwapService(swapRepo, users, skillRepo, userSkills, store, fanout),
		Feedback:   service.NewFeedbackService(feedbackRepo, swapRepo, store, fanout),
		Messages:   service.NewMessageService(messageRepo, swapRepo, store, fanout),
		Stats:      service.NewStatsService(users, swapRepo, feedbackRepo, skillRepo, store),
		Scheduler:  jobs.NewScheduler(),

		stopTracing: func(context.Context) error { return nil },
	}

	if err := jobs.RegisterDefaults(rt.Scheduler, jobs.Deps{
		Messages:    messageRepo,
		Users:       users,
		Swaps:       swapRepo,
		Feedback:    feedbackRepo,
		Skills:      rt.Skills,
		Stats:       rt.Stats,
		Uploads:     rt.Avatars,
		Mailer:      mailer,
		Claims:      store,
		Flags:       flags,
		DigestPause: digestPause,
	}); err != nil {
		return nil, fmt.Errorf("register jobs: %w", err)
	}
	return rt, nil
}

// Close drains pending notifications and releases connections. The HTTP
// server and the scheduler are stopped by their owners first.
func (r *Runtime) Close(ctx context.Context) error {
	r.Fanout.Wait()

	var errs []error
	if err := r.Hub.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if r.Redis != nil {
		if err := r.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if sqlDB, err := r.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database close: %w", err))
		}
	}
	if err := r.stopTracing(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracing shutdown: %w", err))
	}
	return errors.Join(errs...)
}

// ensureAdmins grants admin to every existing account listed in ADMIN_EMAILS.
// Addresses without an account are skipped so the list can be set before
// the operators sign up.
func ensureAdmins(ctx context.Context, cfg *config.Config, users repository.UserRepository) error {
	for _, addr := range cfg.AdminEmailList() {
		user, err := users.GetByEmail(ctx, addr)
		if models.IsCode(err, models.CodeNotFound) {
			middleware.Logger.Warn("admin email has no account yet", slog.String("email", addr))
			continue
		}
		if err != nil {
			return err
		}
		if user.IsAdmin {
			continue
		}
		if _, err := users.SetAdmin(ctx, user.ID, true); err != nil {
			return err
		}
		middleware.Logger.Info("admin granted from configuration", slog.Uint64("user_id", uint64(user.ID)))
	}
	return nil
}
