// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"time"

	_ "skillswap/docs" // swagger docs
	"skillswap/internal/cache"
	"skillswap/internal/config"
	"skillswap/internal/featureflags"
	"skillswap/internal/jobs"
	"skillswap/internal/middleware"
	"skillswap/internal/models"
	"skillswap/internal/notifications"
	"skillswap/internal/repository"
	"skillswap/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// JobRunner is the part of the scheduler the admin API drives.
type JobRunner interface {
	Status() []jobs.JobStatus
	RunJob(ctx context.Context, name string) error
}

// Deps is everything the HTTP layer serves from. Redis, the notifier, the
// job runner and the tracer are optional.
type Deps struct {
	Config   *config.Config
	DB       *gorm.DB
	Redis    *redis.Client
	Cache    *cache.Store
	Tokens   *middleware.JWTManager
	Hub      *notifications.Hub
	Notifier *notifications.Notifier
	Realtime *notifications.Dispatcher
	Jobs     JobRunner
	Flags    *featureflags.Manager
	Tracer   trace.Tracer

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
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	cache          *cache.Store
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	tokens         *middleware.JWTManager
	rateLimiter    *middleware.RateLimiter
	hub            *notifications.Hub
	notifier       *notifications.Notifier
	realtime       *notifications.Dispatcher
	jobs           JobRunner
	featureFlags   *featureflags.Manager
	tracer         trace.Tracer

	userRepo          repository.UserRepository
	authService       *service.AuthService
	userService       *service.UserService
	avatarService     *service.AvatarService
	skillService      *service.SkillService
	userSkillService  *service.UserSkillService
	swapService       *service.SwapService
	feedbackService   *service.FeedbackService
	messageService    *service.MessageService
	statsService      *service.StatsService
}

// NewServer creates a Server using already-initialized dependencies.
func NewServer(d Deps) (*Server, error) {
	if d.Config == nil || d.DB == nil {
		return nil, errors.New("server requires config and database")
	}
	if d.Tokens == nil {
		d.Tokens = middleware.NewJWTManager(d.Config)
	}
	if d.Hub == nil {
		d.Hub = notifications.NewHub(d.Redis)
	}
	if d.Realtime == nil {
		d.Realtime = notifications.NewDispatcher(d.Hub, d.Notifier)
	}
	if d.Flags == nil {
		d.Flags = featureflags.NewManager(d.Config.FeatureFlags)
	}
	if d.Cache == nil {
		d.Cache = cache.NewStore(d.Redis)
	}

	return &Server{
		config:           d.Config,
		db:               d.DB,
		redis:            d.Redis,
		cache:            d.Cache,
		promMiddleware:   middleware.InitMetrics("skillswap-api"),
		tokens:           d.Tokens,
		rateLimiter:      middleware.NewRateLimiter(d.Redis, d.Config.Env),
		hub:              d.Hub,
		notifier:         d.Notifier,
		realtime:         d.Realtime,
		jobs:             d.Jobs,
		featureFlags:     d.Flags,
		tracer:           d.Tracer,
		userRepo:         d.Users,
		authService:      d.Auth,
		userService:      d.Profiles,
		avatarService:    d.Avatars,
		skillService:     d.Skills,
		userSkillService: d.UserSkills,
		swapService:      d.Swaps,
		feedbackService:  d.Feedback,
		messageService:   d.Messages,
		statsService:     d.Stats,
	}, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	if s.tracer != nil {
		app.Use(middleware.TracingMiddleware(s.tracer))
	}

	// Context Middleware to propagate Request ID and Trace ID
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers; avatars are loaded cross-origin by the frontend
	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS runs before anything that can short-circuit so error responses
	// still carry the headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Process-local burst guard in front of the Redis windows
	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || !s.config.IsProduction()
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later.",
				Code:  models.CodeRateLimited,
			})
		},
	}))

	app.Use(middleware.RequestTimeout(s.config.RequestTimeout()))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// Processed avatars
	uploadDir := s.config.UploadDir
	if s.avatarService != nil {
		uploadDir = s.avatarService.UploadDir()
	}
	app.Static(service.UploadURLPrefix, uploadDir, fiber.Static{
		MaxAge: 86400,
	})

	api := app.Group("/api", s.rateLimiter.Handler(middleware.GeneralRule))
	auth := s.tokens.AuthRequired()

	// Auth routes
	authGroup := api.Group("/auth")
	authGroup.Post("/signup", s.rateLimiter.Handler(middleware.AuthRule), s.Signup)
	authGroup.Post("/login", s.rateLimiter.Handler(middleware.AuthRule), s.Login)
	authGroup.Get("/user", auth, s.GetCurrentUser)

	// Users; /me and /browse before /:userId
	users := api.Group("/users")
	users.Patch("/me", auth, s.UpdateMyProfile)
	users.Post("/me/avatar", auth, s.rateLimiter.Handler(middleware.UploadRule), s.UploadAvatar)
	users.Get("/browse", auth, s.BrowseUsers)
	users.Get("/:userId/feedback", s.GetUserFeedback)

	// Skill catalogue
	skills := api.Group("/skills")
	skills.Get("/", s.GetSkills)
	skills.Get("/search", s.SearchSkills)
	skills.Post("/", auth, s.CreateSkill)

	// The caller's own skill lists
	userSkills := api.Group("/user/skills", auth)
	userSkills.Get("/offered", s.GetOfferedSkills)
	userSkills.Post("/offered", s.AddOfferedSkill)
	userSkills.Delete("/offered/:skillId", s.RemoveOfferedSkill)
	userSkills.Get("/wanted", s.GetWantedSkills)
	userSkills.Post("/wanted", s.AddWantedSkill)
	userSkills.Delete("/wanted/:skillId", s.RemoveWantedSkill)

	// Swap requests
	swaps := api.Group("/swap-requests", auth)
	swaps.Post("/", s.CreateSwapRequest)
	swaps.Get("/", s.GetSwapRequests)
	swaps.Get("/:id", s.GetSwapRequest)
	swaps.Patch("/:id/status", s.UpdateSwapRequestStatus)
	swaps.Get("/:id/messages", s.GetSwapMessages)

	api.Post("/feedback", auth, s.CreateFeedback)
	api.Post("/messages", auth, s.rateLimiter.Handler(middleware.MessageRule), s.SendMessage)

	// Admin routes
	admin := api.Group("/admin", auth, s.AdminRequired())
	admin.Get("/stats", s.GetAdminStats)
	admin.Get("/users", s.GetAdminUsers)
	admin.Patch("/users/:userId/status", s.UpdateUserAdminStatus)
	admin.Get("/jobs", s.GetJobs)
	admin.Post("/jobs/:name/run", s.RunJob)
	admin.Get("/feature-flags", s.GetFeatureFlags)

	// Realtime
	app.Get("/ws", s.tokens.WebSocketAuthRequired(), s.WebSocketHandler())
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	// Redis backs caching and fan-out, both of which degrade gracefully
	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	} else if redisStatus != "healthy" {
		overallStatus = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(uint)

		user, err := s.userRepo.GetByID(c.UserContext(), userID)
		if err != nil {
			if models.IsCode(err, models.CodeNotFound) {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("User no longer exists"))
			}
			return models.RespondWithAppError(c, err)
		}
		if !user.IsAdmin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}

		return c.Next()
	}
}

// App builds the Fiber application with middleware and routes installed.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "SkillSwap API",
		BodyLimit: int(s.config.UploadMaxBytes) + 1024*1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start wires the hub to Redis and serves until Shutdown.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.App()

	if s.notifier.Enabled() {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil && !errors.Is(err, context.Canceled) {
				middleware.Logger.Error("failed to start hub wiring", "hub", s.hub.Name(), "error", err)
			}
		}()
	}

	middleware.Logger.Info("server starting", "port", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown stops accepting requests and closes every socket. The database
// and Redis clients belong to the caller.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	var errs []error
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.hub.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}

	middleware.Logger.Info("server shutdown complete")
	return errors.Join(errs...)
}
