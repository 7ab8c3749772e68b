// Command server runs the SkillSwap HTTP and WebSocket API.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"skillswap/internal/bootstrap"
	"skillswap/internal/config"
	"skillswap/internal/middleware"
	"skillswap/internal/observability"
	"skillswap/internal/server"
)

// @title SkillSwap API
// @version 1.0
// @description Skill exchange marketplace: profiles, skill lists, swap requests, chat and feedback
// @termsOfService http://swagger.io/terms/

// @contact.name API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	middleware.Logger = middleware.NewLogger(cfg.Env, os.Getenv("LOG_LEVEL"))

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{Tracing: true})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	srv, err := server.NewServer(server.Deps{
		Config:     cfg,
		DB:         rt.DB,
		Redis:      rt.Redis,
		Cache:      rt.Cache,
		Tokens:     rt.Tokens,
		Hub:        rt.Hub,
		Notifier:   rt.Notifier,
		Realtime:   rt.Realtime,
		Jobs:       rt.Scheduler,
		Flags:      rt.Flags,
		Tracer:     observability.Tracer,
		Users:      rt.Users,
		Auth:       rt.Auth,
		Profiles:   rt.Profiles,
		Avatars:    rt.Avatars,
		Skills:     rt.Skills,
		UserSkills: rt.UserSkills,
		Swaps:      rt.Swaps,
		Feedback:   rt.Feedback,
		Messages:   rt.Messages,
		Stats:      rt.Stats,
	})
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	if cfg.JobsEnabled {
		rt.Scheduler.Start(ctx)
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Start() }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Println("Shutting down server...")
	case err := <-serveErr:
		if err != nil {
			log.Printf("Server stopped: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if cfg.JobsEnabled {
		if err := rt.Scheduler.Stop(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := rt.Close(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		log.Printf("Shutdown finished with errors: %v", err)
		os.Exit(1)
	}
	log.Println("Server exited")
}
