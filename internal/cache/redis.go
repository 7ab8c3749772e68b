// Package cache provides Redis caching utilities for the application.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"skillswap/internal/middleware"
	"skillswap/internal/observability"

	"github.com/redis/go-redis/v9"
)

// errorHook counts failed commands by name. A miss (redis.Nil) is not a
// failure.
type errorHook struct{}

func failed(err error) bool { return err != nil && !errors.Is(err, redis.Nil) }

func (errorHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (errorHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if failed(err) {
			observability.RedisErrorRate.WithLabelValues(cmd.Name()).Inc()
		}
		return err
	}
}

func (errorHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		if failed(err) {
			observability.RedisErrorRate.WithLabelValues("pipeline").Inc()
		}
		return err
	}
}

// ParseOptions accepts either a redis:// URL or a bare host:port.
func ParseOptions(addr string) (*redis.Options, error) {
	if strings.Contains(addr, "://") {
		opts, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL %q: %w", addr, err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: addr}, nil
}

// InitRedis connects to Redis. It returns nil when Redis is unreachable so
// the application keeps running without a cache.
func InitRedis(ctx context.Context, addr string) *redis.Client {
	degrade := func(err error) *redis.Client {
		middleware.Logger.Warn("redis unavailable, running without cache", slog.String("error", err.Error()))
		return nil
	}
	opts, err := ParseOptions(addr)
	if err != nil {
		return degrade(err)
	}

	client := redis.NewClient(opts)
	client.AddHook(errorHook{})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return degrade(err)
	}
	middleware.Logger.Info("redis connected", slog.String("addr", opts.Addr))
	return client
}
