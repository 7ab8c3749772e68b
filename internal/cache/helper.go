package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"skillswap/internal/middleware"
	"skillswap/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Store is a best-effort JSON cache over Redis. A nil client turns every
// read into a miss and every write into a no-op.
type Store struct {
	rdb *redis.Client

	mu     sync.Mutex
	claims map[string]time.Time
	now    func() time.Time
}

// NewStore wraps rdb, which may be nil.
func NewStore(rdb *redis.Client) *Store {
	return &Store{
		rdb:    rdb,
		claims: make(map[string]time.Time),
		now:    time.Now,
	}
}

// Client exposes the underlying Redis client, possibly nil.
func (s *Store) Client() *redis.Client {
	return s.rdb
}

// GetJSON attempts to get the key from Redis and unmarshal into dest.
// Returns (true, nil) if found and unmarshaled, (false, nil) if not found.
func (s *Store) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if s.rdb == nil {
		return false, nil
	}
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and sets the key with TTL.
func (s *Store) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if s.rdb == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, b, ttl).Err()
}

// CacheAside tries Redis first; on a miss or any cache error it calls fetch,
// which must populate dest, and stores the result with ttl. Only fetch errors
// are returned.
func (s *Store) CacheAside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	family := keyFamily(key)

	found, err := s.GetJSON(ctx, key, dest)
	switch {
	case err != nil:
		observability.CacheLookups.WithLabelValues(family, "error").Inc()
		middleware.Logger.WarnContext(ctx, "cache read failed, falling back to database",
			slog.String("key", key), slog.String("error", err.Error()))
	case found:
		observability.CacheLookups.WithLabelValues(family, "hit").Inc()
		return nil
	default:
		observability.CacheLookups.WithLabelValues(family, "miss").Inc()
	}

	if err := fetch(); err != nil {
		return err
	}

	if err := s.SetJSON(ctx, key, dest, ttl); err != nil {
		middleware.Logger.WarnContext(ctx, "cache write failed",
			slog.String("key", key), slog.String("error", err.Error()))
	}
	return nil
}

// Delete removes keys, logging rather than returning failures.
func (s *Store) Delete(ctx context.Context, keys ...string) {
	if s.rdb == nil || len(keys) == 0 {
		return
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache invalidation failed",
			slog.Any("keys", keys), slog.String("error", err.Error()))
	}
}

// DeletePattern removes every key matching a glob pattern using SCAN.
func (s *Store) DeletePattern(ctx context.Context, pattern string) {
	if s.rdb == nil {
		return
	}
	iter := s.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			s.Delete(ctx, batch...)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache scan failed",
			slog.String("pattern", pattern), slog.String("error", err.Error()))
	}
	s.Delete(ctx, batch...)
}

// ClaimOnce records key for ttl and reports whether this call was the first
// to claim it. Without Redis the claim is held in process memory; if Redis
// errors, the claim is granted so a delivery is never silently lost.
func (s *Store) ClaimOnce(ctx context.Context, key string, ttl time.Duration) bool {
	if s.rdb != nil {
		ok, err := s.rdb.SetNX(ctx, key, "1", ttl).Result()
		if err == nil {
			return ok
		}
		middleware.Logger.WarnContext(ctx, "claim key unavailable, allowing",
			slog.String("key", key), slog.String("error", err.Error()))
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, exp := range s.claims {
		if now.After(exp) {
			delete(s.claims, k)
		}
	}
	if _, held := s.claims[key]; held {
		return false
	}
	s.claims[key] = now.Add(ttl)
	return true
}

// Release drops a claim taken by ClaimOnce.
func (s *Store) Release(ctx context.Context, key string) {
	if s.rdb != nil {
		s.Delete(ctx, key)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, key)
}

// keyFamily reduces a key to its prefix for metric labels.
func keyFamily(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}
