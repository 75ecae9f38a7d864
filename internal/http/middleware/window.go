// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements a fixed-window request quota (N requests per window
// per key). It backs the per-user chat limit. Counters live in a WindowStore:
// Redis when several instances must share one quota, or process memory
// otherwise.
//
// Every counted response carries X-RateLimit-Limit and X-RateLimit-Remaining;
// rejected requests get 429 with Retry-After set to the seconds left in the
// window. When the store fails the request is let through and the error is
// logged.
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// WindowStore counts hits per key in fixed windows.
type WindowStore interface {
	// Hit records one hit on key and returns the count in the current window
	// and the time left until the window resets.
	Hit(ctx context.Context, key string, window time.Duration) (count int64, resetIn time.Duration, err error)
}

// MemoryWindowStore is a process-local WindowStore. Safe for concurrent use.
type MemoryWindowStore struct {
	mu      sync.Mutex
	windows map[string]*memWindow
	now     func() time.Time
	hits    uint64
}

type memWindow struct {
	count int64
	ends  time.Time
}

// NewMemoryWindowStore returns an empty in-memory store.
func NewMemoryWindowStore() *MemoryWindowStore {
	return &MemoryWindowStore{windows: make(map[string]*memWindow), now: time.Now}
}

// Hit implements WindowStore. Expired windows are swept every 1000 hits.
func (s *MemoryWindowStore) Hit(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.hits++
	if s.hits%1000 == 0 {
		for k, w := range s.windows {
			if !now.Before(w.ends) {
				delete(s.windows, k)
			}
		}
	}

	w, ok := s.windows[key]
	if !ok || !now.Before(w.ends) {
		w = &memWindow{ends: now.Add(window)}
		s.windows[key] = w
	}
	w.count++
	return w.count, w.ends.Sub(now), nil
}

// RedisWindowStore shares windows across instances through Redis. Each key
// is an integer counter created by INCR whose expiry is set with PEXPIRE on
// the first hit of a window.
type RedisWindowStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisWindowStore builds a store over client. Keys are namespaced with
// prefix (default "ratelimit:").
func NewRedisWindowStore(client redis.Cmdable, prefix string) *RedisWindowStore {
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &RedisWindowStore{client: client, prefix: prefix}
}

// Hit implements WindowStore.
func (s *RedisWindowStore) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	k := s.prefix + key
	n, err := s.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, 0, err
	}
	if n == 1 {
		if err := s.client.PExpire(ctx, k, window).Err(); err != nil {
			return n, window, err
		}
		return n, window, nil
	}
	ttl, err := s.client.PTTL(ctx, k).Result()
	if err != nil {
		return n, window, err
	}
	if ttl < 0 {
		// The key lost its expiry (e.g. PEXPIRE failed earlier); restore it.
		if err := s.client.PExpire(ctx, k, window).Err(); err != nil {
			return n, window, err
		}
		ttl = window
	}
	return n, ttl, nil
}

// WindowLimiter enforces Limit hits per Window for each key.
type WindowLimiter struct {
	Store  WindowStore
	Limit  int
	Window time.Duration
	KeyFn  KeyFunc
	// Name labels the limiter in metrics and in the store key.
	Name string
}

// NewWindowLimiter builds a limiter keyed by keyFn. A limit <= 0 disables
// it.
func NewWindowLimiter(store WindowStore, name string, limit int, window time.Duration, keyFn KeyFunc) *WindowLimiter {
	if keyFn == nil {
		keyFn = KeyByUserOrIP()
	}
	return &WindowLimiter{Store: store, Limit: limit, Window: window, KeyFn: keyFn, Name: name}
}

// Handler returns the Gin middleware. Idempotent replays are not counted.
func (l *WindowLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.Limit <= 0 || l.Store == nil || IsRateBypass(c) {
			c.Next()
			return
		}

		limit := int64(l.Limit)
		count, resetIn, err := l.Store.Hit(c.Request.Context(), l.Name+":"+l.KeyFn(c), l.Window)
		if err != nil {
			LoggerFrom(c).Warn().Err(err).Str("limiter", l.Name).Msg("rate limit store unavailable; allowing request")
			c.Next()
			return
		}

		remaining := limit - count
		if remaining < 0 {
			remaining = 0
		}
		h := c.Writer.Header()
		h.Set("X-RateLimit-Limit", strconv.FormatInt(limit, 10))
		h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > limit {
			rateLimited.WithLabelValues(l.Name).Inc()
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(resetIn)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"request_id": h.Get(requestIDHeader),
				"code":       "too_many_requests",
				"message":    "rate limit exceeded, please wait before sending more messages",
			})
			return
		}
		c.Next()
	}
}
