package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/certprep/certprep-backend/internal/config"
	"github.com/certprep/certprep-backend/internal/response"
)

// RateStore counts requests per client in fixed windows.
type RateStore interface {
	// Hit records one request for key and returns the count within the
	// current window together with the window's end.
	Hit(ctx context.Context, key string, window time.Duration) (count int, reset time.Time, err error)
}

// RateLimit rejects clients that exceed limit requests per window. Store
// failures let the request through.
func RateLimit(store RateStore, limit int, window time.Duration, log zerolog.Logger) gin.HandlerFunc {
	log = log.With().Str("component", "rate_limit").Logger()

	return func(c *gin.Context) {
		count, reset, err := store.Hit(c.Request.Context(), c.ClientIP(), window)
		if err != nil {
			log.Warn().Err(err).Msg("Rate limit store unavailable, allowing request")
			c.Next()
			return
		}

		remaining := max(0, limit-count)
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if count > limit {
			retry := max(1, int(time.Until(reset).Seconds()+0.5))
			c.Header("Retry-After", strconv.Itoa(retry))
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}
		c.Next()
	}
}

// ────────────────────────────────────────────────────────────────────────────
// In-process store
// ────────────────────────────────────────────────────────────────────────────

// MemoryRateStore keeps counters in process memory. It is only correct for a
// single server instance.
type MemoryRateStore struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	now      func() time.Time
	sweptAt  time.Time
}

type visitor struct {
	count int
	reset time.Time
}

// NewMemoryRateStore creates an empty MemoryRateStore.
func NewMemoryRateStore() *MemoryRateStore {
	return &MemoryRateStore{
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

func (s *MemoryRateStore) Hit(_ context.Context, key string, window time.Duration) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now, window)

	v, exists := s.visitors[key]
	if !exists || !now.Before(v.reset) {
		v = &visitor{reset: now.Add(window)}
		s.visitors[key] = v
	}
	v.count++
	return v.count, v.reset, nil
}

// sweep drops expired visitors at most once per window.
func (s *MemoryRateStore) sweep(now time.Time, window time.Duration) {
	if now.Sub(s.sweptAt) < window {
		return
	}
	for key, v := range s.visitors {
		if !now.Before(v.reset) {
			delete(s.visitors, key)
		}
	}
	s.sweptAt = now
}

// ────────────────────────────────────────────────────────────────────────────
// Redis store
// ────────────────────────────────────────────────────────────────────────────

// RedisRateStore shares counters between server instances.
type RedisRateStore struct {
	rdb *redis.Client
	now func() time.Time
}

// NewRedisRateStore creates a RedisRateStore.
func NewRedisRateStore(rdb *redis.Client) *RedisRateStore {
	return &RedisRateStore{rdb: rdb, now: time.Now}
}

func (s *RedisRateStore) Hit(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	if window < time.Second {
		window = time.Second
	}
	now := s.now()
	bucket := now.Unix() / int64(window/time.Second)
	reset := time.Unix((bucket+1)*int64(window/time.Second), 0)
	redisKey := config.CacheKey.RateLimitKey(key, bucket)

	pipe := s.rdb.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, fmt.Errorf("rate limit counter: %w", err)
	}
	return int(incr.Val()), reset, nil
}
