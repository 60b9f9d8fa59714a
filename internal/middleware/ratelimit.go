package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/driftmail/beacon/internal/config"
	"github.com/driftmail/beacon/internal/metrics"
)

// RateLimitMiddleware throttles the anonymous tracking endpoints per
// client IP. With Redis available it uses a fixed window shared across
// instances; without it, each instance falls back to local token
// buckets.
type RateLimitMiddleware struct {
	cfg     config.RateLimitConfig
	redis   *redis.Client
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewRateLimitMiddleware(cfg config.RateLimitConfig, rdb *redis.Client, logger *zap.Logger, m *metrics.Metrics) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		cfg:      cfg,
		redis:    rdb,
		logger:   logger,
		metrics:  m,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (rl *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.cfg.Enabled || !strings.HasPrefix(r.URL.Path, "/track/") {
			next.ServeHTTP(w, r)
			return
		}

		ip := clientIP(r)
		if !rl.allow(r.Context(), ip) {
			rl.metrics.RecordRateLimitHit(routeLabel(r.URL.Path))
			rl.logger.Debug("rate limit exceeded",
				zap.String("ip", ip),
				zap.String("path", r.URL.Path),
			)
			w.Header().Set("Retry-After", "1")
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimitMiddleware) allow(ctx context.Context, ip string) bool {
	if rl.redis != nil {
		allowed, err := rl.allowRedis(ctx, ip)
		if err == nil {
			return allowed
		}
		rl.logger.Warn("redis rate limit check failed, using local limiter", zap.Error(err))
	}
	return rl.localLimiter(ip).Allow()
}

// allowRedis implements a fixed window counter: INCR the per-IP key,
// set the window TTL on first increment, reject once the counter
// exceeds the window budget.
func (rl *RateLimitMiddleware) allowRedis(ctx context.Context, ip string) (bool, error) {
	window := rl.cfg.Window
	if window <= 0 {
		window = time.Second
	}
	key := fmt.Sprintf("ratelimit:%s:%d", ip, time.Now().UnixNano()/int64(window))

	count, err := rl.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("incr rate limit key: %w", err)
	}
	if count == 1 {
		if err := rl.redis.Expire(ctx, key, window).Err(); err != nil {
			return false, fmt.Errorf("set rate limit ttl: %w", err)
		}
	}

	budget := int64(rl.cfg.RPS * window.Seconds())
	if budget < 1 {
		budget = 1
	}
	return count <= budget, nil
}

func (rl *RateLimitMiddleware) localLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	lim, ok := rl.limiters[ip]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(rl.cfg.RPS), rl.cfg.Burst)
		rl.limiters[ip] = lim
	}
	return lim
}

// clientIP prefers the X-Forwarded-For chain set by the edge proxy and
// falls back to the connection address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx >= 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
