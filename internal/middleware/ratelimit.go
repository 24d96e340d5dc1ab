package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/event-booking/internal/config"
	"github.com/iliyamo/event-booking/internal/logger"
)

// tokenBucketScript refills and takes one token atomically.
// KEYS[1] bucket; ARGV now_ms, capacity, refill_tokens, interval_ms, ttl_seconds.
// Returns {allowed, tokens_left, retry_after_ms}.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local refill_tokens = tonumber(ARGV[3])
	local interval_ms = tonumber(ARGV[4])
	local ttl_seconds = tonumber(ARGV[5])

	local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
	local tokens = tonumber(state[1])
	local last_refill = tonumber(state[2])
	if tokens == nil or last_refill == nil then
		tokens = capacity
		last_refill = now_ms
	end

	if interval_ms > 0 and refill_tokens > 0 then
		local intervals = math.floor(math.max(0, now_ms - last_refill) / interval_ms)
		if intervals > 0 then
			tokens = math.min(capacity, tokens + (intervals * refill_tokens))
			last_refill = last_refill + (intervals * interval_ms)
		end
	end

	local allowed = 0
	local retry_after_ms = 0
	if tokens > 0 then
		allowed = 1
		tokens = tokens - 1
	else
		retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
	redis.call('EXPIRE', key, ttl_seconds)
	return { allowed, tokens, retry_after_ms }
`)

// RateLimiter applies Redis token buckets to requests.  A nil limiter, a
// disabled config or a nil client lets every request through, and so does
// any Redis error.
type RateLimiter struct {
	cfg config.RateLimitConfig
	rdb *redis.Client
}

func NewRateLimiter(cfg config.RateLimitConfig, rdb *redis.Client) *RateLimiter {
	return &RateLimiter{cfg: cfg, rdb: rdb}
}

type rateDecision struct {
	allowed   bool
	remaining int64
	retry     time.Duration
}

func (rl *RateLimiter) active() bool {
	return rl != nil && rl.cfg.Enabled && rl.rdb != nil
}

func (rl *RateLimiter) take(ctx context.Context, key string, capacity int) (rateDecision, error) {
	vals, err := tokenBucketScript.Run(ctx, rl.rdb, []string{key},
		time.Now().UnixMilli(),
		capacity,
		rl.cfg.RefillTokens,
		rl.cfg.RefillInterval.Milliseconds(),
		int64(rl.cfg.TTL/time.Second),
	).Int64Slice()
	if err != nil {
		return rateDecision{}, err
	}
	if len(vals) != 3 {
		return rateDecision{}, redis.Nil
	}
	return rateDecision{
		allowed:   vals[0] == 1,
		remaining: vals[1],
		retry:     time.Duration(vals[2]) * time.Millisecond,
	}, nil
}

// Middleware limits every request by the configured key strategy.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	if !rl.active() {
		return passThrough
	}
	return rl.limit(rl.cfg.Capacity, func(c echo.Context) string { return buildRateKey(rl.cfg, c) })
}

// Auth limits credential endpoints per client IP and route with the
// smaller AuthCapacity, independent of the general bucket.
func (rl *RateLimiter) Auth() echo.MiddlewareFunc {
	if !rl.active() {
		return passThrough
	}
	return rl.limit(rl.cfg.AuthCapacity, func(c echo.Context) string {
		return strings.Join([]string{rl.cfg.Prefix, "auth", "ip", clientIP(c), "route", c.Path()}, ":")
	})
}

func (rl *RateLimiter) limit(capacity int, keyOf func(echo.Context) string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			key := keyOf(c)
			d, err := rl.take(ctx, key, capacity)
			if err != nil {
				logger.Warnf(ctx, "ratelimit: redis error for key=%s: %v", key, err)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.remaining, 10))
			if rl.cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if d.allowed {
				return next(c)
			}

			secs := int(math.Ceil(d.retry.Seconds()))
			h.Set("Retry-After", strconv.Itoa(secs))
			logger.Debugf(ctx, "ratelimit: block key=%s retry=%s", key, d.retry)
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":       "too_many_requests",
				"message":     "rate limit exceeded",
				"retry_after": secs,
			})
		}
	}
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

func clientIP(c echo.Context) string {
	if ip := c.RealIP(); ip != "" {
		return ip
	}
	return "unknown"
}

func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := clientIP(c)
	uid := userKey(c)
	route := c.Request().Method + " " + c.Path()

	parts := []string{cfg.Prefix}
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		parts = append(parts, "ip", ip)
	case "user":
		parts = append(parts, "user", uid)
	case "route":
		parts = append(parts, "route", route)
	case "ip_user":
		parts = append(parts, "ip", ip, "user", uid)
	case "ip_route":
		parts = append(parts, "ip", ip, "route", route)
	case "user_route":
		parts = append(parts, "user", uid, "route", route)
	default: // ip_user_route
		parts = append(parts, "ip", ip, "user", uid, "route", route)
	}
	return strings.Join(parts, ":")
}
