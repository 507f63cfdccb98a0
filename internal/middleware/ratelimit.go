package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/grp-2-projet-elective/cesieats-back/internal/config"
	"github.com/grp-2-projet-elective/cesieats-back/internal/repository"
)

// bucketScript refills KEYS[1] by whole intervals, then tries to take one
// token. Returns {allowed, tokens_left, wait_ms}.
var bucketScript = redis.NewScript(`
local now, cap, refill, every, ttl =
	tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4]), tonumber(ARGV[5])

local h = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens, ts = tonumber(h[1]), tonumber(h[2])
if not tokens or not ts then
	tokens, ts = cap, now
end

local steps = math.floor(math.max(0, now - ts) / every)
if steps > 0 then
	tokens = math.min(cap, tokens + steps * refill)
	ts = ts + steps * every
end

local allowed, wait = 0, 0
if tokens >= 1 then
	allowed, tokens = 1, tokens - 1
else
	wait = math.max(0, every - (now - ts))
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'ts', ts)
redis.call('EXPIRE', KEYS[1], ttl)
return {allowed, tokens, wait}
`)

type bucket struct {
	allowed bool
	left    int64
	wait    time.Duration
}

func take(ctx context.Context, rdb *redis.Client, cfg config.RateLimitConfig, key string, now time.Time) (bucket, error) {
	res, err := bucketScript.Run(ctx, rdb, []string{key},
		now.UnixMilli(), cfg.Capacity, cfg.RefillTokens,
		cfg.RefillInterval.Milliseconds(), int64(cfg.TTL/time.Second)).Int64Slice()
	if err != nil {
		return bucket{}, err
	}
	if len(res) != 3 {
		return bucket{}, redis.Nil
	}
	return bucket{allowed: res[0] == 1, left: res[1], wait: time.Duration(res[2]) * time.Millisecond}, nil
}

// NewTokenBucket throttles the credential endpoints (register, login,
// refreshToken). Without Redis, or on a Redis error, requests pass: the
// limiter protects the credential store, it grants nothing.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log zerolog.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			b, err := take(c.Request().Context(), rdb, cfg, key, time.Now())
			if err != nil {
				log.Warn().Err(err).Str("key", key).Msg("rate limiter unavailable")
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(b.left, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if b.allowed {
				return next(c)
			}

			secs := int((b.wait + time.Second - 1) / time.Second)
			h.Set("Retry-After", strconv.Itoa(secs))
			log.Debug().Str("key", key).Dur("wait", b.wait).Msg("rate limited")
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"message":     "Too many requests",
				"retry_after": secs,
			})
		}
	}
}

// buildRateKey joins the parts named by cfg.KeyStrategy. "mail" is the
// account the caller is authenticating as, read from the body; it is what
// slows down password guessing against one account from many addresses.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	parts := []string{cfg.Prefix}
	for _, part := range strings.Split(strings.ToLower(cfg.KeyStrategy), "_") {
		switch part {
		case "ip":
			ip := c.RealIP()
			if ip == "" {
				ip = "unknown"
			}
			parts = append(parts, "ip", ip)
		case "user":
			parts = append(parts, "user", userID(c))
		case "mail":
			parts = append(parts, "mail", bodyMail(c))
		case "route":
			parts = append(parts, "route", c.Request().Method+" "+c.Path())
		}
	}
	if len(parts) == 1 {
		parts = append(parts, "ip", c.RealIP(), "route", c.Request().Method+" "+c.Path())
	}
	return strings.Join(parts, ":")
}

func bodyMail(c echo.Context) string {
	raw, err := peekField(c, "mail")
	if err != nil || len(raw) == 0 {
		return "none"
	}
	var mail string
	if json.Unmarshal(raw, &mail) != nil || strings.TrimSpace(mail) == "" {
		return "none"
	}
	return repository.NormalizeMail(mail)
}
