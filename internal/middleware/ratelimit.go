package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/response"
)

// RateLimiter is a fixed-window counter kept in Redis, so every API instance
// shares the same budget.
type RateLimiter struct {
	rdb      *redis.Client
	limit    int
	interval time.Duration
	scope    func(c *gin.Context) string
	log      zerolog.Logger
	now      func() time.Time
}

// NewRateLimiter creates a RateLimiter allowing limit requests per interval
// for each scope. scope defaults to the client IP.
func NewRateLimiter(rdb *redis.Client, limit int, interval time.Duration, scope func(c *gin.Context) string, log zerolog.Logger) *RateLimiter {
	if scope == nil {
		scope = func(c *gin.Context) string { return c.ClientIP() }
	}
	return &RateLimiter{
		rdb:      rdb,
		limit:    limit,
		interval: interval,
		scope:    scope,
		log:      log.With().Str("component", "rate_limiter").Logger(),
		now:      time.Now,
	}
}

// ByInviteToken scopes the limit to the :token route parameter, falling back
// to the client IP.
func ByInviteToken(c *gin.Context) string {
	if t := c.Param("token"); t != "" {
		return "token:" + t
	}
	return "ip:" + c.ClientIP()
}

// Middleware returns a Gin middleware enforcing the limit.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.limit <= 0 {
			c.Next()
			return
		}

		window := rl.now().UnixNano() / int64(rl.interval)
		key := config.CacheKey.RateLimitKey(rl.scope(c), window)

		var incr *redis.IntCmd
		_, err := rl.rdb.TxPipelined(c.Request.Context(), func(pipe redis.Pipeliner) error {
			incr = pipe.Incr(c.Request.Context(), key)
			pipe.Expire(c.Request.Context(), key, rl.interval)
			return nil
		})
		if err != nil {
			// Never lock candidates out because Redis hiccuped.
			rl.log.Warn().Err(err).Msg("Rate limit check failed")
			c.Next()
			return
		}

		count := incr.Val()
		remaining := int64(rl.limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(rl.limit) {
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}
		c.Next()
	}
}
