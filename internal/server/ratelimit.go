package server

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RateLimiter counts requests per caller in fixed windows stored in Redis.
type RateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRateLimiter creates a limiter allowing limit requests per window.
// A nil client or a non-positive limit disables limiting.
func NewRateLimiter(client *redis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, window: window}
}

func (rl *RateLimiter) enabled() bool {
	return rl != nil && rl.client != nil && rl.limit > 0 && rl.window > 0
}

// Limit returns the middleware. Requests are keyed by the authenticated user
// when there is one and by client IP otherwise. The counter and its expiry are
// written in one MULTI/EXEC using EXPIRE NX, which needs Redis 7. Redis errors
// let the request through.
func (rl *RateLimiter) Limit(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.enabled() {
			c.Next()
			return
		}

		who := userIDOf(c)
		if who == "" {
			who = "ip:" + c.ClientIP()
		}
		key := fmt.Sprintf("rate_limit:%s:%s", scope, who)

		var incr *redis.IntCmd
		_, err := rl.client.TxPipelined(c, func(pipe redis.Pipeliner) error {
			incr = pipe.Incr(c, key)
			pipe.ExpireNX(c, key, rl.window)
			return nil
		})
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Rate limiter unavailable")
			c.Next()
			return
		}
		count := incr.Val()

		if count > int64(rl.limit) {
			ttl := rl.retryAfter(c, key)
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(ttl.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests",
				"code":  "rate_limited",
			})
			return
		}
		c.Next()
	}
}

// retryAfter returns the time left in the caller's window. A counter that
// lost its expiry gets it back so the caller is not locked out for good.
func (rl *RateLimiter) retryAfter(ctx context.Context, key string) time.Duration {
	ttl, err := rl.client.TTL(ctx, key).Result()
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to read rate limit TTL")
		return rl.window
	}
	if ttl < 0 {
		if err := rl.client.Expire(ctx, key, rl.window).Err(); err != nil {
			log.Error().Err(err).Str("key", key).Msg("Failed to restore rate limit expiry")
		}
		return rl.window
	}
	return ttl
}
