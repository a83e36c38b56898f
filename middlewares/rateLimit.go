package middlewares

import (
	"net/http"
	"strconv"
	"time"

	"github.com/fr33d0m21/pull/config"
	"github.com/fr33d0m21/pull/utils"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimit allows limit requests per window to each caller: the signed-in
// user when known, else the client IP. Counters are fixed redis windows
// RateLimit:<caller>:<window start>. Redis trouble lets the request through.
func RateLimit(limit int64, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		rdb := config.GetRedisDB()
		if rdb == nil || limit <= 0 || window <= 0 {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		key := rateKey(c, window, time.Now())

		var hits *redis.IntCmd
		_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			hits = pipe.Incr(ctx, key)
			pipe.ExpireNX(ctx, key, window)
			return nil
		})
		if err != nil {
			config.LogError(config.GetLogger(), "middlewares", "RateLimit", "count request", key, err)
			c.Next()
			return
		}
		if hits.Val() > limit {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func rateKey(c *gin.Context, window time.Duration, now time.Time) string {
	caller := "ip:" + c.ClientIP()
	if username, ok := utils.GetUsernameFromContext(c.Request.Context()); ok {
		caller = "user:" + username
	}
	start := now.Truncate(window).Unix()
	return "RateLimit:" + caller + ":" + strconv.FormatInt(start, 10)
}
