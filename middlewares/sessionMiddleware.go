package middlewares

import (
	"net/http"

	"github.com/fr33d0m21/pull/config"
	"github.com/fr33d0m21/pull/utils"
	"github.com/gin-gonic/gin"
)

const sessionHeader = "token"

// SessionMiddleware resolves the "token" header through the redis key
// Token:<token>, written by login. Requests without the header pass through.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(sessionHeader)
		if token == "" {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		username, found, err := config.GetRedisValue(ctx, "Token:"+token)
		switch {
		case err != nil:
			config.LogError(config.GetLogger(), "middlewares", "SessionMiddleware", "session lookup", nil, err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session store unavailable"})
			return
		case !found:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": utils.ErrorUnauthorized.Error()})
			return
		}
		ctx = utils.SetUsernameInContext(utils.SetTokenInContext(ctx, token), username)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
