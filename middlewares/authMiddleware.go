package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/fr33d0m21/pull/utils"
	"github.com/gin-gonic/gin"
)

type claimKey struct{}

// AuthMiddleware accepts "Authorization: Bearer <jwt>" from API clients.
// A session username set earlier wins over the token's.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		scheme, raw, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": utils.ErrorUnauthorized.Error()})
			return
		}
		claims, err := utils.ParseAccessToken(strings.TrimSpace(raw))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		ctx := context.WithValue(c.Request.Context(), claimKey{}, claims)
		if _, ok := utils.GetUsernameFromContext(ctx); !ok {
			ctx = utils.SetUsernameInContext(ctx, claims.Username)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// TokenClaims returns the claims AuthMiddleware accepted, or nil.
func TokenClaims(ctx context.Context) *utils.JwtCustomClaim {
	claims, _ := ctx.Value(claimKey{}).(*utils.JwtCustomClaim)
	return claims
}
