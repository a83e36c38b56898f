package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/fr33d0m21/pull/models"
	"github.com/fr33d0m21/pull/utils"
	"github.com/gin-gonic/gin"
)

const currentUserKey = "currentUser"

// AccessLevel is what a route needs on the store in its path.
type AccessLevel int

const (
	AccessView AccessLevel = iota
	AccessProcess
	AccessManage
)

func (l AccessLevel) allowedFor(user *models.User, storeId string) bool {
	switch l {
	case AccessManage:
		return user.CanManageStore(storeId)
	case AccessProcess:
		return user.CanProcessStore(storeId)
	default:
		return user.CanViewStore(storeId)
	}
}

// RequireUser loads the signed-in user and rejects anonymous or disabled accounts.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		username, ok := utils.GetUsernameFromContext(ctx)
		if !ok || username == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		user, err := models.GetUserByUsername(ctx, username)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !utils.DereferencePtr(user.IsActive, true) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user is disabled"})
			return
		}

		ctx = utils.SetUserIdInContext(ctx, user.ID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(currentUserKey, user)
		c.Next()
	}
}

// CurrentUser returns the user RequireUser loaded, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": utils.ErrorForbidden.Error()})
			return
		}
		c.Next()
	}
}

// StoreAccess checks the user's access to the :storeId path parameter, makes
// sure the store exists and scopes the request context to it.
func StoreAccess(level AccessLevel) gin.HandlerFunc {
	return func(c *gin.Context) {
		storeId := strings.TrimSpace(c.Param("storeId"))
		if storeId == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": utils.ErrorStoreRequired.Error()})
			return
		}
		user := CurrentUser(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if !level.allowedFor(user, storeId) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": utils.ErrorForbidden.Error()})
			return
		}
		ctx := c.Request.Context()
		if _, err := GetStore(ctx, storeId); err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "store not found"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Request = c.Request.WithContext(utils.SetStoreIdInContext(ctx, storeId))
		c.Next()
	}
}
