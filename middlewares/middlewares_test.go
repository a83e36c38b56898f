package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fr33d0m21/pull/models"
	"github.com/fr33d0m21/pull/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAuthMiddleware(t *testing.T) {
	t.Setenv("API_SECRET", "test-secret")
	r := gin.New()
	r.Use(AuthMiddleware())
	r.GET("/me", func(c *gin.Context) {
		username, _ := utils.GetUsernameFromContext(c.Request.Context())
		claim := TokenClaims(c.Request.Context())
		role := ""
		if claim != nil {
			role = claim.Role
		}
		c.JSON(http.StatusOK, gin.H{"username": username, "role": role})
	})

	token, err := utils.JwtGenerate(7, "alice", "manager")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"username":"alice","role":"manager"}`, w.Body.String())

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Basic abc")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"username":"","role":""}`, w.Body.String())
}

func TestAccessLevels(t *testing.T) {
	admin := &models.User{Role: models.UserRoleAdmin}
	manager := &models.User{Role: models.UserRoleManager, ManagedStoreIds: []string{"s1"}, StoreIds: []string{"s2"}}
	viewer := &models.User{Role: models.UserRoleEmployee, StoreIds: []string{"s1"}}
	worker := &models.User{Role: models.UserRoleEmployee, StoreIds: []string{"s1"}, Permissions: models.Permissions{ProcessOrders: true}}

	tests := []struct {
		name  string
		user  *models.User
		store string
		level AccessLevel
		want  bool
	}{
		{"admin manages anything", admin, "s9", AccessManage, true},
		{"manager manages own store", manager, "s1", AccessManage, true},
		{"manager only views assigned store", manager, "s2", AccessManage, false},
		{"manager views assigned store", manager, "s2", AccessView, true},
		{"viewer cannot process", viewer, "s1", AccessProcess, false},
		{"worker processes", worker, "s1", AccessProcess, true},
		{"worker cannot touch other stores", worker, "s2", AccessView, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.level.allowedFor(tt.user, tt.store))
		})
	}
}

func TestStoreAccessRejects(t *testing.T) {
	newRouter := func(user *models.User) *gin.Engine {
		r := gin.New()
		r.Use(func(c *gin.Context) {
			if user != nil {
				c.Set(currentUserKey, user)
			}
			c.Next()
		})
		r.GET("/stores/:storeId/orders", StoreAccess(AccessProcess), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
		return r
	}

	w := httptest.NewRecorder()
	newRouter(nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stores/s1/orders", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	viewer := &models.User{Role: models.UserRoleEmployee, StoreIds: []string{"s1"}}
	w = httptest.NewRecorder()
	newRouter(viewer).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stores/s1/orders", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireAdmin(t *testing.T) {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(currentUserKey, &models.User{Role: models.UserRoleManager})
		c.Next()
	})
	r.GET("/admin", RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRateKey(t *testing.T) {
	now := time.Date(2024, 3, 18, 10, 0, 42, 0, time.UTC)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "10.1.2.3:5555"
	assert.Equal(t, "RateLimit:ip:10.1.2.3:1710756000", rateKey(c, time.Minute, now))

	c.Request = c.Request.WithContext(utils.SetUsernameInContext(c.Request.Context(), "alice"))
	assert.Equal(t, "RateLimit:user:alice:1710756000", rateKey(c, time.Minute, now))
}
