package main

import (
	"net/http"

	"github.com/fr33d0m21/pull/middlewares"
	"github.com/fr33d0m21/pull/models"
	"github.com/fr33d0m21/pull/reconcile"
	"github.com/fr33d0m21/pull/utils"
	"github.com/gin-gonic/gin"
)

// requirePermission rejects users for whom allowed is false.
func requirePermission(allowed func(*models.User) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middlewares.CurrentUser(c)
		if user == nil || !allowed(user) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": utils.ErrorForbidden.Error()})
			return
		}
		c.Next()
	}
}

func canManageStores(u *models.User) bool { return u.IsAdmin() || u.Permissions.ManageStores }

func canManageUsers(u *models.User) bool { return u.IsAdmin() || u.Permissions.ManageUsers }

func listStoresHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middlewares.CurrentUser(c)
		var name *string
		if q, ok := c.GetQuery("name"); ok {
			name = &q
		}
		stores, err := models.ListStore(c.Request.Context(), name, user.AccessibleStoreIds())
		if err != nil {
			abortWithError(c, "listStoresHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": stores})
	}
}

func createStoreHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewStore
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		store, err := models.CreateStore(c.Request.Context(), &input)
		if err != nil {
			abortWithInputError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": store})
	}
}

func getStoreHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		store, err := middlewares.GetStore(c.Request.Context(), c.Param("storeId"))
		if err != nil {
			abortWithError(c, "getStoreHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": store})
	}
}

func updateStoreHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewStore
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		store, err := models.UpdateStore(c.Request.Context(), c.Param("storeId"), &input)
		if err != nil {
			abortWithInputError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": store})
	}
}

// deleteStoreHandler removes an empty store and forgets its in-process state.
func deleteStoreHandler(svc *reconcile.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		storeId := c.Param("storeId")
		store, err := models.DeleteStore(c.Request.Context(), storeId)
		if err != nil {
			abortWithInputError(c, err)
			return
		}
		svc.Invalidate(storeId)
		c.JSON(http.StatusOK, gin.H{"data": store})
	}
}
