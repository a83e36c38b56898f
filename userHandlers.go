package main

import (
	"net/http"
	"strconv"

	"github.com/fr33d0m21/pull/middlewares"
	"github.com/fr33d0m21/pull/models"
	"github.com/fr33d0m21/pull/utils"
	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/dataloader/v7"
)

// userProfile is a user with the stores it can reach resolved.
type userProfile struct {
	*models.User
	Stores []*models.Store `json:"stores"`
}

func userIdParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return 0, false
	}
	return id, true
}

func listUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		users, err := models.ListUsers(ctx)
		if err != nil {
			abortWithError(c, "listUsersHandler", err)
			return
		}
		thunks := make([]dataloader.ThunkMany[*models.Store], len(users))
		for i, u := range users {
			ids := append(append([]string{}, u.StoreIds...), u.ManagedStoreIds...)
			thunks[i] = middlewares.LoadStores(ctx, utils.UniqueSlice(ids))
		}
		profiles := make([]userProfile, 0, len(users))
		for i, u := range users {
			stores, errs := thunks[i]()
			resolved := make([]*models.Store, 0, len(stores))
			for j, s := range stores {
				if j < len(errs) && errs[j] != nil {
					continue
				}
				if s != nil {
					resolved = append(resolved, s)
				}
			}
			profiles = append(profiles, userProfile{User: u, Stores: resolved})
		}
		c.JSON(http.StatusOK, gin.H{"data": profiles})
	}
}

func getUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := userIdParam(c)
		if !ok {
			return
		}
		user, err := models.GetUser(c.Request.Context(), id)
		if err != nil {
			abortWithInputError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": user})
	}
}

func createUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewUser
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		user, err := models.CreateUser(c.Request.Context(), &input)
		if err != nil {
			abortWithInputError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": user})
	}
}

func updateUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := userIdParam(c)
		if !ok {
			return
		}
		var input models.UpdateUserInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		user, err := models.UpdateUser(c.Request.Context(), id, &input)
		if err != nil {
			abortWithInputError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": user})
	}
}

func setUserStoresHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := userIdParam(c)
		if !ok {
			return
		}
		var input models.UserStoresInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		user, err := models.SetUserStores(c.Request.Context(), id, &input)
		if err != nil {
			abortWithInputError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": user})
	}
}
