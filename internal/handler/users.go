package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"powerdash/internal/api"
	"powerdash/internal/model"
)

// UsersAPI is the backend slice behind profile and administration routes.
type UsersAPI interface {
	Users(ctx context.Context) ([]model.Account, error)
	UpdateMe(ctx context.Context, update api.ProfileUpdate) (*model.Account, error)
	ChangePassword(ctx context.Context, change api.PasswordChange) error
	UpdateUser(ctx context.Context, id int64, update api.AccountUpdate) (*model.Account, error)
	DeleteUser(ctx context.Context, id int64) error
}

type UsersHandler struct {
	API UsersAPI
}

func (h *UsersHandler) List(c *gin.Context) {
	users, err := h.API.Users(c.Request.Context())
	if err != nil {
		writeBackendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *UsersHandler) UpdateProfile(c *gin.Context) {
	var body api.ProfileUpdate
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	account, err := h.API.UpdateMe(c.Request.Context(), body)
	if err != nil {
		writeBackendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": account})
}

func (h *UsersHandler) ChangePassword(c *gin.Context) {
	var body api.PasswordChange
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if body.CurrentPassword == "" || body.NewPassword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Current and new password are required"})
		return
	}
	if err := h.API.ChangePassword(c.Request.Context(), body); err != nil {
		writeBackendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *UsersHandler) Update(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}
	var body api.AccountUpdate
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	account, err := h.API.UpdateUser(c.Request.Context(), id, body)
	if err != nil {
		writeBackendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": account})
}

func (h *UsersHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}
	if err := h.API.DeleteUser(c.Request.Context(), id); err != nil {
		writeBackendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
