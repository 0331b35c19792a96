package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"powerdash/internal/model"
)

// SessionStore is the session lifecycle as the HTTP layer sees it.
type SessionStore interface {
	Login(ctx context.Context, username, password string) error
	Logout()
	IsAuthenticated() bool
	User() *model.User
}

type AuthHandler struct {
	Session SessionStore
}

type loginBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if body.Username == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}

	if err := h.Session.Login(c.Request.Context(), body.Username, body.Password); err != nil {
		writeBackendError(c, err)
		return
	}

	resp := gin.H{"success": true}
	if user := h.Session.User(); user != nil {
		resp["user"] = user
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	h.Session.Logout()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Me reports the current session. A session whose claims could not be decoded
// is authenticated but anonymous; user is null in that case.
func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"authenticated": h.Session.IsAuthenticated(),
		"user":          h.Session.User(),
	})
}
