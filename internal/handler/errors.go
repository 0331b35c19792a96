package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"powerdash/internal/api"
)

// writeBackendError translates backend client errors into local API
// responses. Credential problems keep their detail so the UI can show it; an
// unreachable backend is a gateway problem, not a client one.
func writeBackendError(c *gin.Context, err error) {
	var authErr *api.AuthError
	if errors.As(err, &authErr) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": authErr.Detail})
		return
	}
	if errors.Is(err, api.ErrUnreachable) {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Backend unreachable"})
		return
	}
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		status := apiErr.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": apiErr.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
}
