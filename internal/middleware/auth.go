package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"powerdash/internal/model"
)

const userContextKey = "sessionUser"

// Session is the part of the session store the guards consult.
type Session interface {
	IsAuthenticated() bool
	User() *model.User
}

func UserFromContext(c *gin.Context) (*model.User, bool) {
	value, ok := c.Get(userContextKey)
	if !ok {
		return nil, false
	}
	user, ok := value.(*model.User)
	return user, ok && user != nil
}

// RequireSession rejects requests while no backend session is active. The
// decoded user, when claims were readable, is placed on the request context.
func RequireSession(session Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !session.IsAuthenticated() {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Not logged in"})
			c.Abort()
			return
		}
		if user := session.User(); user != nil {
			c.Set(userContextKey, user)
		}
		c.Next()
	}
}

// RequireRole allows the request only when the session user holds one of the
// given roles. A session whose token claims could not be decoded carries no
// role and is rejected.
func RequireRole(session Session, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := session.User()
		if user == nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			c.Abort()
			return
		}
		for _, role := range roles {
			if user.Role == role {
				c.Set(userContextKey, user)
				c.Next()
				return
			}
		}
		c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
		c.Abort()
	}
}
