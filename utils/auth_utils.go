package utils

import (
	"github.com/gin-gonic/gin"
)

// UserClaims is what the auth middleware leaves in the gin context for an
// authenticated request.
type UserClaims struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

type contextKey string

const UserContextKey contextKey = "user"

func SetUser(c *gin.Context, claims *UserClaims) {
	c.Set(string(UserContextKey), claims)
}

func GetUser(c *gin.Context) *UserClaims {
	user, exists := c.Get(string(UserContextKey))
	if !exists {
		return nil
	}
	if userClaims, ok := user.(*UserClaims); ok {
		return userClaims
	}
	return nil
}
