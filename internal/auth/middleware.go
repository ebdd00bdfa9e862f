package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ContextKeyUser gin.Context 里保存用户名的 key
const ContextKeyUser = "auth_user"

// Middleware 校验 Authorization: Bearer <token>
func Middleware(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abort(c, "missing bearer token")
			return
		}
		claims, err := m.Validate(token)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, ErrTokenExpired) {
				msg = "token expired"
			}
			abort(c, msg)
			return
		}
		c.Set(ContextKeyUser, claims.Username)
		c.Next()
	}
}

// bearerToken 从 header 取 token；websocket 握手无法带 header，允许 ?token=
func bearerToken(c *gin.Context) (string, bool) {
	h := c.GetHeader("Authorization")
	if h == "" {
		if t := c.Query("token"); t != "" {
			return t, true
		}
		return "", false
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func abort(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"kind":    "unauthorized",
			"message": msg,
		},
	})
}
