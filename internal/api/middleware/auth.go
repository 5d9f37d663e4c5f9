package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/repoinsight/internal/pkg/jwt"
	"github.com/qs3c/repoinsight/internal/pkg/response"
)

const (
	UserIDKey   = "userID"
	TenantIDKey = "tenantID"
)

// Auth JWT 认证中间件，写入用户与租户
func Auth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.AuthError(c, "请提供认证信息")
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			response.AuthError(c, "认证格式错误")
			c.Abort()
			return
		}

		claims, err := jwt.ParseToken(tokenString, jwtSecret)
		if err != nil {
			response.AuthError(c, "认证失败或已过期")
			c.Abort()
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(TenantIDKey, claims.TenantID)
		c.Next()
	}
}

// GetUserID 从上下文获取用户 ID
func GetUserID(c *gin.Context) (int64, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := userID.(int64)
	return id, ok
}

// GetTenantID 从上下文获取租户，未设置时为空
func GetTenantID(c *gin.Context) string {
	return c.GetString(TenantIDKey)
}
