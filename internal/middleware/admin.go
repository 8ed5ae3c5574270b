package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminTokenHeader 管理令牌请求头
const AdminTokenHeader = "X-Admin-Token"

// AdminAuth 管理接口鉴权，使用静态令牌
type AdminAuth struct {
	token  []byte
	logger *zap.Logger
}

// NewAdminAuth 创建管理员鉴权中间件
func NewAdminAuth(token string, logger *zap.Logger) *AdminAuth {
	return &AdminAuth{token: []byte(token), logger: logger}
}

// RequireAdmin 要求请求携带正确的管理令牌
func (a *AdminAuth) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader(AdminTokenHeader)
		if provided == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code": http.StatusUnauthorized,
				"msg":  "缺少管理令牌",
			})
			return
		}

		if len(a.token) == 0 || subtle.ConstantTimeCompare([]byte(provided), a.token) != 1 {
			a.logger.Warn("admin token rejected",
				zap.String("ip", c.ClientIP()),
				zap.String("path", c.Request.URL.Path),
			)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code": http.StatusForbidden,
				"msg":  "管理令牌无效",
			})
			return
		}

		c.Next()
	}
}
