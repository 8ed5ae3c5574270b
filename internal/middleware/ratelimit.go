package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ghostinbox/backend/internal/monitoring"
	"ghostinbox/backend/internal/storage"
)

// RateLimit 按客户端 IP 限流
//
// 限流存储出错时放行请求并记录告警。
func RateLimit(limiter storage.RateLimiter, metrics *monitoring.Metrics, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, retryAfter, err := limiter.Allow(c.Request.Context(), "ip:"+c.ClientIP())
		if err != nil {
			log.Warn("rate limiter unavailable, allowing request", zap.Error(err))
			metrics.RecordError("rate_limit", "middleware")
			c.Next()
			return
		}

		if !allowed {
			metrics.RecordRateLimitBlock("ip")
			c.Header("Retry-After", strconv.Itoa(retrySeconds(retryAfter)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code": http.StatusTooManyRequests,
				"msg":  "请求过于频繁，请稍后再试",
			})
			return
		}

		c.Next()
	}
}

// retrySeconds 向上取整，至少 1 秒
func retrySeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
