package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"ghostinbox/backend/internal/monitoring"
	"ghostinbox/backend/internal/storage/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(handlers...)
	r.POST("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	return r
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, time.Duration, error) {
	return false, 0, errors.New("redis down")
}

func TestRateLimit(t *testing.T) {
	t.Run("超过限额返回 429", func(t *testing.T) {
		metrics := monitoring.NewMetrics(prometheus.NewRegistry())
		r := newEngine(RateLimit(memory.NewRateLimiter(2, time.Minute), metrics, zaptest.NewLogger(t)))

		for i := 0; i < 2; i++ {
			assert.Equal(t, http.StatusOK, do(r, httptest.NewRequest(http.MethodGet, "/ok", nil)).Code)
		}
		w := do(r, httptest.NewRequest(http.MethodGet, "/ok", nil))
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.NotEmpty(t, w.Header().Get("Retry-After"))
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RateLimitBlocks.WithLabelValues("ip")))
	})

	t.Run("不同 IP 分别计数", func(t *testing.T) {
		r := newEngine(RateLimit(memory.NewRateLimiter(1, time.Minute), nil, zaptest.NewLogger(t)))

		first := httptest.NewRequest(http.MethodGet, "/ok", nil)
		first.RemoteAddr = "10.0.0.1:1234"
		second := httptest.NewRequest(http.MethodGet, "/ok", nil)
		second.RemoteAddr = "10.0.0.2:1234"

		assert.Equal(t, http.StatusOK, do(r, first).Code)
		assert.Equal(t, http.StatusOK, do(r, second).Code)
	})

	t.Run("限流存储故障时放行", func(t *testing.T) {
		r := newEngine(RateLimit(failingLimiter{}, nil, zaptest.NewLogger(t)))
		assert.Equal(t, http.StatusOK, do(r, httptest.NewRequest(http.MethodGet, "/ok", nil)).Code)
	})
}

func TestRetrySeconds(t *testing.T) {
	assert.Equal(t, 1, retrySeconds(0))
	assert.Equal(t, 1, retrySeconds(200*time.Millisecond))
	assert.Equal(t, 3, retrySeconds(2100*time.Millisecond))
}

func TestAdminAuth(t *testing.T) {
	const token = "0123456789abcdef"
	r := newEngine(NewAdminAuth(token, zaptest.NewLogger(t)).RequireAdmin())

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"令牌正确", token, http.StatusOK},
		{"缺少令牌", "", http.StatusUnauthorized},
		{"令牌错误", "fedcba9876543210", http.StatusForbidden},
		{"令牌前缀", token[:8], http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ok", nil)
			if tt.header != "" {
				req.Header.Set(AdminTokenHeader, tt.header)
			}
			assert.Equal(t, tt.want, do(r, req).Code)
		})
	}

	t.Run("未配置令牌时拒绝所有请求", func(t *testing.T) {
		r := newEngine(NewAdminAuth("", zaptest.NewLogger(t)).RequireAdmin())
		req := httptest.NewRequest(http.MethodGet, "/ok", nil)
		req.Header.Set(AdminTokenHeader, "anything")
		assert.Equal(t, http.StatusForbidden, do(r, req).Code)
	})
}

func TestRequestID(t *testing.T) {
	r := newEngine(RequestID())

	t.Run("生成新 ID", func(t *testing.T) {
		w := do(r, httptest.NewRequest(http.MethodGet, "/ok", nil))
		_, err := uuid.Parse(w.Header().Get(RequestIDHeader))
		assert.NoError(t, err)
	})

	t.Run("沿用合法 ID", func(t *testing.T) {
		id := uuid.NewString()
		req := httptest.NewRequest(http.MethodGet, "/ok", nil)
		req.Header.Set(RequestIDHeader, id)
		assert.Equal(t, id, do(r, req).Header().Get(RequestIDHeader))
	})

	t.Run("替换非法 ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ok", nil)
		req.Header.Set(RequestIDHeader, "<script>")
		assert.NotEqual(t, "<script>", do(r, req).Header().Get(RequestIDHeader))
	})
}

func TestBodySizeLimit(t *testing.T) {
	r := newEngine(BodySizeLimit(8))

	w := do(r, httptest.NewRequest(http.MethodPost, "/ok", strings.NewReader("tiny")))
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, httptest.NewRequest(http.MethodPost, "/ok", strings.NewReader("much too large")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestMonitoringMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)
	mm := NewMonitoringMiddleware(metrics, zaptest.NewLogger(t))
	r := newEngine(mm.PanicRecovery(), mm.HTTPMetrics(), SecurityHeaders())

	t.Run("记录请求指标", func(t *testing.T) {
		w := do(r, httptest.NewRequest(http.MethodGet, "/ok", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/ok", "200")))
	})

	t.Run("恢复 panic", func(t *testing.T) {
		w := do(r, httptest.NewRequest(http.MethodGet, "/panic", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PanicsTotal))
	})

	t.Run("未匹配路由", func(t *testing.T) {
		do(r, httptest.NewRequest(http.MethodGet, "/nope", nil))
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")))
	})
}
