package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ghostinbox/backend/internal/config"
	"ghostinbox/backend/internal/health"
	"ghostinbox/backend/internal/middleware"
	"ghostinbox/backend/internal/monitoring"
	"ghostinbox/backend/internal/service"
	"ghostinbox/backend/internal/storage"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config       *config.Config
	AliasService *service.AliasService
	Sweeper      *service.Sweeper    // 为 nil 时不挂载管理接口
	Health       *health.Checker     // 为 nil 时不挂载健康检查
	Metrics      *monitoring.Metrics // 为 nil 时不挂载 /metrics
	RateLimiter  storage.RateLimiter
	Logger       *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	monitor := middleware.NewMonitoringMiddleware(deps.Metrics, deps.Logger)
	router.Use(monitor.PanicRecovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(monitor.HTTPMetrics())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(middleware.DefaultBodyLimit))

	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.AdminTokenHeader},
		ExposeHeaders:    []string{"Content-Length", "Retry-After", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	if deps.Health != nil {
		router.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, deps.Health.CheckHealth())
		})
		router.GET("/health/live", gin.WrapF(deps.Health.LiveEndpoint))
		router.GET("/health/ready", gin.WrapF(deps.Health.ReadyEndpoint))
	}
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	v1 := router.Group("/v1")
	{
		aliasHandler := NewAliasHandler(deps.AliasService, deps.Config.Retrieval, deps.Logger)
		aliasRoutes := v1.Group("/alias")
		if deps.RateLimiter != nil {
			aliasRoutes.Use(middleware.RateLimit(deps.RateLimiter, deps.Metrics, deps.Logger))
		}
		{
			aliasRoutes.POST("/resolve", aliasHandler.Resolve)
			aliasRoutes.POST("/messages", aliasHandler.ListMessages)
			aliasRoutes.POST("/messages/:id", aliasHandler.GetMessage)
		}

		if deps.Sweeper != nil && deps.Config.Admin.Token != "" {
			adminHandler := NewAdminHandler(deps.Sweeper, deps.Config.Retention.Timeout, deps.Logger)
			adminAuth := middleware.NewAdminAuth(deps.Config.Admin.Token, deps.Logger)

			adminRoutes := v1.Group("/admin")
			adminRoutes.Use(adminAuth.RequireAdmin())
			{
				adminRoutes.POST("/sweep", adminHandler.RunSweep)
				adminRoutes.GET("/stats", adminHandler.GetStatistics)
			}
		} else {
			deps.Logger.Info("Admin routes disabled: no admin token configured")
		}
	}

	return router
}
