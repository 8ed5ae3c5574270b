package httptransport

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ghostinbox/backend/internal/service"
)

// AdminHandler 管理API处理器
type AdminHandler struct {
	sweeper      *service.Sweeper
	sweepTimeout time.Duration
	logger       *zap.Logger
}

// NewAdminHandler 创建管理处理器
func NewAdminHandler(sweeper *service.Sweeper, sweepTimeout time.Duration, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		sweeper:      sweeper,
		sweepTimeout: sweepTimeout,
		logger:       logger,
	}
}

// RunSweep godoc
// @Summary 立即执行一次清理
// @Tags Admin
// @Produce json
// @Param X-Admin-Token header string true "管理令牌"
// @Success 200 {object} Response{data=domain.SweepReport}
// @Failure 409 {object} Response
// @Failure 503 {object} Response
// @Router /v1/admin/sweep [post]
func (h *AdminHandler) RunSweep(c *gin.Context) {
	// 客户端断开不应中断正在进行的清理
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), h.sweepTimeout)
	defer cancel()

	report, err := h.sweeper.Run(ctx)
	if err != nil {
		status, msg := classify(err)
		if status >= 500 {
			_ = c.Error(err)
		}
		Error(c, status, msg)
		return
	}

	h.logger.Info("manual sweep finished",
		zap.Int("deleted", report.Deleted()),
		zap.Int("kept", report.Kept),
	)
	Success(c, report)
}

// GetStatistics godoc
// @Summary 最近一次清理的统计
// @Tags Admin
// @Produce json
// @Param X-Admin-Token header string true "管理令牌"
// @Success 200 {object} Response{data=domain.SweepReport}
// @Failure 404 {object} Response
// @Router /v1/admin/stats [get]
func (h *AdminHandler) GetStatistics(c *gin.Context) {
	report, ok := h.sweeper.LastReport()
	if !ok {
		NotFound(c, MsgNoSweepYet)
		return
	}
	Success(c, report)
}
