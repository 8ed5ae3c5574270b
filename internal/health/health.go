package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"ghostinbox/backend/internal/mailstore"
	"ghostinbox/backend/internal/storage"
)

const (
	// 超过该数量的 goroutine 视为泄漏
	maxGoroutines = 2000
	checkTimeout  = 10 * time.Second
)

// Checker 健康检查器
type Checker struct {
	handler healthcheck.Handler
	opener  mailstore.Opener
	inbox   string
	pinger  storage.Pinger
	logger  *zap.Logger
}

// NewChecker 创建健康检查器，pinger 为 nil 时不检查 Redis
func NewChecker(opener mailstore.Opener, inbox string, pinger storage.Pinger, reg prometheus.Registerer, logger *zap.Logger) *Checker {
	var handler healthcheck.Handler
	if reg != nil {
		handler = healthcheck.NewMetricsHandler(reg, "ghostinbox")
	} else {
		handler = healthcheck.NewHandler()
	}

	c := &Checker{
		handler: handler,
		opener:  opener,
		inbox:   inbox,
		pinger:  pinger,
		logger:  logger,
	}

	c.handler.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(maxGoroutines))
	c.handler.AddReadinessCheck("mailbox", healthcheck.Timeout(c.checkMailbox, checkTimeout))
	if pinger != nil {
		c.handler.AddReadinessCheck("redis", healthcheck.Timeout(c.checkRedis, checkTimeout))
	}
	return c
}

// Handler 返回健康检查处理器，包含 /live 和 /ready
func (c *Checker) Handler() http.Handler {
	return c.handler
}

// LiveEndpoint 存活检查
func (c *Checker) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	c.handler.LiveEndpoint(w, r)
}

// ReadyEndpoint 就绪检查
func (c *Checker) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	c.handler.ReadyEndpoint(w, r)
}

// CheckHealth 执行一次所有检查并返回结果摘要
func (c *Checker) CheckHealth() map[string]string {
	results := map[string]string{
		"mailbox": status(c.checkMailbox()),
	}
	if c.pinger != nil {
		results["redis"] = status(c.checkRedis())
	} else {
		results["redis"] = "NOT_CONFIGURED"
	}
	results["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	return results
}

func (c *Checker) checkMailbox() error {
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	err := mailstore.WithSession(ctx, c.opener, c.inbox, func(mailstore.Session) error {
		return nil
	})
	if err != nil {
		c.logger.Warn("mailbox readiness check failed", zap.Error(err))
	}
	return err
}

func (c *Checker) checkRedis() error {
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()
	return c.pinger.Ping(ctx)
}

func status(err error) string {
	if err != nil {
		return fmt.Sprintf("ERROR: %v", err)
	}
	return "OK"
}
