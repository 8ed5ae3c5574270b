package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ghostinbox/backend/internal/app"
	"ghostinbox/backend/internal/config"
	"ghostinbox/backend/internal/domain"
	"ghostinbox/backend/internal/health"
	"ghostinbox/backend/internal/logger"
	"ghostinbox/backend/internal/monitoring"
	"ghostinbox/backend/internal/service"
	httptransport "ghostinbox/backend/internal/transport/http"
)

// main 启动 HTTP API 与定时清理任务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	log, logCloser, err := logger.New(logger.Options{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		File:        cfg.Log.File,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = log.Sync()
		_ = logCloser.Close()
	}()

	log.Info("starting ghostinbox server",
		zap.String("domain", cfg.Mail.Domain),
		zap.String("backend", cfg.Mail.Backend),
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opener, err := app.NewOpener(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize mailbox", zap.Error(err))
	}

	coord, err := app.NewCoordination(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to initialize redis", zap.Error(err))
	}
	defer func() {
		if err := coord.Close(); err != nil {
			log.Warn("redis close warning", zap.Error(err))
		}
	}()

	// 初始化监控系统
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewMetrics(registry)
	healthChecker := health.NewChecker(opener, cfg.Mail.Inbox, coord.Pinger, registry, log.Named("health"))

	// 初始化服务层
	aliasService := service.NewAliasService(opener, service.AliasConfig{
		Domain: cfg.Mail.Domain,
		Inbox:  cfg.Mail.Inbox,
	}, log.Named("alias"), metrics)
	retentionService := app.NewRetentionService(opener, cfg, log)
	sweeper := service.NewSweeper(retentionService, coord.Locker, cfg.Retention.LockTTL, log.Named("sweeper"), metrics)

	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:       cfg,
		AliasService: aliasService,
		Sweeper:      sweeper,
		Health:       healthChecker,
		Metrics:      metrics,
		RateLimiter:  coord.RateLimiter,
		Logger:       log.Named("http"),
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Retention.Timeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	startedAt := time.Now()

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 定时清理 goroutine
	if cfg.Retention.Enabled {
		group.Go(func() error {
			runScheduledSweeps(groupCtx, sweeper, cfg.Retention, log)
			return nil
		})
	} else {
		log.Info("scheduled retention sweep disabled")
	}

	// 系统运行时间指标
	group.Go(func() error {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				metrics.UpdateSystemUptime(time.Since(startedAt))
			}
		}
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		log.Info("servers stopped")
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}

// runScheduledSweeps 按间隔执行清理，直到 ctx 结束
func runScheduledSweeps(ctx context.Context, sweeper *service.Sweeper, cfg config.RetentionConfig, log *zap.Logger) {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	log.Info("starting retention sweep task",
		zap.Duration("interval", cfg.Interval),
		zap.Int("max_age_days", cfg.MaxAgeDays),
	)

	for {
		select {
		case <-ctx.Done():
			log.Info("retention sweep task stopped")
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			report, err := sweeper.Run(sweepCtx)
			cancel()

			switch {
			case errors.Is(err, domain.ErrSweepInProgress):
				log.Info("retention sweep skipped, previous sweep still running")
			case err != nil:
				log.Error("retention sweep failed", zap.Error(err))
			case report.Deleted() > 0 || report.SpamReclaimed > 0:
				log.Info("retention sweep cleaned mailbox",
					zap.Int("deleted", report.Deleted()),
					zap.Int("spam_reclaimed", report.SpamReclaimed),
				)
			}
		}
	}
}
