package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"ghostinbox/backend/internal/app"
	"ghostinbox/backend/internal/config"
	"ghostinbox/backend/internal/domain"
	"ghostinbox/backend/internal/logger"
	"ghostinbox/backend/internal/report"
	"ghostinbox/backend/internal/service"
)

// main 执行一次清理并输出报告，配置与服务端相同（GHOSTINBOX_ 环境变量或 .env）
func main() {
	asJSON := flag.Bool("json", false, "以 JSON 格式输出报告")
	verbose := flag.Bool("v", false, "输出调试日志")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: 加载配置失败: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewCLI(*verbose)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, *asJSON); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		stop()
		os.Exit(exitCode(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger, asJSON bool) error {
	opener, err := app.NewOpener(cfg, log)
	if err != nil {
		return err
	}

	// 配置 Redis 时与正在运行的服务端共用同一把清理锁
	coord, err := app.NewCoordination(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = coord.Close() }()

	ctx, cancel := context.WithTimeout(ctx, cfg.Retention.Timeout)
	defer cancel()

	sweeper := service.NewSweeper(app.NewRetentionService(opener, cfg, log), coord.Locker, cfg.Retention.LockTTL, log, nil)
	result, err := sweeper.Run(ctx)
	if err != nil {
		return fmt.Errorf("清理失败: %w", err)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return report.Render(os.Stdout, result)
}

// exitCode 清理进行中返回 2，便于调度脚本区分
func exitCode(err error) int {
	if errors.Is(err, domain.ErrSweepInProgress) {
		return 2
	}
	return 1
}
