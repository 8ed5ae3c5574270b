package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"ghostinbox/backend/internal/domain"
	"ghostinbox/backend/internal/monitoring"
	"ghostinbox/backend/internal/storage"
)

const sweepLockKey = "retention-sweep"

// SweepRunner 执行一次清理
type SweepRunner interface {
	RunSweep(ctx context.Context) (*domain.SweepReport, error)
}

// Sweeper 保证同一时间只有一个清理任务，并保存最近一次的报告。
// 定时任务、管理接口和其他实例通过同一把锁互斥。
type Sweeper struct {
	runner  SweepRunner
	locker  storage.Locker
	lockTTL time.Duration
	logger  *zap.Logger
	metrics *monitoring.Metrics

	mu   sync.RWMutex
	last *domain.SweepReport
}

// NewSweeper 创建清理调度器，lockTTL 应大于一次清理的最长耗时
func NewSweeper(runner SweepRunner, locker storage.Locker, lockTTL time.Duration, logger *zap.Logger, metrics *monitoring.Metrics) *Sweeper {
	return &Sweeper{
		runner:  runner,
		locker:  locker,
		lockTTL: lockTTL,
		logger:  logger,
		metrics: metrics,
	}
}

// Run 获取锁并执行一次清理，锁已被占用时返回 domain.ErrSweepInProgress
func (s *Sweeper) Run(ctx context.Context) (*domain.SweepReport, error) {
	unlock, acquired, err := s.locker.TryLock(ctx, sweepLockKey, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !acquired {
		s.logger.Info("Retention sweep skipped, another sweep is running")
		return nil, domain.ErrSweepInProgress
	}
	defer unlock()

	start := time.Now()
	report, err := s.runner.RunSweep(ctx)
	s.metrics.RecordSweep(report, time.Since(start), err)
	if err != nil {
		s.metrics.RecordSessionFailure("sweep")
		return nil, err
	}

	s.mu.Lock()
	s.last = report
	s.mu.Unlock()

	return report, nil
}

// LastReport 返回最近一次成功清理的报告
func (s *Sweeper) LastReport() (*domain.SweepReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.last != nil
}
