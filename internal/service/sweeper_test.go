package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"ghostinbox/backend/internal/domain"
)

// MockLocker 模拟互斥锁
type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	args := m.Called(ctx, key, ttl)
	unlock, _ := args.Get(0).(func())
	return unlock, args.Bool(1), args.Error(2)
}

// MockRunner 模拟清理任务
type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) RunSweep(ctx context.Context) (*domain.SweepReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SweepReport), args.Error(1)
}

func TestSweeper_Run(t *testing.T) {
	ctx := context.Background()
	ttl := 10 * time.Minute

	t.Run("成功后保存报告并释放锁", func(t *testing.T) {
		locker := new(MockLocker)
		runner := new(MockRunner)
		released := false
		report := &domain.SweepReport{Kept: 3, DeletedExpired: 1, FinishedAt: time.Now()}

		locker.On("TryLock", ctx, sweepLockKey, ttl).Return(func() { released = true }, true, nil)
		runner.On("RunSweep", ctx).Return(report, nil)

		sweeper := NewSweeper(runner, locker, ttl, zaptest.NewLogger(t), nil)
		_, ok := sweeper.LastReport()
		assert.False(t, ok)

		got, err := sweeper.Run(ctx)
		require.NoError(t, err)
		assert.Same(t, report, got)
		assert.True(t, released)

		last, ok := sweeper.LastReport()
		assert.True(t, ok)
		assert.Same(t, report, last)

		locker.AssertExpectations(t)
		runner.AssertExpectations(t)
	})

	t.Run("锁被占用时不执行", func(t *testing.T) {
		locker := new(MockLocker)
		runner := new(MockRunner)
		locker.On("TryLock", ctx, sweepLockKey, ttl).Return(nil, false, nil)

		sweeper := NewSweeper(runner, locker, ttl, zaptest.NewLogger(t), nil)
		_, err := sweeper.Run(ctx)
		assert.ErrorIs(t, err, domain.ErrSweepInProgress)
		runner.AssertNotCalled(t, "RunSweep", mock.Anything)
	})

	t.Run("获取锁出错", func(t *testing.T) {
		locker := new(MockLocker)
		runner := new(MockRunner)
		boom := errors.New("redis down")
		locker.On("TryLock", ctx, sweepLockKey, ttl).Return(nil, false, boom)

		sweeper := NewSweeper(runner, locker, ttl, zaptest.NewLogger(t), nil)
		_, err := sweeper.Run(ctx)
		assert.ErrorIs(t, err, boom)
		runner.AssertNotCalled(t, "RunSweep", mock.Anything)
	})

	t.Run("清理失败保留上一次报告", func(t *testing.T) {
		locker := new(MockLocker)
		runner := new(MockRunner)
		releases := 0
		first := &domain.SweepReport{Kept: 1}

		locker.On("TryLock", ctx, sweepLockKey, ttl).Return(func() { releases++ }, true, nil)
		runner.On("RunSweep", ctx).Return(first, nil).Once()
		runner.On("RunSweep", ctx).Return(nil, domain.ErrTransport).Once()

		sweeper := NewSweeper(runner, locker, ttl, zaptest.NewLogger(t), nil)
		_, err := sweeper.Run(ctx)
		require.NoError(t, err)

		_, err = sweeper.Run(ctx)
		assert.ErrorIs(t, err, domain.ErrTransport)
		assert.Equal(t, 2, releases)

		last, ok := sweeper.LastReport()
		assert.True(t, ok)
		assert.Same(t, first, last)
	})
}
