package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"ghostinbox/backend/internal/config"
	"ghostinbox/backend/internal/mailstore"
	"ghostinbox/backend/internal/mailstore/imapstore"
	"ghostinbox/backend/internal/mailstore/memory"
	storagememory "ghostinbox/backend/internal/storage/memory"
)

func baseConfig() *config.Config {
	return &config.Config{
		Mail: config.MailConfig{
			Backend: config.BackendMemory,
			Inbox:   "INBOX",
			Domain:  "ghostinbox.it",
		},
		Retention: config.RetentionConfig{MaxAgeDays: 30, WarnAgeDays: 20},
		RateLimit: config.RateLimitConfig{Requests: 5, Window: time.Minute},
	}
}

func TestNewOpener(t *testing.T) {
	t.Run("内存后端导入种子邮件", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Mail.SeedDir = "testdata"

		opener, err := NewOpener(cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		require.IsType(t, &memory.Server{}, opener)
		assert.Equal(t, 1, opener.(*memory.Server).Count("INBOX"))
	})

	t.Run("自定义收件箱名称", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Mail.Inbox = "Catchall"

		opener, err := NewOpener(cfg, zaptest.NewLogger(t))
		require.NoError(t, err)

		err = mailstore.WithSession(context.Background(), opener, "Catchall", func(mailstore.Session) error {
			return nil
		})
		assert.NoError(t, err)
	})

	t.Run("种子目录不存在时为空", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Mail.SeedDir = "does-not-exist"

		opener, err := NewOpener(cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.Equal(t, 0, opener.(*memory.Server).Count("INBOX"))
	})

	t.Run("IMAP 后端", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Mail.Backend = config.BackendIMAP
		cfg.Mail.Host = "imap.example.com"

		opener, err := NewOpener(cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.IsType(t, &imapstore.Opener{}, opener)
	})

	t.Run("未知后端", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Mail.Backend = "pop3"

		_, err := NewOpener(cfg, zaptest.NewLogger(t))
		assert.Error(t, err)
	})
}

func TestNewCoordination(t *testing.T) {
	t.Run("未配置 Redis 使用进程内实现", func(t *testing.T) {
		coord, err := NewCoordination(context.Background(), baseConfig(), zaptest.NewLogger(t))
		require.NoError(t, err)
		defer coord.Close()

		assert.IsType(t, &storagememory.RateLimiter{}, coord.RateLimiter)
		assert.IsType(t, &storagememory.Locker{}, coord.Locker)
		assert.Nil(t, coord.Pinger)
		assert.NoError(t, coord.Close())
	})

	t.Run("Redis 不可达", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Redis.Address = "127.0.0.1:1"

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		_, err := NewCoordination(ctx, cfg, zaptest.NewLogger(t))
		assert.Error(t, err)
	})
}

func TestNewRetentionService(t *testing.T) {
	cfg := baseConfig()
	srv := memory.NewServer()
	_, err := srv.Append("INBOX", []byte("From: a@example.com\r\nTo: stranger@example.com\r\nSubject: x\r\n\r\nbody\r\n"))
	require.NoError(t, err)

	report, err := NewRetentionService(srv, cfg, zaptest.NewLogger(t)).RunSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.DeletedForeign)
}
