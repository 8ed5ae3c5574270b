// Package app 根据配置组装两个可执行程序共用的组件
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"ghostinbox/backend/internal/config"
	"ghostinbox/backend/internal/mailstore"
	"ghostinbox/backend/internal/mailstore/imapstore"
	"ghostinbox/backend/internal/mailstore/memory"
	"ghostinbox/backend/internal/service"
	"ghostinbox/backend/internal/storage"
	storagememory "ghostinbox/backend/internal/storage/memory"
	storageredis "ghostinbox/backend/internal/storage/redis"
)

// NewOpener 按 mail.backend 创建邮箱会话工厂
func NewOpener(cfg *config.Config, log *zap.Logger) (mailstore.Opener, error) {
	switch cfg.Mail.Backend {
	case config.BackendIMAP:
		log.Info("using IMAP mailbox",
			zap.String("host", cfg.Mail.Host),
			zap.Int("port", cfg.Mail.Port),
			zap.String("tls", cfg.Mail.TLS),
		)
		return imapstore.NewOpener(imapstore.Config{
			Host:               cfg.Mail.Host,
			Port:               cfg.Mail.Port,
			Username:           cfg.Mail.Username,
			Password:           cfg.Mail.Password,
			TLS:                cfg.Mail.TLS,
			InsecureSkipVerify: cfg.Mail.InsecureSkipVerify,
			DialTimeout:        cfg.Mail.DialTimeout,
		}, log.Named("imap")), nil

	case config.BackendMemory:
		srv := memory.NewServer()
		if cfg.Mail.Inbox != memory.InboxName {
			srv.CreateFolder(cfg.Mail.Inbox)
		}
		if cfg.Mail.SeedDir != "" {
			n, err := srv.LoadDir(cfg.Mail.Inbox, cfg.Mail.SeedDir)
			if err != nil {
				return nil, fmt.Errorf("seed memory mailbox: %w", err)
			}
			log.Info("seeded memory mailbox", zap.String("dir", cfg.Mail.SeedDir), zap.Int("messages", n))
		}
		log.Warn("using in-memory mailbox (development mode)")
		return srv, nil
	}
	return nil, fmt.Errorf("unknown mail backend %q", cfg.Mail.Backend)
}

// Coordination 限流器和清理锁，配置 Redis 时跨实例共享
type Coordination struct {
	RateLimiter storage.RateLimiter
	Locker      storage.Locker
	Pinger      storage.Pinger // 未配置 Redis 时为 nil

	close func() error
}

// Close 释放 Redis 连接
func (c *Coordination) Close() error {
	if c.close == nil {
		return nil
	}
	return c.close()
}

// NewCoordination 配置了 redis.address 时使用 Redis，否则使用进程内实现
func NewCoordination(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Coordination, error) {
	if cfg.Redis.Address == "" {
		log.Info("redis not configured, using in-process rate limiter and sweep lock")
		return &Coordination{
			RateLimiter: storagememory.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window),
			Locker:      storagememory.NewLocker(),
		}, nil
	}

	client, err := storageredis.New(ctx, storageredis.Config{
		Address:  cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, log.Named("redis"))
	if err != nil {
		return nil, err
	}

	return &Coordination{
		RateLimiter: storageredis.NewRateLimiter(client, cfg.Redis.Prefix, cfg.RateLimit.Requests, cfg.RateLimit.Window),
		Locker:      storageredis.NewLocker(client, cfg.Redis.Prefix),
		Pinger:      client,
		close:       client.Close,
	}, nil
}

// NewRetentionService 按配置创建清理服务
func NewRetentionService(opener mailstore.Opener, cfg *config.Config, log *zap.Logger) *service.RetentionService {
	return service.NewRetentionService(opener, service.RetentionPolicy{
		Domain:      cfg.Mail.Domain,
		Inbox:       cfg.Mail.Inbox,
		MaxAgeDays:  cfg.Retention.MaxAgeDays,
		WarnAgeDays: cfg.Retention.WarnAgeDays,
		SpamHints:   cfg.Retention.SpamFolders,
	}, log.Named("retention"))
}
