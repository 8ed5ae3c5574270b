package service

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"ghostinbox/backend/internal/alias"
	"ghostinbox/backend/internal/domain"
	"ghostinbox/backend/internal/mailparse"
	"ghostinbox/backend/internal/mailstore"
	"ghostinbox/backend/internal/monitoring"
)

// AliasConfig 别名检索配置
type AliasConfig struct {
	Domain string
	Inbox  string
}

// AliasService 别名检索：只返回收件地址与密钥摘要完全匹配的邮件。
type AliasService struct {
	opener  mailstore.Opener
	cfg     AliasConfig
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewAliasService 创建别名检索服务，metrics 可为 nil
func NewAliasService(opener mailstore.Opener, cfg AliasConfig, logger *zap.Logger, metrics *monitoring.Metrics) *AliasService {
	return &AliasService{
		opener:  opener,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// ResolveAlias 校验密钥并返回摘要与地址，不访问网络
func (s *AliasService) ResolveAlias(secret string) (digest, address string, err error) {
	digest, address, err = s.resolve(secret)
	s.metrics.RecordAliasLookup("resolve", outcome(err))
	return digest, address, err
}

// Address 返回密钥对应的别名地址，不计入查询指标
func (s *AliasService) Address(secret string) (string, error) {
	_, address, err := s.resolve(secret)
	return address, err
}

func (s *AliasService) resolve(secret string) (string, string, error) {
	if err := alias.ValidateSecret(secret); err != nil {
		return "", "", err
	}
	digest := alias.Derive(secret)
	return digest, alias.ScopedAddress(digest, s.cfg.Domain), nil
}

// ListMessages 返回别名收到的邮件，按最新在前排序，limit 为 0 表示不限制。
//
// 会话失败时返回空列表和错误，从不返回部分结果。
func (s *AliasService) ListMessages(ctx context.Context, secret string, limit int) ([]domain.Message, error) {
	digest, address, err := s.resolve(secret)
	if err != nil {
		s.metrics.RecordAliasLookup("list", outcome(err))
		return []domain.Message{}, err
	}
	if limit < 0 {
		limit = 0
	}

	var messages []domain.Message
	err = mailstore.WithSession(ctx, s.opener, s.cfg.Inbox, func(session mailstore.Session) error {
		ids, err := session.Search(mailstore.RecipientContains(address))
		if err != nil {
			return err
		}

		// 序号越大越新，倒序遍历即为最新在前
		for i := len(ids) - 1; i >= 0; i-- {
			msg, err := s.fetchOwned(session, ids[i], digest)
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			messages = append(messages, *msg)
			if limit > 0 && len(messages) == limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		s.metrics.RecordAliasLookup("list", outcome(err))
		s.metrics.RecordSessionFailure("list")
		s.logger.Warn("Failed to list alias messages",
			zap.String("alias", alias.LogKey(digest)),
			zap.Error(err))
		return []domain.Message{}, err
	}

	if messages == nil {
		messages = []domain.Message{}
	}
	s.metrics.RecordAliasLookup("list", "ok")
	s.metrics.RecordMessagesServed(len(messages))
	s.logger.Debug("Listed alias messages",
		zap.String("alias", alias.LogKey(digest)),
		zap.Int("count", len(messages)))

	return messages, nil
}

// GetMessage 读取单封邮件。
// 邮件不存在、ID 非法和邮件不属于该别名都返回同一个 domain.ErrNotFound。
func (s *AliasService) GetMessage(ctx context.Context, secret, id string) (*domain.Message, error) {
	digest, _, err := s.resolve(secret)
	if err != nil {
		s.metrics.RecordAliasLookup("get", outcome(err))
		return nil, err
	}

	seq, err := strconv.ParseUint(id, 10, 32)
	if err != nil || seq == 0 {
		s.metrics.RecordAliasLookup("get", outcome(domain.ErrNotFound))
		return nil, domain.ErrNotFound
	}

	var msg *domain.Message
	err = mailstore.WithSession(ctx, s.opener, s.cfg.Inbox, func(session mailstore.Session) error {
		var err error
		msg, err = s.fetchOwned(session, uint32(seq), digest)
		return err
	})
	if err != nil {
		s.metrics.RecordAliasLookup("get", outcome(err))
		if !errors.Is(err, domain.ErrNotFound) {
			s.metrics.RecordSessionFailure("get")
			s.logger.Warn("Failed to fetch alias message",
				zap.String("alias", alias.LogKey(digest)),
				zap.Error(err))
		}
		return nil, err
	}

	s.metrics.RecordAliasLookup("get", "ok")
	s.metrics.RecordMessagesServed(1)
	return msg, nil
}

// fetchOwned 读取并解码邮件，收件地址与摘要不匹配时返回 domain.ErrNotFound
func (s *AliasService) fetchOwned(session mailstore.Session, id uint32, digest string) (*domain.Message, error) {
	raw, err := session.Fetch(id)
	if err != nil {
		return nil, err
	}

	msg := mailparse.Decode(strconv.FormatUint(uint64(id), 10), raw)
	if msg.Degraded {
		s.logger.Debug("Message decoded with fallback",
			zap.String("id", msg.ID),
			zap.Error(domain.ErrDecodeDegraded))
	}

	if !alias.Matches(msg.ExtractedTo, digest, s.cfg.Domain) {
		return nil, domain.ErrNotFound
	}
	return msg, nil
}

// outcome 把错误归类为指标标签
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInvalidSecret):
		return "invalid_secret"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrTransport):
		return "transport_error"
	default:
		return "error"
	}
}
