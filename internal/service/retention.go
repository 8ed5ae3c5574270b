package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"ghostinbox/backend/internal/alias"
	"ghostinbox/backend/internal/domain"
	"ghostinbox/backend/internal/mailparse"
	"ghostinbox/backend/internal/mailstore"
)

// DefaultSpamHints 垃圾邮件文件夹名称的匹配关键字
var DefaultSpamHints = []string{"spam", "junk", "bulk", "spam_folder", "junk_mail"}

// RetentionPolicy 清理策略
type RetentionPolicy struct {
	Domain      string
	Inbox       string
	MaxAgeDays  int
	WarnAgeDays int
	SpamHints   []string
}

// RetentionService 周期性清理共享邮箱：找回垃圾邮件、删除外来邮件和过期邮件。
type RetentionService struct {
	opener mailstore.Opener
	policy RetentionPolicy
	logger *zap.Logger
	now    func() time.Time
}

// NewRetentionService 创建清理服务
func NewRetentionService(opener mailstore.Opener, policy RetentionPolicy, logger *zap.Logger) *RetentionService {
	if len(policy.SpamHints) == 0 {
		policy.SpamHints = DefaultSpamHints
	}
	return &RetentionService{
		opener: opener,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock 替换时钟
func (s *RetentionService) SetClock(now func() time.Time) {
	s.now = now
}

// RunSweep 在一个会话内完成三个阶段：
//  1. 把垃圾邮件文件夹中的邮件复制回收件箱并清除；
//  2. 逐封分类收件箱邮件，需要删除的只打标记；
//  3. 所有决定做完后执行一次 Expunge。
//
// 中途失败时已打的删除标记保留，下次清理会重新分类。
func (s *RetentionService) RunSweep(ctx context.Context) (*domain.SweepReport, error) {
	builder := newReportBuilder(s.now(), s.policy.MaxAgeDays)

	err := mailstore.WithSession(ctx, s.opener, s.policy.Inbox, func(session mailstore.Session) error {
		if err := s.reclaimSpam(session, builder.report); err != nil {
			return err
		}
		if err := s.classifyInbox(session, builder); err != nil {
			return err
		}
		return session.Expunge()
	})
	if err != nil {
		s.logger.Error("Retention sweep failed", zap.Error(err))
		return nil, err
	}

	report := builder.finish(s.now())
	s.logger.Info("Retention sweep finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("kept", report.Kept),
		zap.Int("deleted_foreign", report.DeletedForeign),
		zap.Int("deleted_expired", report.DeletedExpired),
		zap.Int("warnings", report.Warnings),
		zap.Int("spam_reclaimed", report.SpamReclaimed),
		zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)))

	return report, nil
}

// reclaimSpam 阶段一：先复制再标记，复制失败时不会丢失邮件
func (s *RetentionService) reclaimSpam(session mailstore.Session, report *domain.SweepReport) error {
	folders, err := session.ListFolders()
	if err != nil {
		return err
	}

	spam := FindSpamFolder(folders, s.policy.SpamHints, s.policy.Inbox)
	if spam == "" {
		s.logger.Debug("No spam folder found, skipping reclaim")
		return nil
	}

	if err := session.Select(spam); err != nil {
		return err
	}
	ids, err := session.Search(mailstore.All())
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := session.CopyTo(id, s.policy.Inbox); err != nil {
			return err
		}
		if err := session.MarkDeleted(id); err != nil {
			return err
		}
		report.SpamReclaimed++
	}
	if len(ids) > 0 {
		if err := session.Expunge(); err != nil {
			return err
		}
	}

	report.SpamFolder = spam
	s.logger.Info("Reclaimed spam folder",
		zap.String("folder", spam),
		zap.Int("messages", len(ids)))

	return session.Select(s.policy.Inbox)
}

// classifyInbox 阶段二：分类并标记，不在这里执行 Expunge
func (s *RetentionService) classifyInbox(session mailstore.Session, builder *reportBuilder) error {
	ids, err := session.Search(mailstore.All())
	if err != nil {
		return err
	}

	now := s.now()
	for _, id := range ids {
		raw, err := session.Fetch(id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}

		msg := mailparse.Decode("", raw)
		decision, warning := s.Classify(msg, now)
		builder.add(msg, now, decision, warning)

		if decision.Deleted() {
			if err := session.MarkDeleted(id); err != nil {
				return err
			}
			s.logger.Debug("Message flagged for deletion",
				zap.Uint32("id", id),
				zap.String("decision", string(decision)))
		}
	}
	return nil
}

// Classify 返回单封邮件的处理结果，以及是否处于告警区间。
//
// 收件地址不是本域的摘要地址时无论新旧都删除；否则超过 MaxAgeDays 天删除，
// 处于 (WarnAgeDays, MaxAgeDays] 时保留并告警；日期未知时保留。
func (s *RetentionService) Classify(msg *domain.Message, now time.Time) (domain.RetentionDecision, bool) {
	if !alias.IsScopedAddress(msg.ExtractedTo, s.policy.Domain) {
		return domain.DecisionDeletedForeign, false
	}

	days, ok := msg.AgeDays(now)
	if !ok {
		return domain.DecisionKept, false
	}
	if days > s.policy.MaxAgeDays {
		return domain.DecisionDeletedExpired, false
	}
	return domain.DecisionKept, days > s.policy.WarnAgeDays
}

// FindSpamFolder 返回第一个名称（忽略大小写）包含任一关键字的文件夹，收件箱本身除外
func FindSpamFolder(folders, hints []string, inbox string) string {
	for _, folder := range folders {
		if strings.EqualFold(folder, inbox) {
			continue
		}
		name := strings.ToLower(folder)
		for _, hint := range hints {
			if hint != "" && strings.Contains(name, strings.ToLower(hint)) {
				return folder
			}
		}
	}
	return ""
}
