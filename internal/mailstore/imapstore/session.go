// Package imapstore 基于 go-imap v2 实现邮箱会话
package imapstore

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"go.uber.org/zap"

	"ghostinbox/backend/internal/domain"
	"ghostinbox/backend/internal/mailstore"
)

// TLS 模式
const (
	TLSImplicit = "implicit"
	TLSStartTLS = "starttls"
	TLSNone     = "none"
)

// Config IMAP 连接配置
type Config struct {
	Host               string
	Port               int
	Username           string
	Password           string
	TLS                string
	InsecureSkipVerify bool
	// DialTimeout 限制连接、TLS 握手和登录的总时长，0 表示不限制
	DialTimeout time.Duration
}

// Opener 每次调用建立一条新的 IMAP 连接
type Opener struct {
	cfg    Config
	logger *zap.Logger
}

var _ mailstore.Opener = (*Opener)(nil)

// NewOpener 创建 IMAP 会话工厂
func NewOpener(cfg Config, logger *zap.Logger) *Opener {
	return &Opener{cfg: cfg, logger: logger}
}

// Open 连接、认证并选中文件夹。
// ctx 结束时底层连接会被关闭，进行中的命令随即以传输错误返回。
func (o *Opener) Open(ctx context.Context, folder string) (mailstore.Session, error) {
	dialCtx := ctx
	if o.cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, o.cfg.DialTimeout)
		defer cancel()
	}

	client, err := o.connect(dialCtx)
	if err != nil {
		return nil, transportError("connect", err)
	}

	stop := context.AfterFunc(ctx, func() {
		_ = client.Close()
	})
	// 登录阶段同样受 DialTimeout 限制
	stopLogin := context.AfterFunc(dialCtx, func() {
		_ = client.Close()
	})

	if err := client.Login(o.cfg.Username, o.cfg.Password).Wait(); err != nil {
		stopLogin()
		stop()
		_ = client.Close()
		return nil, transportError("login", err)
	}
	stopLogin()

	session := &Session{client: client, stop: stop, logger: o.logger}
	if err := session.Select(folder); err != nil {
		_ = session.Close()
		return nil, err
	}

	o.logger.Debug("IMAP session opened",
		zap.String("host", o.cfg.Host),
		zap.String("folder", folder))

	return session, nil
}

func (o *Opener) connect(ctx context.Context) (*imapclient.Client, error) {
	addr := net.JoinHostPort(o.cfg.Host, strconv.Itoa(o.cfg.Port))

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	tlsConfig := &tls.Config{
		ServerName:         o.cfg.Host,
		InsecureSkipVerify: o.cfg.InsecureSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}

	switch o.cfg.TLS {
	case TLSNone:
		return imapclient.New(conn, nil), nil
	case TLSStartTLS:
		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
		defer stop()

		client, err := imapclient.NewStartTLS(conn, &imapclient.Options{TLSConfig: tlsConfig})
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		return client, nil
	default:
		tlsConn := tls.Client(conn, tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return imapclient.New(tlsConn, nil), nil
	}
}

// Session 单条 IMAP 连接上的会话，不可并发使用
type Session struct {
	client      *imapclient.Client
	stop        func() bool
	logger      *zap.Logger
	closed      bool
}

var _ mailstore.Session = (*Session)(nil)

func (s *Session) Select(folder string) error {
	if _, err := s.client.Select(folder, nil).Wait(); err != nil {
		return transportError("select", err)
	}
	return nil
}

func (s *Session) Search(criteria mailstore.Criteria) ([]uint32, error) {
	search := &imap.SearchCriteria{}
	if criteria.Recipient != "" {
		search.Header = []imap.SearchCriteriaHeaderField{
			{Key: "To", Value: criteria.Recipient},
		}
	}

	data, err := s.client.Search(search, nil).Wait()
	if err != nil {
		return nil, transportError("search", err)
	}

	ids := data.AllSeqNums()
	slices.Sort(ids)
	return ids, nil
}

func (s *Session) Fetch(id uint32) ([]byte, error) {
	// 会话期间新到的邮件序号会超过 SELECT 时的数量，范围由服务端判断
	if id == 0 {
		return nil, domain.ErrNotFound
	}

	section := &imap.FetchItemBodySection{Peek: true}
	options := &imap.FetchOptions{
		BodySection: []*imap.FetchItemBodySection{section},
	}

	messages, err := s.client.Fetch(imap.SeqSetNum(id), options).Collect()
	if err != nil {
		// 服务器以 NO/BAD 拒绝时视为邮件不存在
		var imapErr *imap.Error
		if errors.As(err, &imapErr) {
			return nil, domain.ErrNotFound
		}
		return nil, transportError("fetch", err)
	}
	if len(messages) == 0 {
		return nil, domain.ErrNotFound
	}

	raw := messages[0].FindBodySection(section)
	if raw == nil {
		return nil, domain.ErrNotFound
	}
	return raw, nil
}

func (s *Session) MarkDeleted(id uint32) error {
	flags := &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagDeleted},
	}
	if err := s.client.Store(imap.SeqSetNum(id), flags, nil).Close(); err != nil {
		return transportError("store", err)
	}
	return nil
}

func (s *Session) CopyTo(id uint32, folder string) error {
	if _, err := s.client.Copy(imap.SeqSetNum(id), folder).Wait(); err != nil {
		return transportError("copy", err)
	}
	return nil
}

func (s *Session) Expunge() error {
	if err := s.client.Expunge().Close(); err != nil {
		return transportError("expunge", err)
	}
	return nil
}

func (s *Session) ListFolders() ([]string, error) {
	mailboxes, err := s.client.List("", "*", nil).Collect()
	if err != nil {
		return nil, transportError("list", err)
	}

	folders := make([]string, 0, len(mailboxes))
	for _, mb := range mailboxes {
		if slices.Contains(mb.Attrs, imap.MailboxAttrNoSelect) {
			continue
		}
		folders = append(folders, mb.Mailbox)
	}
	return folders, nil
}

// Close 发送 LOGOUT 并关闭连接。连接已断开时 LOGOUT 失败会被忽略。
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.stop()

	if err := s.client.Logout().Wait(); err != nil {
		s.logger.Debug("IMAP logout failed", zap.Error(err))
	}
	_ = s.client.Close()
	return nil
}

func transportError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrTransport, op, err)
}
