// Package memory 提供进程内的邮箱实现，语义与 IMAP 序号一致，用于测试和本地开发
package memory

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/emersion/go-message/textproto"

	"ghostinbox/backend/internal/domain"
	"ghostinbox/backend/internal/mailparse"
	"ghostinbox/backend/internal/mailstore"
)

// InboxName 默认收件箱
const InboxName = "INBOX"

type storedMessage struct {
	raw     []byte
	deleted bool
}

type folder struct {
	messages []*storedMessage
}

// Server 进程内邮箱服务器
type Server struct {
	mu       sync.Mutex
	folders  map[string]*folder
	order    []string
	failures map[string]error
	opened   int
	closed   int
}

var _ mailstore.Opener = (*Server)(nil)

// NewServer 创建服务器，INBOX 总是存在
func NewServer(folders ...string) *Server {
	s := &Server{
		folders:  make(map[string]*folder),
		failures: make(map[string]error),
	}
	s.CreateFolder(InboxName)
	for _, name := range folders {
		s.CreateFolder(name)
	}
	return s
}

// CreateFolder 创建文件夹，已存在时忽略
func (s *Server) CreateFolder(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.folders[name]; ok {
		return
	}
	s.folders[name] = &folder{}
	s.order = append(s.order, name)
}

// Append 追加一封邮件到文件夹末尾，返回新序号
func (s *Server) Append(name string, raw []byte) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.folders[name]
	if !ok {
		return 0, fmt.Errorf("append: no such folder %q", name)
	}
	f.messages = append(f.messages, &storedMessage{raw: append([]byte(nil), raw...)})
	return uint32(len(f.messages)), nil
}

// LoadDir 把目录下的 .eml 文件按文件名顺序追加到文件夹
func (s *Server) LoadDir(name, dir string) (int, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.eml"))
	if err != nil {
		return 0, err
	}
	sort.Strings(paths)

	for i, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return i, fmt.Errorf("read %s: %w", path, err)
		}
		if _, err := s.Append(name, raw); err != nil {
			return i, err
		}
	}
	return len(paths), nil
}

// Count 文件夹中的邮件数（含已标记删除）
func (s *Server) Count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f, ok := s.folders[name]; ok {
		return len(f.messages)
	}
	return 0
}

// Flagged 文件夹中已标记删除但尚未清除的邮件数
func (s *Server) Flagged(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	if f, ok := s.folders[name]; ok {
		for _, m := range f.messages {
			if m.deleted {
				n++
			}
		}
	}
	return n
}

// FailOn 让指定操作返回传输错误，err 为 nil 时恢复正常。
// 操作名：open、select、search、fetch、store、copy、expunge、list、close。
func (s *Server) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// Sessions 返回已打开和已关闭的会话数
func (s *Server) Sessions() (opened, closed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened, s.closed
}

// Open 打开新会话并选中文件夹
func (s *Server) Open(ctx context.Context, name string) (mailstore.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: open: %w", domain.ErrTransport, err)
	}

	s.mu.Lock()
	if err := s.failure("open"); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.opened++
	s.mu.Unlock()

	session := &Session{server: s, ctx: ctx}
	if err := session.Select(name); err != nil {
		_ = session.Close()
		return nil, err
	}
	return session, nil
}

// failure 调用方需持有锁
func (s *Server) failure(op string) error {
	if err, ok := s.failures[op]; ok {
		return fmt.Errorf("%w: %s: %w", domain.ErrTransport, op, err)
	}
	return nil
}

// Session 进程内会话
type Session struct {
	server   *Server
	ctx      context.Context
	selected string
	closed   bool
}

var _ mailstore.Session = (*Session)(nil)

// begin 加锁并检查会话状态，成功时调用方负责解锁
func (s *Session) begin(op string) error {
	s.server.mu.Lock()
	if s.closed {
		s.server.mu.Unlock()
		return fmt.Errorf("%w: %s: session closed", domain.ErrTransport, op)
	}
	if err := s.ctx.Err(); err != nil {
		s.server.mu.Unlock()
		return fmt.Errorf("%w: %s: %w", domain.ErrTransport, op, err)
	}
	if err := s.server.failure(op); err != nil {
		s.server.mu.Unlock()
		return err
	}
	return nil
}

func (s *Session) current(op string) (*folder, error) {
	f, ok := s.server.folders[s.selected]
	if !ok {
		return nil, fmt.Errorf("%w: %s: no folder selected", domain.ErrTransport, op)
	}
	return f, nil
}

func (s *Session) Select(name string) error {
	if err := s.begin("select"); err != nil {
		return err
	}
	defer s.server.mu.Unlock()

	if _, ok := s.server.folders[name]; !ok {
		return fmt.Errorf("%w: select: no such folder %q", domain.ErrTransport, name)
	}
	s.selected = name
	return nil
}

func (s *Session) Search(criteria mailstore.Criteria) ([]uint32, error) {
	if err := s.begin("search"); err != nil {
		return nil, err
	}
	defer s.server.mu.Unlock()

	f, err := s.current("search")
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(criteria.Recipient)
	ids := make([]uint32, 0, len(f.messages))
	for i, m := range f.messages {
		if needle != "" && !strings.Contains(strings.ToLower(headerValue(m.raw, "To")), needle) {
			continue
		}
		ids = append(ids, uint32(i+1))
	}
	return ids, nil
}

func (s *Session) Fetch(id uint32) ([]byte, error) {
	if err := s.begin("fetch"); err != nil {
		return nil, err
	}
	defer s.server.mu.Unlock()

	f, err := s.current("fetch")
	if err != nil {
		return nil, err
	}
	m, err := lookup(f, id)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), m.raw...), nil
}

func (s *Session) MarkDeleted(id uint32) error {
	if err := s.begin("store"); err != nil {
		return err
	}
	defer s.server.mu.Unlock()

	f, err := s.current("store")
	if err != nil {
		return err
	}
	m, err := lookup(f, id)
	if err != nil {
		return err
	}
	m.deleted = true
	return nil
}

func (s *Session) CopyTo(id uint32, target string) error {
	if err := s.begin("copy"); err != nil {
		return err
	}
	defer s.server.mu.Unlock()

	f, err := s.current("copy")
	if err != nil {
		return err
	}
	m, err := lookup(f, id)
	if err != nil {
		return err
	}
	dst, ok := s.server.folders[target]
	if !ok {
		return fmt.Errorf("%w: copy: no such folder %q", domain.ErrTransport, target)
	}
	// COPY 保留标记
	dst.messages = append(dst.messages, &storedMessage{raw: m.raw, deleted: m.deleted})
	return nil
}

func (s *Session) Expunge() error {
	if err := s.begin("expunge"); err != nil {
		return err
	}
	defer s.server.mu.Unlock()

	f, err := s.current("expunge")
	if err != nil {
		return err
	}
	kept := f.messages[:0]
	for _, m := range f.messages {
		if !m.deleted {
			kept = append(kept, m)
		}
	}
	for i := len(kept); i < len(f.messages); i++ {
		f.messages[i] = nil
	}
	f.messages = kept
	return nil
}

func (s *Session) ListFolders() ([]string, error) {
	if err := s.begin("list"); err != nil {
		return nil, err
	}
	defer s.server.mu.Unlock()

	return append([]string(nil), s.server.order...), nil
}

// Close 释放会话，重复调用无副作用
func (s *Session) Close() error {
	s.server.mu.Lock()
	defer s.server.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.server.closed++
	return s.server.failure("close")
}

func lookup(f *folder, id uint32) (*storedMessage, error) {
	if id == 0 || int(id) > len(f.messages) {
		return nil, domain.ErrNotFound
	}
	return f.messages[id-1], nil
}

// headerValue 读取原始邮件的头部字段，头部不合法时逐行宽松读取，与常见 IMAP 服务端一致
func headerValue(raw []byte, key string) string {
	header, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil {
		scanned, _ := mailparse.ScanHeader(raw)
		return scanned.Get(key)
	}
	return header.Get(key)
}
