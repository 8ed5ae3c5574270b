package mailstore

import (
	"context"
	"fmt"
)

// Criteria 邮件搜索条件，零值表示全部邮件
type Criteria struct {
	// Recipient 非空时匹配 To 头包含该地址的邮件
	Recipient string
}

// All 搜索全部邮件
func All() Criteria {
	return Criteria{}
}

// RecipientContains 搜索 To 头包含指定地址的邮件
func RecipientContains(address string) Criteria {
	return Criteria{Recipient: address}
}

// Session 已认证并选中文件夹的邮箱会话。
//
// 邮件 ID 为当前选中文件夹内的序号，Expunge 之后序号会重新编号。
// 所有网络或认证错误都包装为 domain.ErrTransport，出错后会话不可再用，但 Close 仍需调用。
type Session interface {
	Select(folder string) error
	// Search 按升序返回匹配的序号
	Search(criteria Criteria) ([]uint32, error)
	// Fetch 返回原始 RFC 5322 字节，序号不存在时返回 domain.ErrNotFound
	Fetch(id uint32) ([]byte, error)
	MarkDeleted(id uint32) error
	CopyTo(id uint32, folder string) error
	Expunge() error
	ListFolders() ([]string, error)
	Close() error
}

// Opener 建立新会话：连接、认证并选中文件夹
type Opener interface {
	Open(ctx context.Context, folder string) (Session, error)
}

// WithSession 打开会话并执行 fn，无论 fn 正常返回、出错还是 panic 都会释放会话。
// 会话不会在多次调用之间复用。
func WithSession(ctx context.Context, opener Opener, folder string, fn func(Session) error) (err error) {
	session, err := opener.Open(ctx, folder)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := session.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close session: %w", closeErr)
		}
	}()

	return fn(session)
}
