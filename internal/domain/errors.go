package domain

import "errors"

var (
	// ErrInvalidSecret 别名密钥过短，在任何网络访问之前拒绝。
	ErrInvalidSecret = errors.New("invalid alias secret")
	// ErrTransport 连接、认证或网络故障，核心层不做重试。
	ErrTransport = errors.New("mailbox transport failure")
	// ErrNotFound 邮件不存在，或存在但不属于该别名，两者对调用方不可区分。
	ErrNotFound = errors.New("message not found")
	// ErrDecodeDegraded 头部或正文无法完整解码，已降级为字面值。
	ErrDecodeDegraded = errors.New("message decode degraded")
	// ErrSweepInProgress 已有清理任务在运行。
	ErrSweepInProgress = errors.New("retention sweep already in progress")
)
