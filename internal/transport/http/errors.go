package httptransport

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"ghostinbox/backend/internal/alias"
	"ghostinbox/backend/internal/domain"
)

// errorMapping 业务错误到 HTTP 状态码和中文消息的映射
type errorMapping struct {
	err    error
	status int
	msg    string
}

// 按顺序匹配，第一个 errors.Is 命中的条目生效
var errorMessages = []errorMapping{
	{domain.ErrInvalidSecret, http.StatusBadRequest, fmt.Sprintf("别名密钥至少需要 %d 个字符", alias.MinSecretLength)},
	{domain.ErrNotFound, http.StatusNotFound, "邮件不存在"},
	{domain.ErrSweepInProgress, http.StatusConflict, "清理任务正在执行"},
	{domain.ErrTransport, http.StatusServiceUnavailable, "邮箱暂时不可用，请稍后重试"},
	{context.DeadlineExceeded, http.StatusServiceUnavailable, "邮箱响应超时，请稍后重试"},
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	_, msg := classify(err)
	return msg
}

// classify 返回错误对应的 HTTP 状态码和消息，未知错误视为内部错误
func classify(err error) (int, string) {
	for _, m := range errorMessages {
		if errors.Is(err, m.err) {
			return m.status, m.msg
		}
	}
	return http.StatusInternalServerError, MsgInternalError
}

// 通用错误消息
const (
	MsgInvalidRequest = "请求参数格式错误"
	MsgInvalidLimit   = "limit 不能为负数"
	MsgNoSweepYet     = "尚未执行过清理"
	MsgInternalError  = "服务器内部错误"
)
