package domain

import "time"

// Message 表示共享邮箱中的一封邮件。
//
// 每次从远端邮箱读取时重新构造，不做缓存；ID 是服务端分配的序号，只在一次会话内有效。
type Message struct {
	ID          string    `json:"id"`
	From        string    `json:"from"`
	RawTo       string    `json:"rawTo"`
	ExtractedTo string    `json:"to,omitempty"` // 解析出的收件地址，为空表示未找到
	Subject     string    `json:"subject"`
	Date        time.Time `json:"date,omitzero"`
	DateKnown   bool      `json:"dateKnown"` // Date 头缺失或无法解析时为 false
	Body        string    `json:"body"`
	IsHTML      bool      `json:"isHtml"`
	Preview     string    `json:"preview"`
	SizeBytes   int64     `json:"sizeBytes"`
	// Degraded 表示头部或正文只能按字面值降级解码
	Degraded bool `json:"degraded,omitempty"`
}

// AgeDays 返回邮件相对 now 的天数（向下取整），日期未知时 ok 为 false。
func (m *Message) AgeDays(now time.Time) (days int, ok bool) {
	if !m.DateKnown {
		return 0, false
	}
	d := now.Sub(m.Date)
	days = int(d / (24 * time.Hour))
	if d < 0 && d%(24*time.Hour) != 0 {
		days--
	}
	return days, true
}
