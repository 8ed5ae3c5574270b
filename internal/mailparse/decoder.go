package mailparse

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/k3a/html2text"

	"ghostinbox/backend/internal/domain"
)

// PreviewLength 列表摘要的最大字符数
const PreviewLength = 160

var errStopWalk = errors.New("stop walk")

// Decode 将原始 RFC 5322 字节解析为 Message。
//
// 解码从不失败：头部或正文无法完整解码时按字面值降级（非法字节替换为 U+FFFD），
// 并设置 Degraded 标记。
func Decode(id string, raw []byte) *domain.Message {
	msg := &domain.Message{
		ID:        id,
		SizeBytes: int64(len(raw)),
	}

	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil {
		msg.Degraded = true
	}
	if entity == nil {
		// 头部块不合法时逐行宽松扫描，正文按字面值保留
		header, body := ScanHeader(raw)
		decodeHeader(&header, msg)
		msg.Body = literal(string(body))
		msg.Preview = preview(msg.Body, false)
		return msg
	}

	header := mail.Header{Header: entity.Header}
	decodeHeader(&header, msg)

	msg.Body, msg.IsHTML = selectBody(entity, msg)
	msg.Preview = preview(msg.Body, msg.IsHTML)

	return msg
}

// decodeHeader 填充发件人、收件人、主题和日期
func decodeHeader(header *mail.Header, msg *domain.Message) {
	msg.From = decodeText(header, "From", msg)
	msg.RawTo = literal(header.Get("To"))
	msg.ExtractedTo, _ = ExtractAddress(msg.RawTo)

	if header.Has("Subject") {
		subject, err := header.Subject()
		if err != nil {
			msg.Degraded = true
			subject = literal(header.Get("Subject"))
		}
		msg.Subject = literal(subject)
	}

	if header.Has("Date") {
		if date, err := header.Date(); err == nil && !date.IsZero() {
			msg.Date = date
			msg.DateKnown = true
		}
	}
}

// ScanHeader 逐行读取头部直到第一个空行，跳过没有冒号的行，续行拼接到上一个字段。
// 返回的 body 是空行之后的全部字节。
func ScanHeader(raw []byte) (mail.Header, []byte) {
	var header mail.Header
	var key, value string

	flush := func() {
		if key != "" {
			header.Add(key, strings.TrimSpace(value))
		}
		key, value = "", ""
	}

	offset := 0
	for offset < len(raw) {
		line := raw[offset:]
		next := len(raw)
		if end := bytes.IndexByte(line, '\n'); end >= 0 {
			line = line[:end]
			next = offset + end + 1
		}
		offset = next
		line = bytes.TrimSuffix(line, []byte("\r"))

		if len(line) == 0 {
			flush()
			return header, raw[offset:]
		}
		if (line[0] == ' ' || line[0] == '\t') && key != "" {
			value += " " + strings.TrimSpace(string(line))
			continue
		}

		flush()
		if colon := bytes.IndexByte(line, ':'); colon > 0 {
			key = strings.TrimSpace(string(line[:colon]))
			value = string(line[colon+1:])
		}
	}
	flush()
	return header, nil
}

// selectBody 按优先级选择正文：
// 多部分邮件先序遍历取第一个 text/plain 并停止；没有时取遇到的第一个 text/html；
// 非多部分邮件直接解码唯一的负载。
func selectBody(entity *message.Entity, msg *domain.Message) (string, bool) {
	mediaType, _, err := entity.Header.ContentType()
	if err != nil {
		mediaType = "text/plain"
	}

	if !strings.HasPrefix(mediaType, "multipart/") {
		return readBody(entity, msg), mediaType == "text/html"
	}

	var plain, html string
	var plainFound, htmlFound bool

	walkErr := entity.Walk(func(_ []int, part *message.Entity, err error) error {
		if err != nil {
			msg.Degraded = true
		}
		if part == nil {
			return nil
		}

		partType, _, _ := part.Header.ContentType()
		switch partType {
		case "text/plain":
			plain = readBody(part, msg)
			plainFound = true
			return errStopWalk
		case "text/html":
			if !htmlFound {
				html = readBody(part, msg)
				htmlFound = true
			}
		}
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, errStopWalk) {
		msg.Degraded = true
	}

	switch {
	case plainFound:
		return plain, false
	case htmlFound:
		return html, true
	default:
		return "", false
	}
}

// readBody 读取已完成传输解码和字符集转换的正文，读取出错时保留已读部分。
func readBody(entity *message.Entity, msg *domain.Message) string {
	body, err := io.ReadAll(entity.Body)
	if err != nil {
		msg.Degraded = true
	}
	if !utf8.Valid(body) {
		msg.Degraded = true
	}
	return literal(string(body))
}

// decodeText 解码 encoded-word 头部，失败时回退为字面值。
func decodeText(header *mail.Header, key string, msg *domain.Message) string {
	if !header.Has(key) {
		return ""
	}
	value, err := header.Text(key)
	if err != nil {
		msg.Degraded = true
		value = header.Get(key)
	}
	return literal(value)
}

// literal 按字面值解码，非法字节替换为 U+FFFD。
func literal(s string) string {
	return strings.ToValidUTF8(s, "�")
}

// preview 生成纯文本摘要，HTML 正文先转为文本。
func preview(body string, isHTML bool) string {
	if body == "" {
		return ""
	}
	text := body
	if isHTML {
		text = html2text.HTML2Text(body)
	}
	text = strings.Join(strings.Fields(text), " ")

	if utf8.RuneCountInString(text) <= PreviewLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:PreviewLength]) + "…"
}
