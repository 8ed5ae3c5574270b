package service

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"ghostinbox/backend/internal/alias"
	"ghostinbox/backend/internal/mailstore/memory"
)

const (
	testDomain  = "ghostinbox.it"
	testSecret  = "correct horse battery"
	otherSecret = "another long secret"
)

// rawMessage 构造一封简单邮件，date 为零值时不写 Date 头
func rawMessage(from, to, subject string, date time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	if !date.IsZero() {
		fmt.Fprintf(&b, "Date: %s\r\n", date.Format(time.RFC1123Z))
	}
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString("hello " + subject + "\r\n")
	return []byte(b.String())
}

func addressOf(secret string) string {
	return alias.ScopedAddress(alias.Derive(secret), testDomain)
}

func appendTo(t *testing.T, srv *memory.Server, folder string, raw []byte) {
	t.Helper()
	_, err := srv.Append(folder, raw)
	require.NoError(t, err)
}

func newAliasService(t *testing.T, srv *memory.Server) *AliasService {
	t.Helper()
	return NewAliasService(srv, AliasConfig{Domain: testDomain, Inbox: memory.InboxName}, zaptest.NewLogger(t), nil)
}

func newRetentionService(t *testing.T, srv *memory.Server, now time.Time) *RetentionService {
	t.Helper()
	svc := NewRetentionService(srv, RetentionPolicy{
		Domain:      testDomain,
		Inbox:       memory.InboxName,
		MaxAgeDays:  30,
		WarnAgeDays: 20,
	}, zaptest.NewLogger(t))
	svc.SetClock(func() time.Time { return now })
	return svc
}

// malformedMessage 构造一封头部含有无冒号行的邮件
func malformedMessage(to, subject string, date time.Time) []byte {
	var b strings.Builder
	b.WriteString("From: MAILER-DAEMON <postmaster@example.com>\r\n")
	fmt.Fprintf(&b, "To: <%s>\r\n", to)
	b.WriteString("X-Broken header without colon\r\n")
	fmt.Fprintf(&b, "Date: %s\r\n", date.Format(time.RFC1123Z))
	fmt.Fprintf(&b, "Subject: %s\r\n\r\n", subject)
	b.WriteString("delivery report\r\n")
	return []byte(b.String())
}
