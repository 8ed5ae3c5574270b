package mailstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghostinbox/backend/internal/domain"
	"ghostinbox/backend/internal/mailstore"
	"ghostinbox/backend/internal/mailstore/memory"
)

func TestWithSession(t *testing.T) {
	t.Run("正常返回后释放", func(t *testing.T) {
		srv := memory.NewServer()
		err := mailstore.WithSession(context.Background(), srv, memory.InboxName, func(s mailstore.Session) error {
			_, err := s.Search(mailstore.All())
			return err
		})
		require.NoError(t, err)

		opened, closed := srv.Sessions()
		assert.Equal(t, 1, opened)
		assert.Equal(t, 1, closed)
	})

	t.Run("回调出错仍释放", func(t *testing.T) {
		srv := memory.NewServer()
		boom := errors.New("boom")
		err := mailstore.WithSession(context.Background(), srv, memory.InboxName, func(mailstore.Session) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, closed := srv.Sessions()
		assert.Equal(t, 1, closed)
	})

	t.Run("回调 panic 仍释放", func(t *testing.T) {
		srv := memory.NewServer()
		assert.Panics(t, func() {
			_ = mailstore.WithSession(context.Background(), srv, memory.InboxName, func(mailstore.Session) error {
				panic("unexpected")
			})
		})

		_, closed := srv.Sessions()
		assert.Equal(t, 1, closed)
	})

	t.Run("打开失败不调用回调", func(t *testing.T) {
		srv := memory.NewServer()
		srv.FailOn("open", errors.New("refused"))

		called := false
		err := mailstore.WithSession(context.Background(), srv, memory.InboxName, func(mailstore.Session) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, domain.ErrTransport)
		assert.False(t, called)
	})

	t.Run("关闭失败上报", func(t *testing.T) {
		srv := memory.NewServer()
		srv.FailOn("close", errors.New("logout failed"))

		err := mailstore.WithSession(context.Background(), srv, memory.InboxName, func(mailstore.Session) error {
			return nil
		})
		assert.ErrorIs(t, err, domain.ErrTransport)
	})
}

func TestCriteria(t *testing.T) {
	assert.Equal(t, mailstore.Criteria{}, mailstore.All())
	assert.Equal(t, "x@y.io", mailstore.RecipientContains("x@y.io").Recipient)
}
