package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"warikan/internal/domain"
	"warikan/pkg/sentinel"
)

type SessionStoreSuite struct {
	suite.Suite
	store *MemoryStore
	ctx   context.Context
}

func (s *SessionStoreSuite) SetupTest() {
	s.store = NewMemoryStore()
	s.ctx = context.Background()
}

func TestSessionStoreSuite(t *testing.T) {
	suite.Run(t, new(SessionStoreSuite))
}

func (s *SessionStoreSuite) newSession(ttl time.Duration) Session {
	principal := domain.Principal{ID: domain.NewUserID(), Name: "alice"}
	return New(principal, "bearer-token", "Mozilla/5.0", "203.0.113.9", ttl)
}

func (s *SessionStoreSuite) TestSaveAndFind() {
	sess := s.newSession(time.Hour)
	s.Require().NoError(s.store.Save(s.ctx, sess))

	found, err := s.store.Find(s.ctx, sess.ID)
	s.Require().NoError(err)
	s.Equal(sess.Principal.ID, found.Principal.ID)
	s.Equal("bearer-token", found.Token)
}

func (s *SessionStoreSuite) TestFindUnknown() {
	_, err := s.store.Find(s.ctx, "no-such-session")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *SessionStoreSuite) TestExpiredSessionIsGone() {
	sess := s.newSession(-time.Minute)
	s.Require().NoError(s.store.Save(s.ctx, sess))

	_, err := s.store.Find(s.ctx, sess.ID)
	s.Require().Error(err)
}

func (s *SessionStoreSuite) TestDelete() {
	sess := s.newSession(time.Hour)
	s.Require().NoError(s.store.Save(s.ctx, sess))
	s.Require().NoError(s.store.Delete(s.ctx, sess.ID))

	_, err := s.store.Find(s.ctx, sess.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *SessionStoreSuite) TestDeleteUnknownIsNoop() {
	s.Require().NoError(s.store.Delete(s.ctx, "no-such-session"))
}

func TestDeviceLabel(t *testing.T) {
	t.Run("desktop browser", func(t *testing.T) {
		got := DeviceLabel("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		if !strings.HasPrefix(got, "Chrome 120 on ") {
			t.Errorf("DeviceLabel() = %q, want Chrome 120 prefix", got)
		}
	})

	t.Run("empty user agent", func(t *testing.T) {
		if got := DeviceLabel(""); got != "unknown device" {
			t.Errorf("DeviceLabel(\"\") = %q", got)
		}
	})
}
