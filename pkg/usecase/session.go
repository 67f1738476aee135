package usecase

import (
	"context"
	"sync/atomic"
)

// Session holds the state of one collection invocation. It travels in the
// context so that the HTTP transport can count the requests issued on its behalf.
type Session struct {
	requests atomic.Int64
}

func NewSession() *Session {
	return &Session{}
}

// RequestCount returns the number of HTTP requests issued so far.
func (s *Session) RequestCount() int64 {
	return s.requests.Load()
}

func (s *Session) countRequest() {
	s.requests.Add(1)
}

type sessionKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the session stored in ctx, or nil.
func SessionFrom(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}
