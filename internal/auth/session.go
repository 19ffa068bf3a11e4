package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var ErrAuthFailed = errors.New("authentication failed")

// Provider issues an opaque user id, anonymously or from a supplied
// credential. Implementations live in this package; the session does not
// care which one it holds.
type Provider interface {
	Authenticate(ctx context.Context) (userID string, err error)
}

// Session owns the current authenticated identity and notifies listeners
// whenever it changes, including sign-out (empty user id).
type Session struct {
	provider Provider
	log      *zap.Logger

	mu        sync.RWMutex
	userID    string
	listeners []func(userID string)
}

func NewSession(provider Provider, log *zap.Logger) *Session {
	return &Session{provider: provider, log: log}
}

// Start resolves an identity from the provider. On failure the session
// stays signed out and the caller is expected to enter a degraded state;
// there is no retry loop here.
func (s *Session) Start(ctx context.Context) (string, error) {
	userID, err := s.provider.Authenticate(ctx)
	if err != nil {
		s.log.Error("auth_failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	s.log.Info("authenticated", zap.String("user_id", userID))
	s.setUserID(userID)
	return userID, nil
}

// UserID returns the current identity, if any.
func (s *Session) UserID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID, s.userID != ""
}

// OnChange registers a listener fired with the new user id on every
// identity change. An empty id means signed out.
func (s *Session) OnChange(fn func(userID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// SignOut clears the identity and notifies listeners.
func (s *Session) SignOut() {
	s.log.Info("signed_out")
	s.setUserID("")
}

func (s *Session) setUserID(id string) {
	s.mu.Lock()
	s.userID = id
	listeners := make([]func(string), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(id)
	}
}
