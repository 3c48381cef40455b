package viewstate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/Richiestixx/SiteRightApp/pkg/api/client"
)

// ErrIdentityUnavailable is returned when no identity could be obtained. The
// session stays blocked and nothing downstream may subscribe.
var ErrIdentityUnavailable = errors.New("identity unavailable")

// SessionStarter exchanges a saved token for a live identity.
type SessionStarter interface {
	StartSession(ctx context.Context, token string) (client.SessionResponse, error)
}

// TokenStore persists the session token between runs.
type TokenStore interface {
	LoadToken() (string, error)
	SaveToken(token string) error
}

// Identity is the signed-in user.
type Identity struct {
	UserID string
	AppID  string
	Token  string
}

// Session owns identity bootstrap for the client.
type Session struct {
	starter  SessionStarter
	tokens   TokenStore
	attempts int
	delay    time.Duration
	logger   *slog.Logger

	mu       sync.RWMutex
	identity *Identity
	blocked  bool
}

// NewSession constructs a Session. attempts below one mean a single attempt.
func NewSession(starter SessionStarter, tokens TokenStore, attempts int, delay time.Duration, logger *slog.Logger) *Session {
	if attempts < 1 {
		attempts = 1
	}
	if delay <= 0 {
		delay = time.Second
	}
	return &Session{starter: starter, tokens: tokens, attempts: attempts, delay: delay, logger: logger}
}

// Bootstrap resolves the identity, retrying with a constant delay.
func (s *Session) Bootstrap(ctx context.Context) (Identity, error) {
	saved, err := s.tokens.LoadToken()
	if err != nil {
		s.logger.Warn("saved token unreadable, starting fresh", "error", err)
		saved = ""
	}

	var resp client.SessionResponse
	attempt := 0
	backoff := retry.WithMaxRetries(uint64(s.attempts-1), retry.NewConstant(s.delay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		var callErr error
		resp, callErr = s.starter.StartSession(ctx, saved)
		if callErr != nil {
			s.logger.Warn("session attempt failed", "attempt", attempt, "error", callErr)
			return retry.RetryableError(callErr)
		}
		return nil
	})
	if err != nil {
		s.mu.Lock()
		s.blocked = true
		s.identity = nil
		s.mu.Unlock()
		return Identity{}, fmt.Errorf("%w: %w", ErrIdentityUnavailable, err)
	}

	id := Identity{UserID: resp.User.ID, AppID: resp.User.AppID, Token: resp.Token}
	if err := s.tokens.SaveToken(resp.Token); err != nil {
		s.logger.Warn("session token not saved", "error", err)
	}
	s.mu.Lock()
	s.identity = &id
	s.blocked = false
	s.mu.Unlock()
	s.logger.Info("session ready", "user_id", id.UserID, "attempts", attempt)
	return id, nil
}

// Identity returns the current identity, if any.
func (s *Session) Identity() (Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return Identity{}, false
	}
	return *s.identity, true
}

// Blocked reports whether bootstrap gave up.
func (s *Session) Blocked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.blocked
}

// Require returns the identity or ErrIdentityUnavailable.
func (s *Session) Require() (Identity, error) {
	id, ok := s.Identity()
	if !ok {
		return Identity{}, ErrIdentityUnavailable
	}
	return id, nil
}
