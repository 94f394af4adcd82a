// Package session holds the process-wide authentication state.
//
// A Session starts absent, is set after a successful login or registration,
// and is cleared on logout or when the backend rejects the credentials with
// 401. The token is persisted through a Store so it survives restarts, and the
// request layer reads it through the Session it was given rather than from
// ambient global state.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// Change describes a token transition delivered to listeners.
type Change struct {
	Authenticated bool
	Reason        string
}

// Session is the single source of the auth token for outbound requests.
type Session struct {
	mu        sync.RWMutex
	store     Store
	token     string
	expiresAt time.Time
	listeners []func(Change)
	logger    zerolog.Logger
	now       func() time.Time
}

// Open loads the persisted token, if any, from store.
func Open(ctx context.Context, store Store, logger zerolog.Logger) (*Session, error) {
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	token, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}

	s := &Session{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	s.token = token
	s.expiresAt = tokenExpiry(token)

	if token != "" {
		logger.Debug().Time("expires_at", s.expiresAt).Msg("Restored session token")
	}
	return s, nil
}

// Token returns the current token, or "" when absent.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Authenticated reports whether a token is held and, for JWTs, not yet expired.
func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return false
	}
	return s.expiresAt.IsZero() || s.now().Before(s.expiresAt)
}

// ExpiresAt returns the token's exp claim. The zero time means the token is
// opaque or carries no expiry.
func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

// Set stores a freshly issued token.
func (s *Session) Set(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("token cannot be empty")
	}
	if err := s.store.Save(ctx, token); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}

	s.mu.Lock()
	s.token = token
	s.expiresAt = tokenExpiry(token)
	listeners := append([]func(Change){}, s.listeners...)
	s.mu.Unlock()

	s.logger.Info().Msg("Session established")
	notify(listeners, Change{Authenticated: true, Reason: "set"})
	return nil
}

// Clear drops the token. Clearing an absent session is a no-op apart from
// the store delete.
func (s *Session) Clear(ctx context.Context, reason string) error {
	s.mu.Lock()
	had := s.token != ""
	s.token = ""
	s.expiresAt = time.Time{}
	listeners := append([]func(Change){}, s.listeners...)
	s.mu.Unlock()

	// Memory is cleared even if the store fails: a rejected token must not be
	// attached to further requests.
	err := s.store.Delete(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Str("reason", reason).Msg("Failed to delete persisted token")
	}

	if had {
		s.logger.Info().Str("reason", reason).Msg("Session cleared")
		notify(listeners, Change{Authenticated: false, Reason: reason})
	}
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

// OnChange registers fn to be called after every Set and every Clear that
// dropped a token.
func (s *Session) OnChange(fn func(Change)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func notify(listeners []func(Change), c Change) {
	for _, fn := range listeners {
		fn(c)
	}
}

// tokenExpiry reads the exp claim without verifying the signature; the
// backend stays the authority on validity.
func tokenExpiry(token string) time.Time {
	if token == "" {
		return time.Time{}
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
