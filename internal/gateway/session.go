package gateway

import (
	"sync"
	"time"

	"family-ledger-go/internal/domain/ledger"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

// Session is the single authenticated identity the client acts as. The
// access token lives only here; the refresh token stays in the client's
// cookie jar.
type Session struct {
	mu        sync.RWMutex
	token     string
	user      *ledger.User
	expiresAt time.Time

	refreshes singleflight.Group
}

func NewSession() *Session {
	return &Session{}
}

// Set stores a fresh access token. A nil user keeps the current one, which
// is what a refresh response without a user means.
func (s *Session) Set(token string, user *ledger.User) {
	expiresAt := tokenExpiry(token)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.expiresAt = expiresAt
	if user != nil {
		copied := *user
		s.user = &copied
	}
}

func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.user = nil
	s.expiresAt = time.Time{}
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns a copy of the signed-in user.
func (s *Session) User() (ledger.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return ledger.User{}, false
	}
	return *s.user, true
}

func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

// ExpiresWithin reports whether the token carries an exp claim that falls
// before now+skew. Tokens without exp never expire from our side.
func (s *Session) ExpiresWithin(now time.Time, skew time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" || s.expiresAt.IsZero() {
		return false
	}
	return !now.Add(skew).Before(s.expiresAt)
}

// tokenExpiry reads exp without verifying the signature; the gateway is the
// only party that can verify it.
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
