package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSource supplies the bearer token attached to outgoing requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource returns the same token for every request.
type StaticTokenSource struct {
	token string
}

// NewStaticTokenSource creates a TokenSource for a fixed token.
func NewStaticTokenSource(token string) *StaticTokenSource {
	return &StaticTokenSource{token: token}
}

// Token implements TokenSource.
func (s *StaticTokenSource) Token(_ context.Context) (string, error) {
	return s.token, nil
}

// RefreshFunc obtains a fresh bearer token.
type RefreshFunc func(ctx context.Context) (string, error)

// JWTTokenSource serves a JWT and refreshes it through a callback when
// the token is within the leeway window of its expiry. The token is
// parsed without signature verification; the server remains the
// authority on validity, this source only reads the exp claim to avoid
// sending requests with a token it already knows is dead.
type JWTTokenSource struct {
	mu      sync.Mutex
	token   string
	refresh RefreshFunc
	leeway  time.Duration
	now     func() time.Time
}

// NewJWTTokenSource creates a refreshing token source. A zero leeway
// defaults to 30 seconds. refresh may be nil, in which case the token
// is served as-is even when expired.
func NewJWTTokenSource(token string, refresh RefreshFunc, leeway time.Duration) *JWTTokenSource {
	if leeway <= 0 {
		leeway = 30 * time.Second
	}
	return &JWTTokenSource{
		token:   token,
		refresh: refresh,
		leeway:  leeway,
		now:     time.Now,
	}
}

// Token implements TokenSource.
func (s *JWTTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refresh == nil || !s.expiringSoon(s.token) {
		return s.token, nil
	}

	fresh, err := s.refresh(ctx)
	if err != nil {
		return "", fmt.Errorf("token refresh failed: %w", err)
	}
	s.token = fresh
	return s.token, nil
}

// expiringSoon reports whether the token's exp claim falls within the
// leeway window. Tokens that cannot be parsed or carry no exp claim are
// never considered expiring.
func (s *JWTTokenSource) expiringSoon(token string) bool {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return s.now().Add(s.leeway).After(exp.Time)
}
