package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedToken is matched by every MalformedTokenError via errors.Is
var ErrMalformedToken = errors.New("malformed token")

// MalformedTokenError is returned when a token's claims cannot be parsed or
// the expiry claim is missing
type MalformedTokenError struct {
	Reason string
	Err    error
}

func (e *MalformedTokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed token: %s: %v", e.Reason, e.Err)
	}
	return "malformed token: " + e.Reason
}

func (e *MalformedTokenError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrMalformedToken) work for wrapped instances
func (e *MalformedTokenError) Is(target error) bool { return target == ErrMalformedToken }

// Token is an access/refresh token pair issued by the provider.
// ExpiresAt comes from the access token's exp claim and is never changed
// after construction; a refresh produces a new Token.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Decode parses the claims of a signed access token without verifying its
// signature. The provider does not publish a verification key, so the exp
// claim is trusted as-is; it is only used to decide when to refresh, and the
// provider still rejects a forged or stale token server-side. Use
// DecodeVerified when a key set is available.
func Decode(raw string) (*Token, error) {
	if raw == "" {
		return nil, &MalformedTokenError{Reason: "empty token"}
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return nil, &MalformedTokenError{Reason: "cannot parse claims", Err: err}
	}
	return fromClaims(raw, parsed.Claims)
}

// DecodeVerified parses the access token and verifies its signature with the
// key returned by keyfunc. Expiry is not enforced here; callers decide on
// expiry with IsExpired.
func DecodeVerified(raw string, keyfunc jwt.Keyfunc) (*Token, error) {
	if raw == "" {
		return nil, &MalformedTokenError{Reason: "empty token"}
	}

	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	parsed, err := parser.ParseWithClaims(raw, jwt.MapClaims{}, keyfunc)
	if err != nil {
		return nil, &MalformedTokenError{Reason: "signature verification failed", Err: err}
	}
	return fromClaims(raw, parsed.Claims)
}

func fromClaims(raw string, claims jwt.Claims) (*Token, error) {
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, &MalformedTokenError{Reason: "invalid exp claim", Err: err}
	}
	if exp == nil {
		return nil, &MalformedTokenError{Reason: "exp claim not found"}
	}
	return &Token{AccessToken: raw, ExpiresAt: exp.Time}, nil
}

// NewToken decodes access and pairs it with refresh
func NewToken(access, refresh string) (*Token, error) {
	t, err := Decode(access)
	if err != nil {
		return nil, err
	}
	return t.WithRefreshToken(refresh), nil
}

// WithRefreshToken returns a copy of t carrying refresh; t is not changed
func (t *Token) WithRefreshToken(refresh string) *Token {
	return &Token{AccessToken: t.AccessToken, RefreshToken: refresh, ExpiresAt: t.ExpiresAt}
}

// IsExpired reports whether now+skew has reached the expiry instant.
// A nil token is always expired.
func (t *Token) IsExpired(now time.Time, skew time.Duration) bool {
	if t == nil {
		return true
	}
	return !now.Add(skew).Before(t.ExpiresAt)
}

// ExpiresIn returns the time left until expiry, negative once expired
func (t *Token) ExpiresIn(now time.Time) time.Duration {
	if t == nil {
		return 0
	}
	return t.ExpiresAt.Sub(now)
}

// Redacted returns a short prefix of the access token suitable for logs
func (t *Token) Redacted() string {
	if t == nil {
		return ""
	}
	preview := t.AccessToken
	if len(preview) > 12 {
		preview = preview[:12] + "..."
	}
	return preview
}
