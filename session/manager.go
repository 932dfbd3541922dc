// Package session owns the authenticated-session lifecycle: login, token
// renewal and expiry checks, with at most one renewal in flight at a time.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/devilmonastery/frankenergie/auth"
	"github.com/devilmonastery/frankenergie/graphql"
	"github.com/devilmonastery/frankenergie/internal/pkg/metrics"
)

const (
	// DefaultSkew is how long before expiry a token is treated as expired
	DefaultSkew = 10 * time.Second

	// DefaultRefreshTimeout bounds a renewal once it no longer follows any
	// single caller's context
	DefaultRefreshTimeout = 30 * time.Second

	refreshKey = "refresh"
)

// Sender issues one GraphQL request. *graphql.Transport implements it.
type Sender interface {
	Send(ctx context.Context, req graphql.Request, token *auth.Token) (*graphql.Response, error)
}

// Decoder turns a raw access token into a Token
type Decoder func(ctx context.Context, raw string) (*auth.Token, error)

// Credentials are either an email/password pair or a previously issued
// token pair. They are not kept after Login returns.
type Credentials struct {
	Username string
	Password string

	AuthToken    string
	RefreshToken string
}

// Manager is the session state machine. It is safe for concurrent use.
type Manager struct {
	store          *auth.Store
	sender         Sender
	decode         Decoder
	log            *slog.Logger
	now            func() time.Time
	skew           time.Duration
	refreshTimeout time.Duration

	// mu orders state changes against store changes so that a renewal
	// finishing after Logout cannot resurrect the session
	mu      sync.Mutex
	state   State
	failure graphql.AuthReason

	refreshes singleflight.Group
}

// Option configures a Manager
type Option func(*Manager)

// WithClock overrides the time source used for expiry checks
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithSkew sets how early a token is considered expired
func WithSkew(skew time.Duration) Option {
	return func(m *Manager) { m.skew = skew }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.log = logger }
}

// WithRefreshTimeout bounds each renewal call
func WithRefreshTimeout(d time.Duration) Option {
	return func(m *Manager) { m.refreshTimeout = d }
}

// WithDecoder replaces the default unverified token decoding, e.g. with
// signature verification against a KeySet
func WithDecoder(decode Decoder) Option {
	return func(m *Manager) { m.decode = decode }
}

// NewManager creates a Manager around store. A store that already holds a
// token starts the session authenticated.
func NewManager(store *auth.Store, sender Sender, opts ...Option) *Manager {
	m := &Manager{
		store:          store,
		sender:         sender,
		decode:         func(_ context.Context, raw string) (*auth.Token, error) { return auth.Decode(raw) },
		log:            slog.Default(),
		now:            time.Now,
		skew:           DefaultSkew,
		refreshTimeout: DefaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With(slog.String("component", "session"))

	if store.Get() != nil {
		m.state = StateAuthenticated
	}
	return m
}

// State returns the current state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Failure returns why the session failed, or "" when it has not
func (m *Manager) Failure() graphql.AuthReason {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateFailed {
		return ""
	}
	return m.failure
}

// Token returns the stored token without checking expiry
func (m *Manager) Token() *auth.Token {
	return m.store.Get()
}

// Login exchanges credentials for a token. Credentials carrying an
// AuthToken are restored without a network call.
func (m *Manager) Login(ctx context.Context, creds Credentials) (*auth.Token, error) {
	if creds.AuthToken != "" {
		return m.Restore(ctx, creds.AuthToken, creds.RefreshToken)
	}
	if creds.Username == "" || creds.Password == "" {
		return nil, &graphql.AuthenticationError{
			Reason: graphql.ReasonInvalidCredentials,
			Err:    errors.New("email and password are required"),
		}
	}

	m.log.Debug("logging in", slog.String("email", creds.Username))
	resp, err := m.sender.Send(ctx, loginRequest(creds.Username, creds.Password), nil)
	if err == nil {
		var pair *tokenPair
		pair, err = decodeTokenPair(resp, "login")
		if err == nil {
			var token *auth.Token
			token, err = m.tokenFromPair(ctx, pair, "")
			if err != nil {
				metrics.SessionLogins.WithLabelValues("error").Inc()
				return nil, err
			}
			m.mu.Lock()
			m.store.Set(token)
			m.setState(StateAuthenticated)
			m.mu.Unlock()

			metrics.SessionLogins.WithLabelValues("success").Inc()
			m.log.Info("logged in", slog.Time("expires_at", token.ExpiresAt))
			return token, nil
		}
	}
	metrics.SessionLogins.WithLabelValues("error").Inc()

	if !isRejection(err) {
		return nil, fmt.Errorf("login request failed: %w", err)
	}

	m.mu.Lock()
	m.store.Clear()
	m.fail(graphql.ReasonInvalidCredentials)
	m.mu.Unlock()

	m.log.Warn("login rejected", slog.String("error", err.Error()))
	return nil, rejection(graphql.ReasonInvalidCredentials, err)
}

// Restore seeds the session from an externally held token pair
func (m *Manager) Restore(ctx context.Context, accessToken, refreshToken string) (*auth.Token, error) {
	decoded, err := m.decode(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	token := decoded.WithRefreshToken(refreshToken)

	m.mu.Lock()
	m.store.Set(token)
	m.setState(StateAuthenticated)
	m.mu.Unlock()

	m.log.Debug("session restored", slog.Time("expires_at", token.ExpiresAt))
	return token, nil
}

// Logout discards the stored token. Safe to call in any state.
func (m *Manager) Logout() {
	m.mu.Lock()
	m.store.Clear()
	m.setState(StateAnonymous)
	m.mu.Unlock()
	m.log.Info("logged out")
}

// EnsureValid returns a token that is not about to expire, renewing it first
// if needed. It never calls the provider when no session exists or the
// session has failed; those return an *graphql.AuthenticationError.
// Concurrent callers share a single renewal.
func (m *Manager) EnsureValid(ctx context.Context) (*auth.Token, error) {
	token := m.store.Get()
	if token == nil {
		return nil, m.unauthenticated()
	}
	if !token.IsExpired(m.now(), m.skew) {
		return token, nil
	}
	return m.refresh(ctx, token)
}

// ForceRefresh renews the session after the provider rejected stale. If the
// token has already been replaced since stale was handed out, the current
// one is returned without another renewal.
func (m *Manager) ForceRefresh(ctx context.Context, stale *auth.Token) (*auth.Token, error) {
	if stale == nil {
		return m.EnsureValid(ctx)
	}
	return m.refresh(ctx, stale)
}

// refresh joins or starts the single in-flight renewal. A caller whose ctx
// ends stops waiting; the renewal itself carries on for the other waiters.
func (m *Manager) refresh(ctx context.Context, stale *auth.Token) (*auth.Token, error) {
	ch := m.refreshes.DoChan(refreshKey, func() (interface{}, error) {
		return m.doRefresh(context.WithoutCancel(ctx), stale)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*auth.Token), nil
	}
}

func (m *Manager) doRefresh(ctx context.Context, stale *auth.Token) (*auth.Token, error) {
	m.mu.Lock()
	current := m.store.Get()
	if current == nil {
		m.mu.Unlock()
		return nil, m.unauthenticated()
	}
	// a renewal that finished just before this flight started already did the work
	if current != stale && !current.IsExpired(m.now(), m.skew) {
		m.mu.Unlock()
		return current, nil
	}
	m.setState(StateRefreshing)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, m.refreshTimeout)
	defer cancel()

	m.log.Debug("renewing token", slog.String("token_prefix", current.Redacted()))
	resp, err := m.sender.Send(ctx, renewRequest(current), current)
	var next *auth.Token
	if err == nil {
		var pair *tokenPair
		pair, err = decodeTokenPair(resp, "renewToken")
		if err == nil {
			next, err = m.tokenFromPair(ctx, pair, current.RefreshToken)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case err == nil:
		metrics.SessionRefreshes.WithLabelValues("success").Inc()
		if !m.store.CompareAndSwap(current, next) {
			// logged out or logged in again while the renewal was in flight
			m.log.Debug("discarding renewed token, session changed during renewal")
			if latest := m.store.Get(); latest != nil {
				return latest, nil
			}
			return nil, m.unauthenticatedLocked()
		}
		m.setState(StateAuthenticated)
		m.log.Info("token renewed", slog.Time("expires_at", next.ExpiresAt))
		return next, nil

	case isRejection(err):
		metrics.SessionRefreshes.WithLabelValues("rejected").Inc()
		if m.store.CompareAndSwap(current, nil) {
			m.fail(graphql.ReasonRefreshRejected)
		}
		m.log.Warn("token renewal rejected, login required", slog.String("error", err.Error()))
		return nil, rejection(graphql.ReasonRefreshRejected, err)

	default:
		metrics.SessionRefreshes.WithLabelValues("error").Inc()
		if m.state == StateRefreshing && m.store.Get() == current {
			m.setState(StateAuthenticated)
		}
		m.log.Warn("token renewal failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("token renewal failed: %w", err)
	}
}

// tokenFromPair decodes a mutation payload, keeping fallbackRefresh when the
// provider did not send a new refresh token
func (m *Manager) tokenFromPair(ctx context.Context, pair *tokenPair, fallbackRefresh string) (*auth.Token, error) {
	decoded, err := m.decode(ctx, pair.AuthToken)
	if err != nil {
		return nil, err
	}
	refresh := pair.RefreshToken
	if refresh == "" {
		refresh = fallbackRefresh
	}
	return decoded.WithRefreshToken(refresh), nil
}

func (m *Manager) unauthenticated() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unauthenticatedLocked()
}

func (m *Manager) unauthenticatedLocked() error {
	if m.state == StateFailed {
		return &graphql.AuthenticationError{Reason: m.failure, Err: errors.New("session failed, login required")}
	}
	return &graphql.AuthenticationError{Reason: graphql.ReasonNotAuthenticated, Err: errors.New("not logged in")}
}

// setState records a transition; caller holds m.mu
func (m *Manager) setState(next State) {
	if m.state == next {
		return
	}
	metrics.SessionTransitions.WithLabelValues(m.state.String(), next.String()).Inc()
	m.log.Debug("session transition", slog.String("from", m.state.String()), slog.String("to", next.String()))
	m.state = next
	if next != StateFailed {
		m.failure = ""
	}
}

// fail moves to StateFailed; caller holds m.mu
func (m *Manager) fail(reason graphql.AuthReason) {
	m.setState(StateFailed)
	m.failure = reason
}

// isRejection reports whether err means the provider refused the
// credentials, as opposed to the exchange failing
func isRejection(err error) bool {
	if errors.Is(err, errUnexpectedResponse) {
		return true
	}
	var authErr *graphql.AuthenticationError
	if errors.As(err, &authErr) {
		return true
	}
	var gqlErr *graphql.GraphQLError
	if errors.As(err, &gqlErr) {
		return true
	}
	var te *graphql.TransportError
	if errors.As(err, &te) {
		return te.StatusCode >= http.StatusBadRequest && te.StatusCode < http.StatusInternalServerError &&
			te.StatusCode != http.StatusTooManyRequests
	}
	return false
}

// rejection converts a refused login or renewal into an AuthenticationError
func rejection(reason graphql.AuthReason, err error) *graphql.AuthenticationError {
	out := &graphql.AuthenticationError{Reason: reason, Err: err}
	var authErr *graphql.AuthenticationError
	var gqlErr *graphql.GraphQLError
	switch {
	case errors.As(err, &authErr):
		out.StatusCode = authErr.StatusCode
		out.Errors = authErr.Errors
	case errors.As(err, &gqlErr):
		out.Errors = gqlErr.Errors
	}
	return out
}
