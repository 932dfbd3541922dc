// Package client is the entry point for talking to Frank Energie: it ties a
// token store, a session manager and a GraphQL transport together and
// exposes one method per supported query.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/devilmonastery/frankenergie/auth"
	"github.com/devilmonastery/frankenergie/graphql"
	"github.com/devilmonastery/frankenergie/internal/pkg/metrics"
	"github.com/devilmonastery/frankenergie/session"
)

// Client is safe for concurrent use
type Client struct {
	transport *graphql.Transport
	session   *session.Manager
	tokens    TokenManager
	log       *slog.Logger
	now       func() time.Time
	skew      time.Duration

	// saved is the last token handed to tokens.SaveTokens
	savedMu sync.Mutex
	saved   *auth.Token
}

type options struct {
	endpoint     string
	httpClient   *http.Client
	logger       *slog.Logger
	skew         time.Duration
	now          func() time.Time
	authToken    string
	refreshToken string
	keySet       *auth.KeySet
	tokens       TokenManager
}

// Option configures a Client
type Option func(*options)

// WithEndpoint overrides the GraphQL endpoint
func WithEndpoint(endpoint string) Option {
	return func(o *options) { o.endpoint = endpoint }
}

// WithHTTPClient sets the HTTP client used for every request
func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *options) { o.httpClient = httpClient }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithSkew sets how long before expiry a token is renewed
func WithSkew(skew time.Duration) Option {
	return func(o *options) { o.skew = skew }
}

// WithClock overrides the time source used for expiry checks
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithTokens starts the client with a previously issued token pair
func WithTokens(authToken, refreshToken string) Option {
	return func(o *options) {
		o.authToken = authToken
		o.refreshToken = refreshToken
	}
}

// WithKeySet verifies token signatures against a JWKS endpoint
func WithKeySet(keySet *auth.KeySet) Option {
	return func(o *options) { o.keySet = keySet }
}

// WithTokenManager loads the starting token pair from tm and saves every
// new pair back to it
func WithTokenManager(tm TokenManager) Option {
	return func(o *options) { o.tokens = tm }
}

// New creates a Client. It fails only when a token pair supplied through
// WithTokens cannot be decoded.
func New(opts ...Option) (*Client, error) {
	o := options{
		skew: session.DefaultSkew,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	store := auth.NewStore()
	transport := graphql.NewTransport(o.endpoint, o.httpClient, o.logger)

	sessionOpts := []session.Option{
		session.WithLogger(o.logger),
		session.WithSkew(o.skew),
		session.WithClock(o.now),
	}
	if o.keySet != nil {
		keySet := o.keySet
		sessionOpts = append(sessionOpts, session.WithDecoder(func(ctx context.Context, raw string) (*auth.Token, error) {
			return auth.DecodeVerified(raw, keySet.Keyfunc(ctx))
		}))
	}

	c := &Client{
		transport: transport,
		session:   session.NewManager(store, transport, sessionOpts...),
		tokens:    o.tokens,
		log:       o.logger.With(slog.String("component", "client")),
		now:       o.now,
		skew:      o.skew,
	}

	if o.authToken != "" {
		if _, err := c.session.Restore(context.Background(), o.authToken, o.refreshToken); err != nil {
			return nil, fmt.Errorf("failed to restore session: %w", err)
		}
	} else if c.tokens != nil {
		c.loadSaved()
	}

	return c, nil
}

// loadSaved restores the pair held by the TokenManager. A stored pair that no
// longer decodes is discarded rather than failing construction.
func (c *Client) loadSaved() {
	access, refresh, err := c.tokens.LoadTokens()
	if err != nil {
		c.log.Warn("failed to load saved tokens", slog.String("error", err.Error()))
		return
	}
	if access == "" {
		return
	}

	token, err := c.session.Restore(context.Background(), access, refresh)
	if err != nil {
		c.log.Warn("discarding unreadable saved tokens", slog.String("error", err.Error()))
		if err := c.tokens.ClearTokens(); err != nil {
			c.log.Warn("failed to clear saved tokens", slog.String("error", err.Error()))
		}
		return
	}
	c.markSaved(token)
}

// Execute sends req. With requiresAuth, a valid token is attached first and a
// rejection of a token believed valid triggers one renewal and one re-send.
// Without requiresAuth the session is not consulted.
func (c *Client) Execute(ctx context.Context, req graphql.Request, requiresAuth bool) (*graphql.Response, error) {
	if !requiresAuth {
		return c.transport.Send(ctx, req, nil)
	}

	token, err := c.session.EnsureValid(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.transport.Send(ctx, req, token)
	if !errors.Is(err, graphql.ErrAuthentication) {
		c.persist()
		return resp, err
	}

	c.log.Info("token rejected, renewing and retrying",
		slog.String("operation", req.OperationName),
		slog.String("token_prefix", token.Redacted()))

	token, err = c.session.ForceRefresh(ctx, token)
	if err != nil {
		metrics.QueryRetries.WithLabelValues("refresh_failed").Inc()
		c.persist()
		return nil, err
	}

	resp, err = c.transport.Send(ctx, req, token)
	metrics.QueryRetries.WithLabelValues(metrics.RecordResult(err)).Inc()
	c.persist()
	return resp, err
}

// Login authenticates with email and password
func (c *Client) Login(ctx context.Context, email, password string) (*auth.Token, error) {
	token, err := c.session.Login(ctx, session.Credentials{Username: email, Password: password})
	c.persist()
	return token, err
}

// RenewToken renews the current token regardless of its expiry
func (c *Client) RenewToken(ctx context.Context) (*auth.Token, error) {
	token, err := c.session.ForceRefresh(ctx, c.session.Token())
	c.persist()
	return token, err
}

// AccessToken returns a token that is valid now, renewing it first if it is
// about to expire
func (c *Client) AccessToken(ctx context.Context) (*auth.Token, error) {
	token, err := c.session.EnsureValid(ctx)
	c.persist()
	return token, err
}

// Logout discards the session and any saved tokens
func (c *Client) Logout() {
	c.session.Logout()
	c.persist()
}

// IsAuthenticated reports whether a token is held. It does not check expiry.
func (c *Client) IsAuthenticated() bool {
	return c.session.Token() != nil
}

// AuthenticationValid reports whether the held token is not about to expire
func (c *Client) AuthenticationValid() bool {
	token := c.session.Token()
	return token != nil && !token.IsExpired(c.now(), c.skew)
}

// Session returns the underlying session manager
func (c *Client) Session() *session.Manager {
	return c.session
}

// TokenSource exposes the session as an oauth2.TokenSource
func (c *Client) TokenSource(ctx context.Context) oauth2.TokenSource {
	return c.session.TokenSource(ctx)
}

// persist mirrors the current token into the TokenManager when it changed
func (c *Client) persist() {
	if c.tokens == nil {
		return
	}

	current := c.session.Token()

	c.savedMu.Lock()
	defer c.savedMu.Unlock()
	if current == c.saved {
		return
	}

	var err error
	if current == nil {
		err = c.tokens.ClearTokens()
	} else {
		err = c.tokens.SaveTokens(current.AccessToken, current.RefreshToken)
	}
	if err != nil {
		c.log.Warn("failed to persist tokens", slog.String("error", err.Error()))
		return
	}
	c.saved = current
}

func (c *Client) markSaved(token *auth.Token) {
	c.savedMu.Lock()
	c.saved = token
	c.savedMu.Unlock()
}
