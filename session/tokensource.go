package session

import (
	"context"

	"golang.org/x/oauth2"
)

type tokenSource struct {
	ctx context.Context
	m   *Manager
}

// TokenSource exposes the session as an oauth2.TokenSource, so an embedding
// application can build an *http.Client with oauth2.NewClient that carries
// the same bearer token and shares this session's renewal
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, m: m}
}

// Token implements oauth2.TokenSource
func (s *tokenSource) Token() (*oauth2.Token, error) {
	token, err := s.m.EnsureValid(s.ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken:  token.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: token.RefreshToken,
		Expiry:       token.ExpiresAt,
	}, nil
}
