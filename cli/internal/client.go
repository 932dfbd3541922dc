package cli

import (
	"fmt"
	"log/slog"

	"github.com/devilmonastery/frankenergie/auth"
	"github.com/devilmonastery/frankenergie/client"
	"github.com/devilmonastery/frankenergie/graphql"
	"github.com/devilmonastery/frankenergie/internal/config"
)

// newClient creates a Frank Energie client whose session is backed by the
// credentials file
func newClient(cfg *config.Config, log *slog.Logger) (*client.Client, error) {
	credsPath, err := credentialsPath(cfg)
	if err != nil {
		return nil, err
	}

	httpClient := graphql.NewHTTPClient(cfg.API.Timeout)

	opts := []client.Option{
		client.WithEndpoint(cfg.API.Endpoint),
		client.WithHTTPClient(httpClient),
		client.WithLogger(log),
		client.WithSkew(cfg.Auth.Skew),
		client.WithTokenManager(NewFileCredentials(credsPath)),
	}
	if cfg.Auth.JWKSURL != "" {
		log.Debug("verifying token signatures", slog.String("jwks_url", cfg.Auth.JWKSURL))
		opts = append(opts, client.WithKeySet(auth.NewKeySet(cfg.Auth.JWKSURL, cfg.Auth.JWKSCacheTTL, httpClient)))
	}

	c, err := client.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return c, nil
}
