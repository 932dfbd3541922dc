package config

import (
	"time"
)

// Config represents the application configuration
type Config struct {
	API       APIConfig       `yaml:"api"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       LogConfig       `yaml:"log"`
	Rendering RenderingConfig `yaml:"rendering"`
	Timezone  string          `yaml:"timezone" default:"Europe/Amsterdam"` // IANA zone used for "today"
}

// APIConfig holds the GraphQL endpoint settings
type APIConfig struct {
	Endpoint string        `yaml:"endpoint" default:"https://frank-graphql-prod.graphcdn.app/"`
	Timeout  time.Duration `yaml:"timeout" default:"30s"`
}

// AuthConfig holds login and token settings
type AuthConfig struct {
	Email           string        `yaml:"email"`
	Password        string        `yaml:"password"`           // Prefer ${FRANK_PASSWORD} over a literal
	Skew            time.Duration `yaml:"skew" default:"10s"` // Renew this long before expiry
	JWKSURL         string        `yaml:"jwks_url"`           // Optional: verify token signatures against this key set
	JWKSCacheTTL    time.Duration `yaml:"jwks_cache_ttl" default:"1h"`
	CredentialsFile string        `yaml:"credentials_file"` // Token cache; defaults to ~/.config/frankenergie/credentials.json
}

// LogConfig holds logging defaults; CLI flags override them
type LogConfig struct {
	Level  string `yaml:"level" default:"warn"`  // debug, info, warn, error
	Format string `yaml:"format" default:"text"` // text, json
	File   string `yaml:"file"`
}

// RenderingConfig holds terminal output settings
type RenderingConfig struct {
	Theme string `yaml:"theme" default:"auto"` // glamour style for markdown output
}

// Default returns the configuration used when no file is found
func Default() *Config {
	return &Config{
		API: APIConfig{
			Endpoint: "https://frank-graphql-prod.graphcdn.app/",
			Timeout:  30 * time.Second,
		},
		Auth: AuthConfig{
			Skew:         10 * time.Second,
			JWKSCacheTTL: time.Hour,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		Rendering: RenderingConfig{
			Theme: "auto",
		},
		Timezone: "Europe/Amsterdam",
	}
}

// Redacted returns a copy safe to print
func (c *Config) Redacted() *Config {
	out := *c
	if out.Auth.Password != "" {
		out.Auth.Password = "********"
	}
	return &out
}
