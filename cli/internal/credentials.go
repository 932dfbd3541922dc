package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/devilmonastery/frankenergie/auth"
	"github.com/devilmonastery/frankenergie/internal/config"
)

// Credentials is the on-disk token cache. ExpiresAt is informational; the
// session decides expiry from the access token itself.
type Credentials struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// FileCredentials implements client.TokenManager using a JSON file readable
// only by its owner
type FileCredentials struct {
	path string
}

// NewFileCredentials creates a file-based token manager at path
func NewFileCredentials(path string) *FileCredentials {
	return &FileCredentials{path: path}
}

// LoadTokens returns the stored pair, or empty strings when not logged in
func (f *FileCredentials) LoadTokens() (string, string, error) {
	creds, err := f.Load()
	if err != nil {
		return "", "", err
	}
	if creds == nil {
		return "", "", nil
	}
	return creds.AccessToken, creds.RefreshToken, nil
}

// SaveTokens writes the pair to disk
func (f *FileCredentials) SaveTokens(access, refresh string) error {
	creds := &Credentials{AccessToken: access, RefreshToken: refresh}

	token, err := auth.Decode(access)
	if err != nil {
		slog.Warn("failed to decode token expiry",
			slog.String("component", "cli-token"),
			slog.String("error", err.Error()))
	} else {
		creds.ExpiresAt = token.ExpiresAt
	}

	slog.Debug("saving credentials",
		slog.String("component", "cli-token"),
		slog.String("token_prefix", token.Redacted()),
		slog.Time("expires_at", creds.ExpiresAt))
	return f.Save(creds)
}

// ClearTokens removes the credentials file
func (f *FileCredentials) ClearTokens() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove credentials: %w", err)
	}
	return nil
}

// Load reads the credentials file; a missing file yields nil, nil
func (f *FileCredentials) Load() (*Credentials, error) {
	slog.Debug("loading credentials from file",
		slog.String("component", "cli-creds"),
		slog.String("path", f.path))

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	return &creds, nil
}

// Save writes creds with owner-only permissions
func (f *FileCredentials) Save(creds *Credentials) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return nil
}

// credentialsPath returns the configured token cache, defaulting to
// ~/.config/frankenergie/credentials.json
func credentialsPath(cfg *config.Config) (string, error) {
	if cfg.Auth.CredentialsFile != "" {
		return cfg.Auth.CredentialsFile, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "frankenergie", "credentials.json"), nil
}
