package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"
)

// expandEnvVars expands environment variables in the format ${VAR} or $VAR
func expandEnvVars(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}

// DefaultConfigPaths defines the default locations to search for configuration files.
// The per-user file is checked after these.
var DefaultConfigPaths = []string{
	"./frankenergie.yaml",
	"./frankenergie.yml",
	"./config.yaml",
	"/etc/frankenergie/config.yaml",
}

// UserConfigPath returns ~/.config/frankenergie/config.yaml
func UserConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "frankenergie", "config.yaml"), nil
}

// Load loads the configuration from the specified file or default locations.
// An explicitly named file that does not exist is an error.
func Load(configPath string) (*Config, error) {
	config := Default()

	if configPath != "" && !fileExists(configPath) {
		return nil, fmt.Errorf("config file %s not found", configPath)
	}

	// If no config path is provided, search in default locations
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		slog.Debug("loading config", slog.String("path", configPath))
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		data = expandEnvVars(data)

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else {
		slog.Debug("no config file found, using defaults")
	}

	if err := validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// Path returns the file Load would read for configPath, or "" when it
// would use defaults
func Path(configPath string) string {
	if configPath != "" {
		return configPath
	}
	return findConfigFile()
}

// findConfigFile searches for a configuration file in default locations
func findConfigFile() string {
	for _, path := range DefaultConfigPaths {
		if fileExists(path) {
			return path
		}
	}
	if path, err := UserConfigPath(); err == nil && fileExists(path) {
		return path
	}
	return ""
}

// fileExists checks if a file exists and is not a directory
func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// validate performs basic validation on the configuration
func validate(config *Config) error {
	u, err := url.Parse(config.API.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.endpoint must be an http(s) URL, got %q", config.API.Endpoint)
	}
	if config.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive")
	}

	if config.Auth.Skew < 0 {
		return fmt.Errorf("auth.skew must not be negative")
	}
	if config.Auth.JWKSURL != "" {
		if u, err := url.Parse(config.Auth.JWKSURL); err != nil || u.Host == "" {
			return fmt.Errorf("auth.jwks_url is not a valid URL: %q", config.Auth.JWKSURL)
		}
	}

	switch config.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	switch config.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json")
	}

	if _, err := time.LoadLocation(config.Timezone); err != nil {
		return fmt.Errorf("timezone %q: %w", config.Timezone, err)
	}

	return nil
}
