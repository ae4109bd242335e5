// Package config provides configuration loading and defaults for the
// github-graphql-mcp server.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Default values applied by DefaultConfig and by constructors that receive a
// zero value.
const (
	DefaultGraphQLURL        = "https://api.github.com/graphql"
	DefaultUserAgent         = "MCPGitHubServer/0.1.0"
	DefaultTimeoutSeconds    = 30
	DefaultRateLimitLowWater = 50
)

// Supported MCP transports.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

var (
	// ErrMissingToken is returned by Validate when no GitHub token is configured.
	ErrMissingToken = errors.New("github token is not configured")
	// ErrInvalidTransport is returned by Validate for an unknown transport name.
	ErrInvalidTransport = errors.New("invalid transport")
)

// ServerConfig holds MCP transport settings.
type ServerConfig struct {
	Transport string `yaml:"transport"`
	Port      int    `yaml:"port"`
	// AuthToken guards the HTTP transport. Unused for stdio.
	AuthToken string `yaml:"auth_token"`
}

// GitHubConfig holds connection details for the GitHub GraphQL API.
type GitHubConfig struct {
	URL       string `yaml:"url"`
	Token     string `yaml:"token"`
	UserAgent string `yaml:"user_agent"`
	// Timeout is the per-request timeout in seconds.
	Timeout           int `yaml:"timeout"`
	RateLimitLowWater int `yaml:"rate_limit_low_water"`
}

// LogConfig controls diagnostic logging. Logs always go to stderr.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AuditConfig controls audit logging behaviour.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	LogPath string `yaml:"log_path"`
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Config is the top-level configuration structure for the server.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	GitHub  GitHubConfig  `yaml:"github"`
	Log     LogConfig     `yaml:"log"`
	Audit   AuditConfig   `yaml:"audit"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoadConfig reads and parses a YAML configuration file from the given path.
// Fields absent from the file keep the values from DefaultConfig.
// On error, nil is returned for the config pointer.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a new Config populated with sensible default values.
// Each call returns a distinct instance.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Transport: TransportStdio,
			Port:      8080,
		},
		GitHub: GitHubConfig{
			URL:               DefaultGraphQLURL,
			UserAgent:         DefaultUserAgent,
			Timeout:           DefaultTimeoutSeconds,
			RateLimitLowWater: DefaultRateLimitLowWater,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Audit: AuditConfig{
			Enabled: false,
			LogPath: "audit.log",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
		},
	}
}

// ApplyEnvOverrides updates cfg in place with values from environment variables.
// Recognized variables:
//   - GITHUB_TOKEN overrides cfg.GitHub.Token
//   - GITHUB_GRAPHQL_URL overrides cfg.GitHub.URL
//   - GITHUB_GRAPHQL_TIMEOUT overrides cfg.GitHub.Timeout (seconds)
//   - GITHUB_MCP_TRANSPORT overrides cfg.Server.Transport
//   - GITHUB_MCP_AUTH_TOKEN overrides cfg.Server.AuthToken
//   - GITHUB_MCP_LOG_LEVEL overrides cfg.Log.Level
//
// Empty values never override.
func ApplyEnvOverrides(cfg *Config) {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		cfg.GitHub.Token = token
	}
	if url := os.Getenv("GITHUB_GRAPHQL_URL"); url != "" {
		cfg.GitHub.URL = url
	}
	if raw := os.Getenv("GITHUB_GRAPHQL_TIMEOUT"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil {
			cfg.GitHub.Timeout = secs
		}
	}
	if transport := os.Getenv("GITHUB_MCP_TRANSPORT"); transport != "" {
		cfg.Server.Transport = transport
	}
	if token := os.Getenv("GITHUB_MCP_AUTH_TOKEN"); token != "" {
		cfg.Server.AuthToken = token
	}
	if level := os.Getenv("GITHUB_MCP_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
}

// Validate reports configuration that prevents the server from starting.
func (c *Config) Validate() error {
	if c.GitHub.Token == "" {
		return ErrMissingToken
	}
	switch c.Server.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidTransport, c.Server.Transport)
	}
	return nil
}

// TokenPrefix returns at most the first four characters of token, for logging.
func TokenPrefix(token string) string {
	if len(token) <= 4 {
		return token
	}
	return token[:4]
}

// EnsureAuthToken generates a random auth token and sets it on cfg if
// cfg.Server.AuthToken is empty. It returns the token (existing or generated)
// and any error encountered during generation.
func EnsureAuthToken(cfg *Config) (string, error) {
	if cfg.Server.AuthToken != "" {
		return cfg.Server.AuthToken, nil
	}
	token, err := GenerateRandomToken()
	if err != nil {
		return "", fmt.Errorf("generate auth token: %w", err)
	}
	cfg.Server.AuthToken = token
	return token, nil
}

// GenerateRandomToken returns a 32-character hex-encoded cryptographically
// random token string.
func GenerateRandomToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("rand.Read: %w", err)
	}
	return hex.EncodeToString(b), nil
}
