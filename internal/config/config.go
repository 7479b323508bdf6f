// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"time"
)

// ConnectorConfig holds the credentials and addressing for one vendor
// connector. A connector is configured when its token is non-empty.
type ConnectorConfig struct {
	Key     string
	Token   string
	Account string // Org, workspace, or organization name depending on vendor.
	BaseURL string // Self-hosted instances only; empty means the vendor cloud.
}

// Configured returns true when the connector has credentials.
func (c ConnectorConfig) Configured() bool {
	return c.Token != ""
}

// Config holds the application configuration loaded from environment
// variables.
type Config struct {
	DBPath          string
	OrganizationKey string
	WebhookURL      string
	WebhookSecret   string
	RefreshInterval time.Duration

	GitHub    ConnectorConfig
	GitLab    ConnectorConfig
	Bitbucket ConnectorConfig
	Azure     ConnectorConfig
}

// Load reads configuration from environment variables and returns a
// validated Config. Vendor credentials are optional; an unconfigured vendor
// simply gets no connector. Optional variables with defaults:
// VCSYNC_DB_PATH (vcsync.db), VCSYNC_ORGANIZATION (default),
// VCSYNC_REFRESH_INTERVAL (1h).
func Load() (*Config, error) {
	cfg := &Config{
		DBPath:          envOr("VCSYNC_DB_PATH", "vcsync.db"),
		OrganizationKey: envOr("VCSYNC_ORGANIZATION", "default"),
		WebhookURL:      os.Getenv("VCSYNC_WEBHOOK_URL"),
		WebhookSecret:   os.Getenv("VCSYNC_WEBHOOK_SECRET"),
		RefreshInterval: time.Hour,

		GitHub: ConnectorConfig{
			Key:     envOr("VCSYNC_GITHUB_CONNECTOR_KEY", "github"),
			Token:   os.Getenv("VCSYNC_GITHUB_TOKEN"),
			Account: os.Getenv("VCSYNC_GITHUB_ORG"),
		},
		GitLab: ConnectorConfig{
			Key:     envOr("VCSYNC_GITLAB_CONNECTOR_KEY", "gitlab"),
			Token:   os.Getenv("VCSYNC_GITLAB_TOKEN"),
			BaseURL: os.Getenv("VCSYNC_GITLAB_BASE_URL"),
		},
		Bitbucket: ConnectorConfig{
			Key:     envOr("VCSYNC_BITBUCKET_CONNECTOR_KEY", "bitbucket"),
			Token:   os.Getenv("VCSYNC_BITBUCKET_TOKEN"),
			Account: os.Getenv("VCSYNC_BITBUCKET_WORKSPACE"),
		},
		Azure: ConnectorConfig{
			Key:     envOr("VCSYNC_AZURE_CONNECTOR_KEY", "azure"),
			Token:   os.Getenv("VCSYNC_AZURE_TOKEN"),
			Account: os.Getenv("VCSYNC_AZURE_ORG"),
		},
	}

	if v, ok := os.LookupEnv("VCSYNC_REFRESH_INTERVAL"); ok && v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("VCSYNC_REFRESH_INTERVAL has invalid duration %q: %w", v, err)
		}
		cfg.RefreshInterval = parsed
	}

	if cfg.Bitbucket.Configured() && cfg.Bitbucket.Account == "" {
		return nil, fmt.Errorf("VCSYNC_BITBUCKET_WORKSPACE is required when VCSYNC_BITBUCKET_TOKEN is set")
	}
	if cfg.Azure.Configured() && cfg.Azure.Account == "" {
		return nil, fmt.Errorf("VCSYNC_AZURE_ORG is required when VCSYNC_AZURE_TOKEN is set")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
