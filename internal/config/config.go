package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/relayhub/relay-gateway/internal/catalog"
	"github.com/relayhub/relay-gateway/internal/provider"
	"github.com/relayhub/relay-gateway/internal/routing"
)

// Config is the process-wide configuration, resolved once at startup.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Provider ProviderConfig `yaml:"provider"`
	Routing  RoutingConfig  `yaml:"routing"`
	Models   []ModelConfig  `yaml:"models"`
	WebChat  WebChatConfig  `yaml:"webchat"`
	Probe    ProbeConfig    `yaml:"probe"`
	LogLevel string         `yaml:"log_level"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// LegacyResponses switches /api/chat to the pre-formatted
	// "Model: X / Reply: Y" message shape.
	LegacyResponses bool `yaml:"legacy_responses"`
}

// ProviderConfig holds upstream LLM provider settings.
type ProviderConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// RoutingConfig holds routing policy settings.
type RoutingConfig struct {
	ClassifierModel string `yaml:"classifier_model"`
}

// ModelConfig describes one downstream model in the catalog.
type ModelConfig struct {
	ID               string `yaml:"id"`
	Description      string `yaml:"description"`
	Throughput       string `yaml:"throughput"`
	TimeToFirstToken string `yaml:"time_to_first_token"`
	TokensPerSecond  string `yaml:"tokens_per_second"`
	Cost             string `yaml:"cost"`
	ArtifactProne    bool   `yaml:"artifact_prone"`
	Default          bool   `yaml:"default"`
}

// WebChatConfig holds WebSocket channel settings.
type WebChatConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// ProbeConfig holds the upstream health probe schedule.
type ProbeConfig struct {
	// Schedule is a standard 5-field cron expression. Empty disables the
	// probe.
	Schedule string `yaml:"schedule"`
}

// Load reads a YAML config file, applies defaults and environment overrides.
// An empty path loads defaults plus environment only.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8096
	}
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = provider.DefaultBaseURL
	}
	if c.Routing.ClassifierModel == "" {
		c.Routing.ClassifierModel = routing.DefaultClassifierModel
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.WebChat.Enabled && c.WebChat.Port == 0 {
		c.WebChat.Port = 8097
	}
}

func (c *Config) applyEnv() {
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		c.Provider.APIKey = key
	}
	if url := os.Getenv("OPENROUTER_BASE_URL"); url != "" {
		c.Provider.BaseURL = url
	}
}

// Validate checks the configuration. A missing API key is a startup-time
// failure, not a per-request one.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Provider.BaseURL == "" {
		return fmt.Errorf("provider base URL is required")
	}
	if c.Provider.APIKey == "" {
		return fmt.Errorf("provider API key is required (set OPENROUTER_API_KEY)")
	}
	defaults := 0
	for _, m := range c.Models {
		if m.ID == "" {
			return fmt.Errorf("model entry with empty id")
		}
		if m.Default {
			defaults++
		}
	}
	if len(c.Models) > 0 && defaults != 1 {
		return fmt.Errorf("exactly one model must be marked default, got %d", defaults)
	}
	return nil
}

// ProviderTimeout returns the configured provider timeout.
func (c *Config) ProviderTimeout() time.Duration {
	if c.Provider.TimeoutSeconds <= 0 {
		return provider.DefaultTimeout
	}
	return time.Duration(c.Provider.TimeoutSeconds) * time.Second
}

// Catalog builds the model catalog from the configured models, or the stock
// reference catalog when none are configured.
func (c *Config) Catalog() (*catalog.Catalog, error) {
	if len(c.Models) == 0 {
		return catalog.Reference(), nil
	}
	entries := make([]catalog.Entry, 0, len(c.Models))
	defaultID := ""
	for _, m := range c.Models {
		entries = append(entries, catalog.Entry{
			ID:               m.ID,
			Description:      m.Description,
			Throughput:       m.Throughput,
			TimeToFirstToken: m.TimeToFirstToken,
			TokensPerSecond:  m.TokensPerSecond,
			Cost:             m.Cost,
			ArtifactProne:    m.ArtifactProne,
		})
		if m.Default {
			defaultID = m.ID
		}
	}
	return catalog.New(entries, defaultID)
}
