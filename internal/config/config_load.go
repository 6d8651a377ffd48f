package config

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Providers: ProvidersConfig{
			Gemini: GeminiConfig{
				Model:          "gemini-2.0-flash",
				EmbeddingModel: "text-embedding-004",
			},
		},
		Pipeline: PipelineConfig{
			ConfidenceThreshold: 0.7,
			ContextTopK:         5,
		},
		Channels: ChannelsConfig{
			Telegram: TelegramConfig{
				RateLimitPerSecond: 25,
			},
		},
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 18890,
		},
		Database: DatabaseConfig{
			Mode: "memory",
		},
		Vector: VectorConfig{
			Path:      "~/.chatdesk/index.db",
			Namespace: "support",
		},
		Scheduler: SchedulerConfig{
			SyncCron: "*/5 * * * *",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file is not an error: env vars alone can configure a deployment.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	// Comma-separated key pool.
	if v := os.Getenv("CHATDESK_GEMINI_API_KEYS"); v != "" {
		var keys []string
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
		c.Providers.Gemini.APIKeys = keys
	}
	envStr("CHATDESK_GEMINI_MODEL", &c.Providers.Gemini.Model)
	envStr("CHATDESK_GEMINI_BASE_URL", &c.Providers.Gemini.BaseURL)

	envStr("CHATDESK_TELEGRAM_TOKEN", &c.Channels.Telegram.Token)
	if c.Channels.Telegram.Token != "" {
		c.Channels.Telegram.Enabled = true
	}

	envStr("CHATDESK_GATEWAY_TOKEN", &c.Gateway.Token)
	envStr("CHATDESK_HOST", &c.Gateway.Host)
	if v := os.Getenv("CHATDESK_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Gateway.Port = port
		}
	}

	envStr("CHATDESK_POSTGRES_DSN", &c.Database.PostgresDSN)
	envStr("CHATDESK_MODE", &c.Database.Mode)
	if c.Database.PostgresDSN != "" && os.Getenv("CHATDESK_MODE") == "" {
		c.Database.Mode = "postgres"
	}

	envStr("CHATDESK_VECTOR_PATH", &c.Vector.Path)
	envStr("CHATDESK_SYNC_CRON", &c.Scheduler.SyncCron)
}

// Save writes the config to a JSON file.
func Save(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// Hash returns a SHA-256 hash of the config for change detection.
func (c *Config) Hash() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, _ := json.Marshal(c)
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:8])
}

const secretMask = "***"

// MaskedCopy returns a deep copy of the config with all secret fields masked.
// Used when echoing config to logs or operator clients. The JSON round-trip
// drops the env-only secret fields entirely; masked markers are re-added so
// the reader can still see which secrets are set.
func (c *Config) MaskedCopy() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// Deep copy via JSON round-trip
	data, err := json.Marshal(c)
	if err != nil {
		return &Config{}
	}
	cp := Default()
	if err := json.Unmarshal(data, cp); err != nil {
		return &Config{}
	}

	cp.Providers.Gemini.APIKeys = make([]string, len(c.Providers.Gemini.APIKeys))
	for i := range cp.Providers.Gemini.APIKeys {
		cp.Providers.Gemini.APIKeys[i] = secretMask
	}
	cp.Channels.Telegram.Token = masked(c.Channels.Telegram.Token)
	cp.Gateway.Token = masked(c.Gateway.Token)
	cp.Database.PostgresDSN = masked(c.Database.PostgresDSN)

	return cp
}

func masked(s string) string {
	if s == "" {
		return ""
	}
	return secretMask
}

// VectorPath returns the expanded index file path.
func (c *Config) VectorPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ExpandHome(c.Vector.Path)
}

// ExpandHome replaces leading ~ with the user home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}
