// Package config defines the ChatDesk configuration model.
// Config files are JSON5 (comments and trailing commas allowed); environment
// variables with the CHATDESK_ prefix override file values.
package config

import (
	"sync"
)

// Config is the root configuration.
type Config struct {
	mu sync.RWMutex `json:"-"`

	Providers ProvidersConfig `json:"providers,omitempty"`
	Pipeline  PipelineConfig  `json:"pipeline,omitempty"`
	Channels  ChannelsConfig  `json:"channels,omitempty"`
	Gateway   GatewayConfig   `json:"gateway,omitempty"`
	Database  DatabaseConfig  `json:"database,omitempty"`
	Vector    VectorConfig    `json:"vector,omitempty"`
	Scheduler SchedulerConfig `json:"scheduler,omitempty"`
}

// ProvidersConfig holds generation-provider settings.
type ProvidersConfig struct {
	Gemini GeminiConfig `json:"gemini,omitempty"`
}

// GeminiConfig configures the Gemini provider. Multiple API keys form the
// rotation pool. Keys are secrets: they come from CHATDESK_GEMINI_API_KEYS
// only and are never read from or written to the config file.
type GeminiConfig struct {
	APIKeys        []string `json:"-"`
	Model          string   `json:"model,omitempty"`
	EmbeddingModel string   `json:"embedding_model,omitempty"`
	BaseURL        string   `json:"base_url,omitempty"`
}

// PipelineConfig tunes the message pipeline. The keyword tables are data:
// operations can edit them in the config file without a code change, and the
// file watcher picks edits up live.
type PipelineConfig struct {
	ConfidenceThreshold float64  `json:"confidence_threshold,omitempty"`
	ContextTopK         int      `json:"context_top_k,omitempty"`
	UncertaintyPhrases  []string `json:"uncertainty_phrases,omitempty"`
	SensitiveTopics     []string `json:"sensitive_topics,omitempty"`
	FrustrationTerms    []string `json:"frustration_terms,omitempty"`
	HumanPhrases        []string `json:"human_phrases,omitempty"`
	HighValueIntents    []string `json:"high_value_intents,omitempty"`
}

// ChannelsConfig holds messaging-channel settings.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram,omitempty"`
}

// TelegramConfig configures the Telegram channel.
type TelegramConfig struct {
	Enabled bool `json:"enabled,omitempty"`
	// Token comes from CHATDESK_TELEGRAM_TOKEN only.
	Token string `json:"-"`
	// StaffChatIDs lists chat IDs treated as staff consoles: messages from
	// these chats run the staff-assisted pipeline.
	StaffChatIDs []int64 `json:"staff_chat_ids,omitempty"`
	// RateLimitPerSecond caps outbound sends across all chats.
	RateLimitPerSecond float64 `json:"rate_limit_per_second,omitempty"`
}

// GatewayConfig configures the operator WebSocket gateway.
type GatewayConfig struct {
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"`
	// Token comes from CHATDESK_GATEWAY_TOKEN only.
	Token string `json:"-"`
}

// DatabaseConfig selects the persistence backend.
type DatabaseConfig struct {
	// Mode is "postgres" or "memory".
	Mode string `json:"mode,omitempty"`
	// PostgresDSN embeds credentials, so it comes from CHATDESK_POSTGRES_DSN
	// only.
	PostgresDSN string `json:"-"`
}

// VectorConfig configures the embedding index.
type VectorConfig struct {
	// Path to the SQLite index file; empty selects the in-memory index.
	Path      string `json:"path,omitempty"`
	Namespace string `json:"namespace,omitempty"`
}

// SchedulerConfig configures background jobs.
type SchedulerConfig struct {
	// SyncCron is the index-sync schedule in cron syntax.
	SyncCron string `json:"sync_cron,omitempty"`
}
