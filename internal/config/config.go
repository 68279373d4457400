// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.revisio/config.yaml or ./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: provider and model selection, generation limits
//   - Embedder: embedding model and vector dimension
//   - Storage: PostgreSQL connection (see storage.go)
//   - Retrieval: top-k and per-surface similarity thresholds
//   - Server: HTTP listen address
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidEmbedderDimension indicates the embedder dimension is out of range.
	ErrInvalidEmbedderDimension = errors.New("invalid embedder dimension")

	// ErrInvalidTopK indicates the retrieval top-k value is out of range.
	ErrInvalidTopK = errors.New("invalid retrieval top_k")

	// ErrInvalidThreshold indicates a similarity threshold is out of range.
	ErrInvalidThreshold = errors.New("invalid similarity threshold")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Embedder defaults. gemini-embedding-001 supports truncation to 768
// dimensions via OutputDimensionality; text-embedding-3-small supports the
// same truncation through the OpenAI dimensions parameter, so both providers
// can share a single column width.
const (
	DefaultEmbedderModel     = "gemini-embedding-001"
	DefaultEmbedderDimension = 768
)

// Thresholds holds the minimum-similarity cutoffs applied per retrieval
// surface. Interactive chat tolerates only close matches; study-material
// generation casts a wider net.
type Thresholds struct {
	Default   float32 `mapstructure:"default" json:"default"`
	Chat      float32 `mapstructure:"chat" json:"chat"`
	Exam      float32 `mapstructure:"exam" json:"exam"`
	Flashcard float32 `mapstructure:"flashcard" json:"flashcard"`
}

// Config stores application configuration.
type Config struct {
	// AI provider and model configuration
	Provider  string `mapstructure:"provider" json:"provider"`     // "gemini" (default) or "openai"
	ModelName string `mapstructure:"model_name" json:"model_name"` // e.g. "gemini-2.5-flash", "gpt-4o-mini"
	MaxTokens int    `mapstructure:"max_tokens" json:"max_tokens"`

	// Embedder configuration
	EmbedderModel     string `mapstructure:"embedder_model" json:"embedder_model"`
	EmbedderDimension int    `mapstructure:"embedder_dimension" json:"embedder_dimension"`

	// Retrieval configuration
	TopK       int        `mapstructure:"top_k" json:"top_k"`
	Thresholds Thresholds `mapstructure:"thresholds" json:"thresholds"`

	// Storage configuration (see storage.go for documentation)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"-"`
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// History log (local SQLite file)
	HistoryPath string `mapstructure:"history_path" json:"history_path"`

	// Server configuration
	ServerAddr string `mapstructure:"server_addr" json:"server_addr"`

	// Observability configuration (OTLP trace export; empty endpoint disables)
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`
	Environment  string `mapstructure:"environment" json:"environment"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".revisio")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings when set.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("max_tokens", 2048)

	// Embedder defaults
	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("embedder_dimension", DefaultEmbedderDimension)

	// Retrieval defaults
	viper.SetDefault("top_k", 3)
	viper.SetDefault("thresholds.default", 0.30)
	viper.SetDefault("thresholds.chat", 0.675)
	viper.SetDefault("thresholds.exam", 0.55)
	viper.SetDefault("thresholds.flashcard", 0.50)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "revisio")
	viper.SetDefault("postgres_password", "revisio_dev_password")
	viper.SetDefault("postgres_db_name", "revisio")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// History defaults
	viper.SetDefault("history_path", filepath.Join("data", "history.db"))

	// Server defaults
	viper.SetDefault("server_addr", ":8080")

	// Observability defaults
	viper.SetDefault("otlp_endpoint", "")
	viper.SetDefault("environment", "dev")
}

// bindEnvVariables binds environment-variable overrides explicitly.
//
// NOTE: GEMINI_API_KEY and OPENAI_API_KEY are read directly by the AI
// clients, not via Viper. Validation checks their presence based on the
// selected provider in cfg.Validate().
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail)
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "REVISIO_PROVIDER")
	mustBind("model_name", "REVISIO_MODEL_NAME")
	mustBind("embedder_model", "REVISIO_EMBEDDER_MODEL")
	mustBind("embedder_dimension", "REVISIO_EMBEDDER_DIMENSION")
	mustBind("server_addr", "REVISIO_SERVER_ADDR")
	mustBind("history_path", "REVISIO_HISTORY_PATH")
	mustBind("otlp_endpoint", "REVISIO_OTLP_ENDPOINT")
	mustBind("environment", "REVISIO_ENVIRONMENT")
}
