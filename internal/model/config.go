package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// SourceConfig holds the configuration for one message source.
type SourceConfig struct {
	// Type identifies the source kind ("gmail", "imap", "mock").
	Type string `mapstructure:"type" yaml:"type"`

	// Query is the provider search query used to select messages.
	// The pipeline never interprets it.
	Query string `mapstructure:"query" yaml:"query"`

	// MaxMessages caps how many messages one fetch retrieves.
	MaxMessages int `mapstructure:"max_messages" yaml:"max_messages"`

	// MarkProcessed controls whether fetched messages are labeled or
	// flagged as processed at the provider.
	MarkProcessed bool `mapstructure:"mark_processed" yaml:"mark_processed"`

	// Config holds source-specific key-value settings (credential
	// file paths, IMAP host/port, mock snapshot path).
	Config map[string]string `mapstructure:"config" yaml:"config"`
}

// BackendConfig holds settings for the processing backends.
type BackendConfig struct {
	// Mode selects the backend for a run: "capable", "heuristic",
	// or "noop".
	Mode string `mapstructure:"mode" yaml:"mode"`

	// Model is the language model identifier the capable backend uses.
	Model string `mapstructure:"model" yaml:"model"`

	// MaxTokens bounds each capable-backend response.
	MaxTokens int `mapstructure:"max_tokens" yaml:"max_tokens"`

	// FallbackHeuristic makes the orchestrator substitute heuristic
	// output when a capable call fails for a message.
	FallbackHeuristic bool `mapstructure:"fallback_heuristic" yaml:"fallback_heuristic"`
}

// StoreConfig holds local persistence settings.
type StoreConfig struct {
	// Path is the SQLite database file location.
	Path string `mapstructure:"path" yaml:"path"`
}

// AppConfig is the top-level application configuration. It is built
// once at startup and injected into constructors; no component reads
// ambient process state.
type AppConfig struct {
	Source  SourceConfig  `mapstructure:"source" yaml:"source"`
	Backend BackendConfig `mapstructure:"backend" yaml:"backend"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
}

// DefaultConfigPath returns the default path for the configuration
// file, located at ~/.config/mailtriage/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailtriage", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Source: SourceConfig{
			Type:          "mock",
			Query:         "in:inbox -label:Processed",
			MaxMessages:   50,
			MarkProcessed: true,
			Config:        map[string]string{},
		},
		Backend: BackendConfig{
			Mode:      "heuristic",
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 1024,
		},
		Store: StoreConfig{
			Path: filepath.Join(filepath.Dir(DefaultConfigPath()), "mailtriage.db"),
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using
// Viper. If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("source.type", "mock")
	v.SetDefault("source.query", "in:inbox -label:Processed")
	v.SetDefault("source.max_messages", 50)
	v.SetDefault("source.mark_processed", true)
	v.SetDefault("backend.mode", "heuristic")
	v.SetDefault("backend.model", "claude-sonnet-4-20250514")
	v.SetDefault("backend.max_tokens", 1024)
	v.SetDefault("store.path", defaultAppConfig().Store.Path)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Source.MaxMessages <= 0 {
		cfg.Source.MaxMessages = 50
	}
	if cfg.Backend.MaxTokens <= 0 {
		cfg.Backend.MaxTokens = 1024
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("source", cfg.Source)
	v.Set("backend", cfg.Backend)
	v.Set("store", cfg.Store)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
