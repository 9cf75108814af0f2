// Package config loads service configuration from files and the
// PHARMAGUARD_* environment through Viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/Shivendra2129/-PharmaGuard/internal/domain"
)

// Manager loads and validates the service configuration.
type Manager struct {
	config *domain.Config
}

// NewManager creates a configuration manager, loading from config files,
// environment variables, and defaults in that order of precedence.
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/pharmaguard/")

	viper.SetEnvPrefix("PHARMAGUARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	// Config file is optional; defaults and env vars carry a bare deployment.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

func (m *Manager) setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.max_upload_bytes", 5*1024*1024)
	viper.SetDefault("server.rate_limit_per_sec", 10.0)
	viper.SetDefault("server.rate_limit_burst", 20)
	viper.SetDefault("server.cors_origins", []string{"*"})

	viper.SetDefault("knowledge.rules_path", "data/pharmacogenomic_rules.csv")
	viper.SetDefault("knowledge.alleles_path", "data/allele_definitions.csv")
	viper.SetDefault("knowledge.thresholds_path", "data/activity_thresholds.csv")

	viper.SetDefault("audit.backend", "sqlite")
	viper.SetDefault("audit.sqlite_path", "pharmaguard_audit.db")
	viper.SetDefault("audit.database_url", "")
	viper.SetDefault("audit.migrations_path", "migrations")

	viper.SetDefault("explainer.base_url", "https://api.openai.com/v1")
	viper.SetDefault("explainer.api_key", "")
	viper.SetDefault("explainer.model", "gpt-4o")
	viper.SetDefault("explainer.timeout", "20s")
	viper.SetDefault("explainer.max_tokens", 600)
	viper.SetDefault("explainer.temperature", 0.2)

	viper.SetDefault("cache.memo_size", 1024)
	viper.SetDefault("cache.redis_url", "redis://localhost:6379")
	viper.SetDefault("cache.default_ttl", "24h")
	viper.SetDefault("cache.enabled", false)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
}

// GetConfig returns the complete configuration.
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// Reload re-reads configuration from all sources.
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate checks the loaded configuration for internally consistent values.
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive")
	}

	if config.Knowledge.RulesPath == "" {
		return fmt.Errorf("knowledge rules path is required")
	}
	if config.Knowledge.AllelesPath == "" {
		return fmt.Errorf("knowledge alleles path is required")
	}
	if config.Knowledge.ThresholdsPath == "" {
		return fmt.Errorf("knowledge thresholds path is required")
	}

	switch config.Audit.Backend {
	case "sqlite":
		if config.Audit.SQLitePath == "" {
			return fmt.Errorf("sqlite audit backend requires sqlite_path")
		}
	case "postgres":
		if config.Audit.DatabaseURL == "" {
			return fmt.Errorf("postgres audit backend requires database_url")
		}
	case "none":
	default:
		return fmt.Errorf("unknown audit backend: %s", config.Audit.Backend)
	}

	if config.Cache.Enabled && config.Cache.RedisURL == "" {
		return fmt.Errorf("cache enabled but redis_url is empty")
	}

	switch config.Logging.Level {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return fmt.Errorf("invalid logging level: %s", config.Logging.Level)
	}

	return nil
}
