package domain

import "time"

// Config represents the main application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Explainer ExplainerConfig `mapstructure:"explainer"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
	RateLimitPerSec float64       `mapstructure:"rate_limit_per_sec"`
	RateLimitBurst  int           `mapstructure:"rate_limit_burst"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// KnowledgeConfig locates the knowledge base source files
type KnowledgeConfig struct {
	RulesPath      string `mapstructure:"rules_path"`
	AllelesPath    string `mapstructure:"alleles_path"`
	ThresholdsPath string `mapstructure:"thresholds_path"`
}

// AuditConfig represents assessment audit-trail storage configuration.
// Backend is "sqlite", "postgres", or "none".
type AuditConfig struct {
	Backend        string `mapstructure:"backend"`
	SQLitePath     string `mapstructure:"sqlite_path"`
	DatabaseURL    string `mapstructure:"database_url"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

// ExplainerConfig represents the explanation-layer configuration. With an
// empty APIKey the deterministic template renderer is used exclusively.
type ExplainerConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
}

// CacheConfig represents caching configuration for assessment memoization and
// the distributed explanation cache.
type CacheConfig struct {
	MemoSize   int           `mapstructure:"memo_size"`
	RedisURL   string        `mapstructure:"redis_url"`
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
	Enabled    bool          `mapstructure:"enabled"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
