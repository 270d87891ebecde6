// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	DataDir   string          `yaml:"data_dir" mapstructure:"data_dir"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Browser   BrowserConfig   `yaml:"browser" mapstructure:"browser"`
	Platforms PlatformsConfig `yaml:"platforms" mapstructure:"platforms"`
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Aggregate AggregateConfig `yaml:"aggregate" mapstructure:"aggregate"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the local relational store.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// FetchConfig configures the page acquisition layer.
type FetchConfig struct {
	UserAgent      string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSecond  float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	MaxRetries     int     `yaml:"max_retries" mapstructure:"max_retries"`
	MaxBodyBytes   int64   `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	WaitTimeoutMs  int     `yaml:"wait_timeout_ms" mapstructure:"wait_timeout_ms"`
}

// BrowserConfig configures the shared headless browser.
type BrowserConfig struct {
	Headless       bool `yaml:"headless" mapstructure:"headless"`
	NavTimeoutSecs int  `yaml:"nav_timeout_secs" mapstructure:"nav_timeout_secs"`
}

// AccountConfig is one platform login.
type AccountConfig struct {
	Email    string `yaml:"email" mapstructure:"email"`
	Password string `yaml:"password" mapstructure:"password"`
}

// PlatformsConfig holds per-platform accounts and scrape tuning.
type PlatformsConfig struct {
	Tabelog    PlatformConfig `yaml:"tabelog" mapstructure:"tabelog"`
	Omakase    PlatformConfig `yaml:"omakase" mapstructure:"omakase"`
	Tablecheck PlatformConfig `yaml:"tablecheck" mapstructure:"tablecheck"`
	Tableall   PlatformConfig `yaml:"tableall" mapstructure:"tableall"`
}

// PlatformConfig tunes one platform's scraper.
type PlatformConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	PageCap int           `yaml:"page_cap" mapstructure:"page_cap"`
	Account AccountConfig `yaml:"account" mapstructure:"account"`
}

// SearchConfig holds the external web-search API settings.
type SearchConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	ResultCount int    `yaml:"result_count" mapstructure:"result_count"`
}

// AnthropicConfig holds the LLM disambiguation settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// AggregateConfig tunes the streaming aggregator.
type AggregateConfig struct {
	MaxConcurrentDates    int     `yaml:"max_concurrent_dates" mapstructure:"max_concurrent_dates"`
	ResolveConcurrency    int     `yaml:"resolve_concurrency" mapstructure:"resolve_concurrency"`
	ResolveScoreThreshold float64 `yaml:"resolve_score_threshold" mapstructure:"resolve_score_threshold"`
}

// ServerConfig configures the streaming HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// CacheDir returns the cache directory under the data dir.
func (c *Config) CacheDir() string {
	return filepath.Join(c.DataDir, "cache")
}

// SessionsDir returns the session-blob directory under the data dir.
func (c *Config) SessionsDir() string {
	return filepath.Join(c.DataDir, "sessions")
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(defaultDataDir())

	// Environment
	v.SetEnvPrefix("TABLESCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("store.path", filepath.Join(defaultDataDir(), "tablescout.db"))
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36")
	v.SetDefault("fetch.timeout_secs", 15)
	v.SetDefault("fetch.rate_per_second", 1.0)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.max_body_bytes", 2*1024*1024)
	v.SetDefault("fetch.wait_timeout_ms", 8000)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.nav_timeout_secs", 30)
	v.SetDefault("platforms.tabelog.enabled", true)
	v.SetDefault("platforms.tabelog.base_url", "https://tabelog.com")
	v.SetDefault("platforms.tabelog.page_cap", 20)
	v.SetDefault("platforms.omakase.enabled", true)
	v.SetDefault("platforms.omakase.base_url", "https://omakase.in")
	v.SetDefault("platforms.omakase.page_cap", 5)
	v.SetDefault("platforms.tablecheck.enabled", true)
	v.SetDefault("platforms.tablecheck.base_url", "https://www.tablecheck.com")
	v.SetDefault("platforms.tablecheck.page_cap", 10)
	v.SetDefault("platforms.tableall.enabled", true)
	v.SetDefault("platforms.tableall.base_url", "https://www.tableall.com")
	v.SetDefault("platforms.tableall.page_cap", 5)
	v.SetDefault("search.base_url", "https://s.jina.ai")
	v.SetDefault("search.result_count", 10)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("aggregate.max_concurrent_dates", 14)
	v.SetDefault("aggregate.resolve_concurrency", 3)
	v.SetDefault("aggregate.resolve_score_threshold", 3.7)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Platform returns the config block for a platform key, nil if unknown.
func (p *PlatformsConfig) Platform(key string) *PlatformConfig {
	switch key {
	case "tabelog":
		return &p.Tabelog
	case "omakase":
		return &p.Omakase
	case "tablecheck":
		return &p.Tablecheck
	case "tableall":
		return &p.Tableall
	default:
		return nil
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tablescout"
	}
	return filepath.Join(home, ".tablescout")
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
