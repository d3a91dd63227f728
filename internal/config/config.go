// Package config loads and validates panel configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all panel configuration knobs loaded via Viper.
type Config struct {
	Worker        WorkerConfig        `mapstructure:"worker"`
	CrawlerConfig CrawlerConfigConfig `mapstructure:"crawler_config"`
	Results       ResultsConfig       `mapstructure:"results"`
	History       HistoryConfig       `mapstructure:"history"`
	Hub           HubConfig           `mapstructure:"hub"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// WorkerConfig describes how the external crawler process is invoked.
type WorkerConfig struct {
	Runtime    string   `mapstructure:"runtime"`
	Entrypoint string   `mapstructure:"entrypoint"`
	Dir        string   `mapstructure:"dir"`
	Encoding   string   `mapstructure:"encoding"`
	Env        []string `mapstructure:"env"`
}

// CrawlerConfigConfig lists candidate locations of the crawler's own settings file.
type CrawlerConfigConfig struct {
	Paths []string `mapstructure:"paths"`
}

// ResultsConfig controls the result explorer.
type ResultsConfig struct {
	Dir       string `mapstructure:"dir"`
	Extension string `mapstructure:"extension"`
	MaxRows   int    `mapstructure:"max_rows"`
}

// HistoryConfig selects where run history is persisted.
type HistoryConfig struct {
	Backend    string `mapstructure:"backend"`
	SQLitePath string `mapstructure:"sqlite_path"`
	DSN        string `mapstructure:"dsn"`
}

// HubConfig tunes batching between the output reader and the sinks.
type HubConfig struct {
	BufferSize     int `mapstructure:"buffer_size"`
	MaxBatchEvents int `mapstructure:"max_batch_events"`
	MaxBatchWaitMs int `mapstructure:"max_batch_wait_ms"`
}

// MetricsConfig points at the Prometheus textfile written after each run.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
}

// Supported history backends.
const (
	HistoryMemory   = "memory"
	HistorySQLite   = "sqlite"
	HistoryPostgres = "postgres"
)

// Load builds a Config from disk/environment. An empty path searches for
// crawlerpanel.{yaml,toml,json} in the working directory and $HOME/.crawlerpanel.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLERPANEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		// Without an explicit file, look in the usual places and fall back to
		// defaults and environment variables when nothing is found.
		v.SetConfigName("crawlerpanel")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.crawlerpanel")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("worker.runtime", "python")
	v.SetDefault("worker.entrypoint", "main.py")
	v.SetDefault("worker.dir", ".")
	v.SetDefault("worker.encoding", "utf-8")
	v.SetDefault("worker.env", []string{"PYTHONUNBUFFERED=1"})
	v.SetDefault("crawler_config.paths", []string{"config/base_config.py", "base_config.py"})
	v.SetDefault("results.dir", "data")
	v.SetDefault("results.extension", ".csv")
	v.SetDefault("results.max_rows", 1000)
	v.SetDefault("history.backend", HistorySQLite)
	v.SetDefault("history.sqlite_path", "crawlerpanel_history.db")
	v.SetDefault("hub.buffer_size", 4096)
	v.SetDefault("hub.max_batch_events", 256)
	v.SetDefault("hub.max_batch_wait_ms", 50)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Worker.Runtime) == "" {
		return fmt.Errorf("worker.runtime is required")
	}
	if strings.TrimSpace(c.Worker.Entrypoint) == "" {
		return fmt.Errorf("worker.entrypoint is required")
	}
	switch strings.ToLower(c.Worker.Encoding) {
	case "", "utf-8", "utf8", "gbk":
	default:
		return fmt.Errorf("worker.encoding must be utf-8 or gbk, got %q", c.Worker.Encoding)
	}
	for _, kv := range c.Worker.Env {
		if k, _, ok := strings.Cut(kv, "="); !ok || k == "" {
			return fmt.Errorf("worker.env entries must be KEY=VALUE, got %q", kv)
		}
	}
	if len(c.CrawlerConfig.Paths) == 0 {
		return fmt.Errorf("crawler_config.paths must list at least one path")
	}
	if c.Results.MaxRows <= 0 {
		return fmt.Errorf("results.max_rows must be > 0")
	}
	if !strings.HasPrefix(c.Results.Extension, ".") {
		return fmt.Errorf("results.extension must start with a dot")
	}
	switch c.History.Backend {
	case HistoryMemory:
	case HistorySQLite:
		if c.History.SQLitePath == "" {
			return fmt.Errorf("history.sqlite_path must be set when history.backend is sqlite")
		}
	case HistoryPostgres:
		if c.History.DSN == "" {
			return fmt.Errorf("history.dsn must be set when history.backend is postgres")
		}
	default:
		return fmt.Errorf("unknown history.backend %q", c.History.Backend)
	}
	if c.Hub.BufferSize <= 0 {
		return fmt.Errorf("hub.buffer_size must be > 0")
	}
	return nil
}

// BatchWait converts the hub batching window into a duration.
func (c Config) BatchWait() time.Duration {
	return time.Duration(c.Hub.MaxBatchWaitMs) * time.Millisecond
}
