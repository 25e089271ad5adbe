// Package config handles TOML configuration loading with environment
// variable substitution.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Cache     CacheConfig     `toml:"cache"`
	Downloads DownloadsConfig `toml:"downloads"`
	Extractor ExtractorConfig `toml:"extractor"`
	Worker    WorkerConfig    `toml:"worker"`
}

type ServerConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	LogLevel string `toml:"log_level"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type CacheConfig struct {
	Path string `toml:"path"`
}

type DownloadsConfig struct {
	TempDir              string `toml:"temp_dir"`
	DestDir              string `toml:"dest_dir"`
	MinStorageGB         int    `toml:"min_storage_gb"`
	MaxPending           int    `toml:"max_pending"`
	CleanupRetentionDays int    `toml:"cleanup_retention_days"`
	LogRetentionDays     int    `toml:"log_retention_days"`
	TimeoutMinutes       int    `toml:"timeout_minutes"`
}

type ExtractorConfig struct {
	BinPath string `toml:"bin_path"`
}

type WorkerConfig struct {
	PollIntervalMs         int `toml:"poll_interval_ms"`
	StalledCheckIntervalMs int `toml:"stalled_check_interval_ms"`
	CleanupIntervalMs      int `toml:"cleanup_interval_ms"`
	ProgressLogThreshold   int `toml:"progress_log_threshold"`
}

// PollInterval returns the worker queue poll interval.
func (w WorkerConfig) PollInterval() time.Duration {
	return time.Duration(w.PollIntervalMs) * time.Millisecond
}

// StalledCheckInterval returns the stalled-check scheduler interval.
func (w WorkerConfig) StalledCheckInterval() time.Duration {
	return time.Duration(w.StalledCheckIntervalMs) * time.Millisecond
}

// CleanupInterval returns the cleanup scheduler interval.
func (w WorkerConfig) CleanupInterval() time.Duration {
	return time.Duration(w.CleanupIntervalMs) * time.Millisecond
}

// Timeout returns the stall timeout.
func (d DownloadsConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutMinutes) * time.Minute
}

// Load reads, substitutes and decodes the config file, then applies
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	content := substituteEnvVars(string(data))

	var cfg Config
	if _, err := toml.Decode(content, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a config with all defaults applied and no file read.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8585
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/audiarr.db"
	}
	if c.Cache.Path == "" {
		c.Cache.Path = "./data/cache"
	}
	if c.Downloads.TempDir == "" {
		c.Downloads.TempDir = "./data/downloads"
	}
	if c.Downloads.DestDir == "" {
		c.Downloads.DestDir = "./data/library"
	}
	if c.Downloads.MinStorageGB == 0 {
		c.Downloads.MinStorageGB = 5
	}
	if c.Downloads.MaxPending == 0 {
		c.Downloads.MaxPending = 10
	}
	if c.Downloads.CleanupRetentionDays == 0 {
		c.Downloads.CleanupRetentionDays = 7
	}
	if c.Downloads.LogRetentionDays == 0 {
		c.Downloads.LogRetentionDays = 90
	}
	if c.Downloads.TimeoutMinutes == 0 {
		c.Downloads.TimeoutMinutes = 60
	}
	if c.Extractor.BinPath == "" {
		c.Extractor.BinPath = "yt-dlp"
	}
	if c.Worker.PollIntervalMs == 0 {
		c.Worker.PollIntervalMs = 2000
	}
	if c.Worker.StalledCheckIntervalMs == 0 {
		c.Worker.StalledCheckIntervalMs = 300000
	}
	if c.Worker.CleanupIntervalMs == 0 {
		c.Worker.CleanupIntervalMs = int((7 * 24 * time.Hour).Milliseconds())
	}
	if c.Worker.ProgressLogThreshold == 0 {
		c.Worker.ProgressLogThreshold = 5
	}
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := match[2 : len(match)-1]
		if value, ok := os.LookupEnv(varName); ok {
			return value
		}
		return match
	})
}
