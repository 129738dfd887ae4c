// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Channel    ChannelConfig    `mapstructure:"channel"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Attachment AttachmentConfig `mapstructure:"attachment"`
	Sync       SyncConfig       `mapstructure:"sync"`
	DB         DBConfig         `mapstructure:"db"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ChannelConfig identifies the mirrored channel.
type ChannelConfig struct {
	Name    string `mapstructure:"name"`
	BaseURL string `mapstructure:"base_url"`
}

// HTTPConfig configures fetch retry behavior.
type HTTPConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries"`
	BackoffBaseMs  int    `mapstructure:"backoff_base_ms"`
	UserAgent      string `mapstructure:"user_agent"`
}

// AttachmentConfig governs media ingestion.
type AttachmentConfig struct {
	MaxSizeBytes    int64    `mapstructure:"max_size_bytes"`
	ImageExtensions []string `mapstructure:"image_extensions"`
	VideoExtensions []string `mapstructure:"video_extensions"`
	Concurrency     int      `mapstructure:"concurrency"`
}

// SyncConfig governs the orchestrator loop.
type SyncConfig struct {
	PageSize        int `mapstructure:"page_size"`
	BoundMargin     int `mapstructure:"bound_margin"`
	PacingMinSec    int `mapstructure:"pacing_min_seconds"`
	PacingMaxSec    int `mapstructure:"pacing_max_seconds"`
	ProgressBufSize int `mapstructure:"progress_buffer"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// StorageConfig sets the object storage target.
type StorageConfig struct {
	Provider       string `mapstructure:"provider"`
	Bucket         string `mapstructure:"bucket"`
	ProjectID      string `mapstructure:"project_id"`
	PublicEndpoint string `mapstructure:"public_endpoint"`
}

// ServerConfig controls the HTTP trigger surface.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk and environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TGMIRROR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
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
	// Keys without a meaningful default still get one registered so
	// AutomaticEnv can populate them without a config file.
	v.SetDefault("channel.name", "")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.project_id", "")
	v.SetDefault("storage.public_endpoint", "")
	v.SetDefault("channel.base_url", "https://t.me/s")
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_retries", 10)
	v.SetDefault("http.backoff_base_ms", 5000)
	v.SetDefault("http.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:140.0) Gecko/20100101 Firefox/140.0")
	v.SetDefault("attachment.max_size_bytes", 20*1024*1024)
	v.SetDefault("attachment.image_extensions", []string{"jpg", "jpeg", "png", "gif", "webp"})
	v.SetDefault("attachment.video_extensions", []string{"mp4", "mov", "webm"})
	v.SetDefault("attachment.concurrency", 3)
	v.SetDefault("sync.page_size", 15)
	v.SetDefault("sync.bound_margin", 10)
	v.SetDefault("sync.pacing_min_seconds", 2)
	v.SetDefault("sync.pacing_max_seconds", 5)
	v.SetDefault("sync.progress_buffer", 16)
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("storage.provider", "gcs")
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Channel.Name == "" {
		return fmt.Errorf("channel.name is required")
	}
	if c.HTTP.MaxRetries <= 0 {
		return fmt.Errorf("http.max_retries must be > 0")
	}
	if c.HTTP.BackoffBaseMs <= 0 {
		return fmt.Errorf("http.backoff_base_ms must be > 0")
	}
	if c.Attachment.MaxSizeBytes <= 0 {
		return fmt.Errorf("attachment.max_size_bytes must be > 0")
	}
	if c.Sync.PageSize <= 0 {
		return fmt.Errorf("sync.page_size must be > 0")
	}
	if c.Sync.PacingMinSec > c.Sync.PacingMaxSec {
		return fmt.Errorf("sync.pacing_min_seconds must be <= sync.pacing_max_seconds")
	}
	switch c.Storage.Provider {
	case "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the gcs provider")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage provider %q", c.Storage.Provider)
	}
	return nil
}

// FetchTimeout converts the HTTP timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// BackoffBase converts the backoff base into a duration.
func (c Config) BackoffBase() time.Duration {
	return time.Duration(c.HTTP.BackoffBaseMs) * time.Millisecond
}
