// internal/config/config.go
package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"

	apperrors "repo-snapshot-sync/internal/errors"
)

// Config holds all configuration for the application. It is read once at
// startup and treated as immutable afterwards.
type Config struct {
	LogLevel       string `mapstructure:"LOG_LEVEL"`
	HTTPAddr       string `mapstructure:"HTTP_ADDR"`
	GithubToken    string `mapstructure:"GITHUB_TOKEN"`
	GithubUsername string `mapstructure:"GITHUB_USERNAME"`
	SyncSchedule   string `mapstructure:"SYNC_SCHEDULE"`
	SinkStrategy   string `mapstructure:"SINK_STRATEGY"`
	BatchReconcile string `mapstructure:"BATCH_RECONCILE"`
	DBURL          string `mapstructure:"DB_URL"`
	RedisAddr      string `mapstructure:"REDIS_ADDR"`
}

// Sink strategy names accepted in SINK_STRATEGY.
const (
	SinkBatch  = "batch"
	SinkUpsert = "upsert"
	SinkRedis  = "redis"
)

// LoadConfig reads configuration from file and/or environment variables.
func LoadConfig() (*Config, error) {
	// Set default values
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("HTTP_ADDR", ":8080")
	viper.SetDefault("SYNC_SCHEDULE", "@hourly")
	viper.SetDefault("SINK_STRATEGY", SinkBatch)
	viper.SetDefault("BATCH_RECONCILE", "insert")

	// Register value-less keys so AutomaticEnv can resolve them during Unmarshal
	viper.SetDefault("GITHUB_TOKEN", "")
	viper.SetDefault("GITHUB_USERNAME", "")
	viper.SetDefault("DB_URL", "")
	viper.SetDefault("REDIS_ADDR", "")

	// Load from .env file if it exists
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // Ignore error if file not found

	// Bind environment variables
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate required fields
	if cfg.GithubToken == "" {
		return nil, errors.New("GITHUB_TOKEN is a required configuration field")
	}
	if cfg.GithubUsername == "" {
		return nil, errors.New("GITHUB_USERNAME is a required configuration field")
	}

	switch cfg.SinkStrategy {
	case SinkBatch, SinkUpsert:
		if cfg.DBURL == "" {
			return nil, errors.New("DB_URL is required for the batch and upsert sink strategies")
		}
	case SinkRedis:
		if cfg.RedisAddr == "" {
			return nil, errors.New("REDIS_ADDR is required for the redis sink strategy")
		}
	default:
		return nil, &apperrors.ErrUnknownSinkStrategy{Strategy: cfg.SinkStrategy}
	}

	if cfg.BatchReconcile != "insert" && cfg.BatchReconcile != "upsert" {
		return nil, errors.New("BATCH_RECONCILE must be 'insert' or 'upsert'")
	}

	return &cfg, nil
}
