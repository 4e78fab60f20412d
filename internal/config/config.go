package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// Values are read by viper from a config file or environment variables.
type Config struct {
	// TelegramBotToken is optional; the bot is disabled without it.
	TelegramBotToken string        `mapstructure:"TELEGRAM_BOT_TOKEN"`
	BadgerDBPath     string        `mapstructure:"BADGERDB_PATH"`
	BadgerGCInterval time.Duration `mapstructure:"BADGER_GC_INTERVAL"`
	HTTPAddr         string        `mapstructure:"HTTP_ADDR"`
	LogLevel         string        `mapstructure:"LOG_LEVEL"`

	FetchTimeout   time.Duration `mapstructure:"FETCH_TIMEOUT"`
	FetchRate      float64       `mapstructure:"FETCH_RATE"`
	FetchBurst     int           `mapstructure:"FETCH_BURST"`
	FetchMaxBytes  int64         `mapstructure:"FETCH_MAX_BYTES"`
	FetchUserAgent string        `mapstructure:"FETCH_USER_AGENT"`

	EnrichWorkers int           `mapstructure:"ENRICH_WORKERS"`
	EnrichTimeout time.Duration `mapstructure:"ENRICH_TIMEOUT"`

	// The embedding collaborator is disabled when neither host nor key is set.
	EmbeddingHost       string        `mapstructure:"EMBEDDING_HOST"`
	EmbeddingAPIKey     string        `mapstructure:"EMBEDDING_API_KEY"`
	EmbeddingModel      string        `mapstructure:"EMBEDDING_MODEL"`
	CaptionModel        string        `mapstructure:"CAPTION_MODEL"`
	EmbeddingDimensions int           `mapstructure:"EMBEDDING_DIMENSIONS"`
	EmbeddingTimeout    time.Duration `mapstructure:"EMBEDDING_TIMEOUT"`

	// QdrantURL is optional; semantic search scans stored embeddings without it.
	QdrantURL        string `mapstructure:"QDRANT_URL"`
	QdrantCollection string `mapstructure:"QDRANT_COLLECTION"`

	BlobBaseURL string `mapstructure:"BLOB_BASE_URL"`
}

var defaults = map[string]any{
	"TELEGRAM_BOT_TOKEN":   "",
	"BADGERDB_PATH":        "./badger_data",
	"BADGER_GC_INTERVAL":   "10m",
	"HTTP_ADDR":            ":8080",
	"LOG_LEVEL":            "info",
	"FETCH_TIMEOUT":        "10s",
	"FETCH_RATE":           5.0,
	"FETCH_BURST":          5,
	"FETCH_MAX_BYTES":      2 << 20,
	"FETCH_USER_AGENT":     "",
	"ENRICH_WORKERS":       4,
	"ENRICH_TIMEOUT":       "30s",
	"EMBEDDING_HOST":       "",
	"EMBEDDING_API_KEY":    "",
	"EMBEDDING_MODEL":      "text-embedding-3-small",
	"CAPTION_MODEL":        "gpt-4o-mini",
	"EMBEDDING_DIMENSIONS": 1536,
	"EMBEDDING_TIMEOUT":    "20s",
	"QDRANT_URL":           "",
	"QDRANT_COLLECTION":    "captures",
	"BLOB_BASE_URL":        "",
}

// LoadConfig reads configuration from path/config.yaml and environment
// variables. A .env file in path or the working directory is loaded first;
// variables already set in the environment take precedence over it.
func LoadConfig(path string) (Config, error) {
	// Missing .env files are fine.
	_ = godotenv.Load(filepath.Join(path, ".env"))
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// Validate rejects values the application cannot start with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BadgerDBPath) == "" {
		return errors.New("BADGERDB_PATH must not be empty")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.EnrichWorkers < 1 {
		return fmt.Errorf("ENRICH_WORKERS must be at least 1, got %d", c.EnrichWorkers)
	}
	if c.FetchRate <= 0 {
		return fmt.Errorf("FETCH_RATE must be positive, got %v", c.FetchRate)
	}
	if c.EmbeddingDimensions < 0 {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must not be negative, got %d", c.EmbeddingDimensions)
	}
	return nil
}

// Level returns the configured log level, defaulting to info.
func (c Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// BotEnabled reports whether a Telegram token is configured.
func (c Config) BotEnabled() bool {
	return c.TelegramBotToken != ""
}
