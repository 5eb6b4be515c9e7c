package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Index store backends
const (
	IndexStoreFile     = "file"
	IndexStorePostgres = "postgres"
	IndexStoreS3       = "s3"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	OpenAIAPIKey      string        `envconfig:"OPENAI_API_KEY"`
	OpenAIModel       string        `envconfig:"OPENAI_MODEL" default:"gpt-3.5-turbo"`
	OpenAIBaseURL     string        `envconfig:"OPENAI_BASE_URL"`
	CompletionTimeout time.Duration `envconfig:"COMPLETION_TIMEOUT" default:"5s"`

	CacheTTL time.Duration `envconfig:"CACHE_TTL" default:"10s"`
	RedisURL string        `envconfig:"REDIS_URL"`

	IndexStore     string `envconfig:"INDEX_STORE" default:"file"`
	IndexPath      string `envconfig:"INDEX_PATH" default:"data/faq_index.json"`
	IndexDimension int    `envconfig:"INDEX_DIMENSION" default:"384"`
	IndexS3Key     string `envconfig:"INDEX_S3_KEY" default:"index/faq_index.json"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"leadbot-index"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	// AdminToken guards the leads listing when set
	AdminToken string `envconfig:"ADMIN_TOKEN"`

	ChatRateLimit float64 `envconfig:"CHAT_RATE_LIMIT" default:"0"`
	ChatRateBurst int     `envconfig:"CHAT_RATE_BURST" default:"5"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("LEADBOT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate checks values envconfig cannot express
func (c *Config) Validate() error {
	switch c.IndexStore {
	case IndexStoreFile, IndexStorePostgres:
	case IndexStoreS3:
		if !c.HasS3() {
			return fmt.Errorf("INDEX_STORE=s3 requires S3_ENDPOINT, S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY")
		}
	default:
		return fmt.Errorf("unknown INDEX_STORE %q (want file, postgres or s3)", c.IndexStore)
	}

	if c.IndexDimension <= 0 {
		return fmt.Errorf("INDEX_DIMENSION must be positive, got %d", c.IndexDimension)
	}
	if c.CompletionTimeout <= 0 {
		return fmt.Errorf("COMPLETION_TIMEOUT must be positive, got %s", c.CompletionTimeout)
	}
	if c.ChatRateLimit < 0 {
		return fmt.Errorf("CHAT_RATE_LIMIT must not be negative")
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasRedis() bool {
	return c.RedisURL != ""
}

// TracesSampleRate samples everything outside production
func (c *Config) TracesSampleRate() float64 {
	if c.Environment == "production" {
		return 0.1
	}
	return 1.0
}
