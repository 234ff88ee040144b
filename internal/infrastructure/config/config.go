// Package config loads service configuration from a YAML file, a .env file and the environment.
// Precedence, lowest first: defaults, YAML file, environment (COURSEBRIDGE_*).
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable the service reads.
const EnvPrefix = "COURSEBRIDGE_"

// Config is the full service configuration.
type Config struct {
	ListenAddr     string        `yaml:"listen-addr" env:"LISTEN_ADDR" validate:"required"`
	RequestTimeout time.Duration `yaml:"request-timeout" env:"REQUEST_TIMEOUT" validate:"gt=0"`
	LogLevel       string        `yaml:"log-level" env:"LOG_LEVEL"`
	LogFormat      string        `yaml:"log-format" env:"LOG_FORMAT" validate:"oneof=text json"`

	MaxRetries     int           `yaml:"max-retries" env:"MAX_RETRIES" validate:"gte=0"`
	InitialBackoff time.Duration `yaml:"initial-backoff" env:"INITIAL_BACKOFF" validate:"gt=0"`
	MaxBackoff     time.Duration `yaml:"max-backoff" env:"MAX_BACKOFF" validate:"gtefield=InitialBackoff"`

	OllamaURL           string `yaml:"ollama-url" env:"OLLAMA_URL" validate:"required,url"`
	EmbeddingModel      string `yaml:"embedding-model" env:"EMBEDDING_MODEL" validate:"required"`
	EmbeddingDimensions int    `yaml:"embedding-dimensions" env:"EMBEDDING_DIMENSIONS" validate:"gt=0"`
	ExtractionModel     string `yaml:"extraction-model" env:"EXTRACTION_MODEL" validate:"required"`

	IndexBackend  string `yaml:"index-backend" env:"INDEX_BACKEND" validate:"oneof=memory sqlite opensearch"`
	IndexEndpoint string `yaml:"index-endpoint" env:"INDEX_ENDPOINT" validate:"required_if=IndexBackend opensearch"`
	IndexName     string `yaml:"index-name" env:"INDEX_NAME" validate:"required"`
	IndexUsername string `yaml:"index-username" env:"INDEX_USERNAME"`
	IndexPassword string `yaml:"index-password" env:"INDEX_PASSWORD"`
	DataPath      string `yaml:"data-path" env:"DATA_PATH"`
	SearchK       int    `yaml:"search-k" env:"SEARCH_K" validate:"gt=0"`
	CourseCatalog string `yaml:"course-catalog" env:"COURSE_CATALOG"`

	AgentRegion   string        `yaml:"agent-region" env:"AGENT_REGION" validate:"required"`
	AgentEndpoint string        `yaml:"agent-endpoint" env:"AGENT_ENDPOINT" validate:"omitempty,url"`
	AgentID       string        `yaml:"agent-id" env:"AGENT_ID"`
	AgentAliasID  string        `yaml:"agent-alias-id" env:"AGENT_ALIAS_ID"`
	AgentTimeout  time.Duration `yaml:"agent-timeout" env:"AGENT_TIMEOUT" validate:"gt=0"`
	EnableTrace   bool          `yaml:"enable-trace" env:"ENABLE_TRACE"`

	GraphURL          string  `yaml:"graph-url" env:"GRAPH_URL" validate:"required,url"`
	GraphAPIVersion   string  `yaml:"graph-api-version" env:"GRAPH_API_VERSION" validate:"required"`
	OriginationNumber string  `yaml:"origination-number" env:"ORIGINATION_NUMBER"`
	WhatsAppToken     string  `yaml:"whatsapp-token" env:"WHATSAPP_TOKEN"`
	SendRate          float64 `yaml:"send-rate" env:"SEND_RATE" validate:"gt=0"`

	TemplateName     string `yaml:"template-name" env:"TEMPLATE_NAME" validate:"required"`
	TemplateLanguage string `yaml:"template-language" env:"TEMPLATE_LANGUAGE" validate:"required"`
	CarouselCatalog  string `yaml:"carousel-catalog" env:"CAROUSEL_CATALOG"`

	ArchiveBackend string   `yaml:"archive-backend" env:"ARCHIVE_BACKEND" validate:"oneof=none file kafka"`
	ArchiveDir     string   `yaml:"archive-dir" env:"ARCHIVE_DIR" validate:"required_if=ArchiveBackend file"`
	KafkaBrokers   []string `yaml:"kafka-brokers" env:"KAFKA_BROKERS" envSeparator:"," validate:"required_if=ArchiveBackend kafka"`
	KafkaTopic     string   `yaml:"kafka-topic" env:"KAFKA_TOPIC" validate:"required_if=ArchiveBackend kafka"`

	RedisAddr     string        `yaml:"redis-addr" env:"REDIS_ADDR"`
	RedisPassword string        `yaml:"redis-password" env:"REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis-db" env:"REDIS_DB" validate:"gte=0"`
	DedupeTTL     time.Duration `yaml:"dedupe-ttl" env:"DEDUPE_TTL" validate:"gt=0"`

	Workers int `yaml:"workers" env:"WORKERS" validate:"gte=1"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		ListenAddr:     ":8080",
		RequestTimeout: 60 * time.Second,
		LogLevel:       "info",
		LogFormat:      "text",

		MaxRetries:     5,
		InitialBackoff: time.Second,
		MaxBackoff:     32 * time.Second,

		OllamaURL:           "http://localhost:11434",
		EmbeddingModel:      "nomic-embed-text",
		EmbeddingDimensions: 768,
		ExtractionModel:     "llama3.2",

		IndexBackend: "memory",
		IndexName:    "courses",
		DataPath:     "./data",
		SearchK:      10,

		AgentRegion:  "us-east-1",
		AgentTimeout: 120 * time.Second,
		EnableTrace:  true,

		GraphURL:        "https://graph.facebook.com",
		GraphAPIVersion: "v20.0",
		SendRate:        20,

		TemplateName:     "course_catalog_v10",
		TemplateLanguage: "en",

		ArchiveBackend: "none",
		KafkaTopic:     "whatsapp.statuses",
		DedupeTTL:      24 * time.Hour,

		Workers: 1,
	}
}

// Load reads .env (if present), then the YAML file at path (if non-empty),
// then COURSEBRIDGE_* environment variables, and validates the result.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
