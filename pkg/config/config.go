package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Cache index update modes. Streaming mode upserts vectors into Redis as
// entries are stored; batch mode stages vectors in the metadata store and
// rebuilds the in-memory index periodically.
const (
	CacheModeStreaming = "streaming"
	CacheModeBatch     = "batch"
)

// Config holds all configuration for the assistant.
// Values come from config.yaml with environment variable overrides.
// Secrets (passwords, API keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"0.0.0.0"`
	Port     string `yaml:"port" env:"PORT" env-default:"8000"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Authentication configuration
	Auth AuthConfig `yaml:"auth"`

	// Database configuration (PostgreSQL: conversations, turns, cache metadata)
	Database DatabaseConfig `yaml:"database"`

	// Redis configuration (streaming vector index)
	Redis RedisConfig `yaml:"redis"`

	// LLM provider configuration
	LLM LLMConfig `yaml:"llm"`

	// Semantic cache configuration
	Cache CacheConfig `yaml:"cache"`

	// Warehouse data-service configuration
	Warehouse WarehouseConfig `yaml:"warehouse"`
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	// EnableVerification controls whether bearer token signatures are
	// validated. The upstream gateway already verifies tokens, so local
	// deployments typically run with this off.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"false"`

	// SigningKey is the HMAC key used when verification is enabled.
	SigningKey string `yaml:"-" env:"AUTH_SIGNING_KEY"` // Secret - not in YAML
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"assistant"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"assistant"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`

	// Pool recycling knobs. Zero keeps the pgx defaults.
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" env:"PGMAX_CONN_LIFETIME" env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"PGMAX_CONN_IDLE_TIME" env-default:"30m"`
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration for the streaming vector index.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// LLMConfig holds LLM provider endpoints and model names.
type LLMConfig struct {
	// Provider selects the chat completion backend: "openai" (any
	// OpenAI-compatible endpoint) or "anthropic".
	Provider string `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`

	Endpoint string `yaml:"endpoint" env:"LLM_ENDPOINT" env-default:"https://api.openai.com/v1"`
	Model    string `yaml:"model" env:"LLM_MODEL" env-default:"gpt-4o-mini"`
	// ProModel is used for SQL generation, which benefits from a stronger
	// model than intent classification and curation.
	ProModel string `yaml:"pro_model" env:"LLM_PRO_MODEL" env-default:"gpt-4o"`
	APIKey   string `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML

	// Embeddings are always served by an OpenAI-compatible endpoint.
	EmbeddingEndpoint string `yaml:"embedding_endpoint" env:"LLM_EMBEDDING_ENDPOINT" env-default:""`
	EmbeddingModel    string `yaml:"embedding_model" env:"LLM_EMBEDDING_MODEL" env-default:"text-embedding-3-small"`
}

// CacheConfig holds semantic cache tuning.
type CacheConfig struct {
	// Mode is "streaming" or "batch". See pkg/cache.
	Mode string `yaml:"mode" env:"CACHE_MODE" env-default:"streaming"`

	// DistanceThreshold is the maximum cosine distance for a nearest
	// neighbor to count as a hit. Lower is closer; 0 is identical.
	DistanceThreshold float64 `yaml:"distance_threshold" env:"CACHE_DISTANCE_THRESHOLD" env-default:"0.4"`

	// TTL is how long a cached answer stays eligible for retrieval.
	TTL time.Duration `yaml:"ttl" env:"CACHE_TTL" env-default:"24h"`

	// Neighbors is how many nearest neighbors to consider per lookup.
	Neighbors int `yaml:"neighbors" env:"CACHE_NEIGHBORS" env-default:"3"`

	// PurgeInterval is how often the janitor sweeps expired entries.
	PurgeInterval time.Duration `yaml:"purge_interval" env:"CACHE_PURGE_INTERVAL" env-default:"1h"`
}

// WarehouseConfig holds the external data-service connection settings.
type WarehouseConfig struct {
	URI     string        `yaml:"uri" env:"DATA_SERVICE_URI" env-default:"http://data-service:8001"`
	Timeout time.Duration `yaml:"timeout" env:"DATA_SERVICE_TIMEOUT" env-default:"60s"`

	// Local skips the live schema fetch and serves the built-in schema
	// constant instead.
	Local bool `yaml:"local" env:"LOCAL" env-default:"false"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints that tags cannot express.
func (c *Config) Validate() error {
	switch c.Cache.Mode {
	case CacheModeStreaming, CacheModeBatch:
	default:
		return fmt.Errorf("invalid cache mode %q: must be %q or %q",
			c.Cache.Mode, CacheModeStreaming, CacheModeBatch)
	}

	if c.Cache.DistanceThreshold < 0 || c.Cache.DistanceThreshold > 2 {
		return fmt.Errorf("cache distance threshold %f out of range [0, 2]", c.Cache.DistanceThreshold)
	}

	if c.Cache.Neighbors < 1 {
		return fmt.Errorf("cache neighbors must be at least 1, got %d", c.Cache.Neighbors)
	}

	if c.Cache.Mode == CacheModeStreaming && c.Redis.Host == "" {
		return fmt.Errorf("streaming cache mode requires a redis host")
	}

	switch c.LLM.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("invalid llm provider %q: must be \"openai\" or \"anthropic\"", c.LLM.Provider)
	}

	return nil
}

// EffectiveEmbeddingEndpoint returns the embedding endpoint, falling back
// to the chat endpoint when a dedicated one is not configured.
func (c *LLMConfig) EffectiveEmbeddingEndpoint() string {
	if c.EmbeddingEndpoint != "" {
		return c.EmbeddingEndpoint
	}
	return c.Endpoint
}
