// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Engine, Search, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Engine   EngineConfig   `yaml:"engine"`
	Search   SearchConfig   `yaml:"search"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int             `yaml:"port"`
	ReadTimeout     time.Duration   `yaml:"readTimeout"`
	WriteTimeout    time.Duration   `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration   `yaml:"shutdownTimeout"`
	RequestTimeout  time.Duration   `yaml:"requestTimeout"`
	CORSOrigins     []string        `yaml:"corsOrigins"`
	RateLimit       RateLimitConfig `yaml:"rateLimit"`
}

// RateLimitConfig bounds requests per client IP.
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// PostgresConfig holds connection parameters for the document store used to
// rebuild the index on cold start.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings. Every process joins its
// own consumer group named ConsumerGroupPrefix-<uuid>.
type KafkaConfig struct {
	Enabled             bool        `yaml:"enabled"`
	Brokers             []string    `yaml:"brokers"`
	ConsumerGroupPrefix string      `yaml:"consumerGroupPrefix"`
	Topics              KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	DocumentChanges string `yaml:"documentChanges"`
}

// RedisConfig holds connection parameters for the optional remote cache tier.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// EngineConfig controls analysis, index sharding, scoring, autocomplete and
// the hot-path caches.
type EngineConfig struct {
	IndexShards       int         `yaml:"indexShards"`
	MinTermLength     int         `yaml:"minTermLength"`
	Stemmer           string      `yaml:"stemmer"`
	StopWords         []string    `yaml:"stopWords"`
	DisableStopWords  bool        `yaml:"disableStopWords"`
	Scorer            string      `yaml:"scorer"`
	BM25K1            float64     `yaml:"bm25K1"`
	BM25B             float64     `yaml:"bm25B"`
	TrieMaxTerms      int         `yaml:"trieMaxTerms"`
	TrieMaxWeight     int64       `yaml:"trieMaxWeight"`
	ReinforceOnSearch bool        `yaml:"reinforceOnSearch"`
	RebuildWorkers    int         `yaml:"rebuildWorkers"`
	Cache             CacheConfig `yaml:"cache"`
}

// CacheConfig bounds the hot-path caches by entry count and TTL.
type CacheConfig struct {
	Capacity      int           `yaml:"capacity"`
	SearchTTL     time.Duration `yaml:"searchTTL"`
	SuggestTTL    time.Duration `yaml:"suggestTTL"`
	RemoteEnabled bool          `yaml:"remoteEnabled"`
}

// SearchConfig controls request-level query limits and timeouts. Searches
// slower than SlowQueryThreshold log their span tree; zero disables that.
type SearchConfig struct {
	MaxResults         int           `yaml:"maxResults"`
	DefaultLimit       int           `yaml:"defaultLimit"`
	Timeout            time.Duration `yaml:"timeout"`
	SlowQueryThreshold time.Duration `yaml:"slowQueryThreshold"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Engine.Validate(); err != nil {
		return nil, fmt.Errorf("validating engine config: %w", err)
	}
	return cfg, nil
}

// DefaultEngineConfig returns the engine settings used when nothing is
// configured.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		IndexShards:       32,
		MinTermLength:     1,
		Stemmer:           "none",
		Scorer:            "tfidf",
		BM25K1:            1.2,
		BM25B:             0.75,
		TrieMaxTerms:      1_000_000,
		TrieMaxWeight:     1 << 40,
		ReinforceOnSearch: true,
		RebuildWorkers:    4,
		Cache: CacheConfig{
			Capacity:   10_000,
			SearchTTL:  60 * time.Second,
			SuggestTTL: 30 * time.Second,
		},
	}
}

// Validate rejects engine settings the engine cannot run with.
func (e EngineConfig) Validate() error {
	if e.IndexShards <= 0 {
		return fmt.Errorf("indexShards must be positive, got %d", e.IndexShards)
	}
	if e.MinTermLength < 1 {
		return fmt.Errorf("minTermLength must be at least 1, got %d", e.MinTermLength)
	}
	switch e.Stemmer {
	case "", "none", "light", "snowball":
	default:
		return fmt.Errorf("unknown stemmer %q", e.Stemmer)
	}
	switch e.Scorer {
	case "", "tfidf", "bm25":
	default:
		return fmt.Errorf("unknown scorer %q", e.Scorer)
	}
	if e.TrieMaxTerms <= 0 || e.TrieMaxWeight <= 0 {
		return fmt.Errorf("trie bounds must be positive")
	}
	if e.Cache.Capacity <= 0 {
		return fmt.Errorf("cache capacity must be positive, got %d", e.Cache.Capacity)
	}
	return nil
}

// defaultConfig returns a Config with production-ready defaults for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RequestTimeout:  10 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimit: RateLimitConfig{
				Requests: 600,
				Window:   time.Minute,
			},
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "searchcore",
			User:            "searchcore",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:             []string{"localhost:9092"},
			ConsumerGroupPrefix: "searchcore",
			Topics: KafkaTopics{
				DocumentChanges: "document-changes",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		Engine: DefaultEngineConfig(),
		Search: SearchConfig{
			MaxResults:   100,
			DefaultLimit:       10,
			Timeout:            2 * time.Second,
			SlowQueryThreshold: 500 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads SP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SP_RATELIMIT_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Server.RateLimit.Enabled = b
		}
	}
	if v := os.Getenv("SP_POSTGRES_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Postgres.Enabled = b
		}
	}
	if v := os.Getenv("SP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("SP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SP_KAFKA_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Kafka.Enabled = b
		}
	}
	if v := os.Getenv("SP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SP_ENGINE_SCORER"); v != "" {
		cfg.Engine.Scorer = v
	}
	if v := os.Getenv("SP_ENGINE_STEMMER"); v != "" {
		cfg.Engine.Stemmer = v
	}
	if v := os.Getenv("SP_CACHE_REMOTE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Engine.Cache.RemoteEnabled = b
		}
	}
	if v := os.Getenv("SP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
