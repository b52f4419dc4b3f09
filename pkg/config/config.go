// Package config loads and validates application configuration from YAML
// files with environment-variable overrides. It provides typed structs for
// every subsystem (Store, Ingest, Query, Server, Redis, Kafka, etc.).
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
	Store   StoreConfig   `yaml:"store"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Query   QueryConfig   `yaml:"query"`
	Server  ServerConfig  `yaml:"server"`
	Redis   RedisConfig   `yaml:"redis"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// StoreConfig selects the relational engine backing the index and holds the
// connection parameters for it. Driver is either "sqlite3" or "postgres".
type StoreConfig struct {
	Driver          string        `yaml:"driver"`
	Path            string        `yaml:"path"`
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

// DSN returns the data source name for the configured driver.
func (s StoreConfig) DSN() string {
	if s.Driver == "sqlite3" {
		return s.Path
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		s.Host, s.Port, s.User, s.Password, s.Database, s.SSLMode,
	)
}

// IngestConfig controls the ingestion pipeline: where token-count files and
// source documents live, the token filtering thresholds, and the failure
// policy for a batch run.
type IngestConfig struct {
	TokenDir        string `yaml:"tokenDir"`
	ResourceDir     string `yaml:"resourceDir"`
	ResourceExt     string `yaml:"resourceExt"`
	GlobalTermsFile string `yaml:"globalTermsFile"`
	MaxTokenLength  int    `yaml:"maxTokenLength"`
	MinTokenCount   int    `yaml:"minTokenCount"`
	Workers         int    `yaml:"workers"`
	// FailurePolicy is "abort" (first bad document fails the run) or
	// "continue" (bad documents are recorded and skipped).
	FailurePolicy string `yaml:"failurePolicy"`
}

// QueryConfig controls query-time filtering thresholds and result limits.
// Queries are short, so the minimum-count gate is looser than at ingestion.
type QueryConfig struct {
	MaxTokenLength int `yaml:"maxTokenLength"`
	MinTokenCount  int `yaml:"minTokenCount"`
	TopN           int `yaml:"topN"`
	MaxResults     int `yaml:"maxResults"`
}

// ServerConfig holds HTTP server settings for the search service.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// RedisConfig holds Redis connection and query-cache parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds Kafka broker and topic settings for run and search
// event publishing. Disabled by default; the indexer is a batch tool first.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	RunEvents    string `yaml:"runEvents"`
	SearchEvents string `yaml:"searchEvents"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
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
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaultConfig returns a Config mirroring the thresholds the index was
// originally tuned with: strict gates for documents, loose gates for queries.
func defaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Driver:          "sqlite3",
			Path:            "data/lexindex.db",
			Host:            "localhost",
			Port:            5432,
			Database:        "lexindex",
			User:            "lexindex",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Ingest: IngestConfig{
			TokenDir:        "data/token_json",
			ResourceDir:     "data/resources",
			ResourceExt:     ".pdf",
			GlobalTermsFile: "data/global_word_freq.json",
			MaxTokenLength:  14,
			MinTokenCount:   3,
			Workers:         4,
			FailurePolicy:   "abort",
		},
		Query: QueryConfig{
			MaxTokenLength: 16,
			MinTokenCount:  1,
			TopN:           100,
			MaxResults:     500,
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Kafka: KafkaConfig{
			Enabled:       false,
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "lexindex-group",
			Topics: KafkaTopics{
				RunEvents:    "lexindex.run-events",
				SearchEvents: "lexindex.search-events",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported store driver %q (want sqlite3 or postgres)", c.Store.Driver)
	}
	switch c.Ingest.FailurePolicy {
	case "abort", "continue":
	default:
		return fmt.Errorf("unsupported failure policy %q (want abort or continue)", c.Ingest.FailurePolicy)
	}
	if c.Ingest.MaxTokenLength <= 0 {
		return fmt.Errorf("ingest.maxTokenLength must be positive, got %d", c.Ingest.MaxTokenLength)
	}
	if c.Query.MaxTokenLength <= 0 {
		return fmt.Errorf("query.maxTokenLength must be positive, got %d", c.Query.MaxTokenLength)
	}
	if c.Query.TopN <= 0 {
		return fmt.Errorf("query.topN must be positive, got %d", c.Query.TopN)
	}
	return nil
}

// applyEnvOverrides reads LX_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LX_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("LX_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("LX_STORE_HOST"); v != "" {
		cfg.Store.Host = v
	}
	if v := os.Getenv("LX_STORE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Store.Port = port
		}
	}
	if v := os.Getenv("LX_STORE_DATABASE"); v != "" {
		cfg.Store.Database = v
	}
	if v := os.Getenv("LX_STORE_USER"); v != "" {
		cfg.Store.User = v
	}
	if v := os.Getenv("LX_STORE_PASSWORD"); v != "" {
		cfg.Store.Password = v
	}
	if v := os.Getenv("LX_STORE_SSLMODE"); v != "" {
		cfg.Store.SSLMode = v
	}
	if v := os.Getenv("LX_INGEST_TOKEN_DIR"); v != "" {
		cfg.Ingest.TokenDir = v
	}
	if v := os.Getenv("LX_INGEST_RESOURCE_DIR"); v != "" {
		cfg.Ingest.ResourceDir = v
	}
	if v := os.Getenv("LX_INGEST_FAILURE_POLICY"); v != "" {
		cfg.Ingest.FailurePolicy = v
	}
	if v := os.Getenv("LX_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("LX_REDIS_ADDR"); v != "" {
		cfg.Redis.Enabled = true
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("LX_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("LX_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Enabled = true
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("LX_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LX_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
