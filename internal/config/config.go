// Package config defines the configuration of the GasTM consolidator.  Only
// plain data types and validation live here; loading is in loader.go.
package config

import (
	"fmt"
	"time"

	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/monitoring/logging"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

// CORSConfig configures cross-origin access to the HTTP API.
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// PipelineConfig overrides the classifier and built-in resolver tables.
// Empty lists keep the compiled-in defaults.
type PipelineConfig struct {
	JunkWords         []string          `mapstructure:"junk_words"`
	ExtraJunkWords    []string          `mapstructure:"extra_junk_words"`
	ReactionGlyphs    []string          `mapstructure:"reaction_glyphs"`
	IrrelevantWords   []string          `mapstructure:"irrelevant_words"`
	IrrelevantSymbols []string          `mapstructure:"irrelevant_symbols"`
	MaxFormulaLength  int               `mapstructure:"max_formula_length"`
	BuiltinFormulas   map[string]string `mapstructure:"builtin_formulas"`
}

// CurationConfig locates the curated mapping table.
type CurationConfig struct {
	Source    string `mapstructure:"source"` // "file" | "minio" | "none"
	Path      string `mapstructure:"path"`
	ObjectKey string `mapstructure:"object_key"`
	Watch     bool   `mapstructure:"watch"`
	// Required makes a missing table fatal instead of degrading resolution.
	Required bool `mapstructure:"required"`
}

// StorageConfig selects where raw counts are read and results are written.
type StorageConfig struct {
	Source          string   `mapstructure:"source"` // "localfs" | "minio"
	InputRoot       string   `mapstructure:"input_root"`
	OutputRoot      string   `mapstructure:"output_root"`
	Sinks           []string `mapstructure:"sinks"` // "fs" | "minio" | "sqlite" | "postgres" | "kafka"
	WriteRejections bool     `mapstructure:"write_rejections"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	// MigrationPath is a directory of migration files; empty uses the set
	// embedded in the binary.
	MigrationPath   string        `mapstructure:"migration_path"`
}

// SQLiteConfig holds the embedded result store parameters.
type SQLiteConfig struct {
	Path        string        `mapstructure:"path"`
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`
}

// RedisConfig holds result cache parameters.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds document queue parameters.
type KafkaConfig struct {
	Brokers         []string      `mapstructure:"brokers"`
	GroupID         string        `mapstructure:"group_id"`
	InputTopic      string        `mapstructure:"input_topic"`
	OutputTopic     string        `mapstructure:"output_topic"`
	DeadLetterTopic string        `mapstructure:"dead_letter_topic"`
	MinBytes        int           `mapstructure:"min_bytes"`
	MaxBytes        int           `mapstructure:"max_bytes"`
	MaxWait         time.Duration `mapstructure:"max_wait"`
	CommitInterval  time.Duration `mapstructure:"commit_interval"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
	SASLMechanism   string        `mapstructure:"sasl_mechanism"`
	SASLUsername    string        `mapstructure:"sasl_username"`
	SASLPassword    string        `mapstructure:"sasl_password"`
	TLSEnabled      bool          `mapstructure:"tls_enabled"`
}

// MinIOConfig holds object-storage parameters for the corpus.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// WorkerConfig holds document fan-out parameters.
type WorkerConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	ItemTimeout time.Duration `mapstructure:"item_timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level       string   `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format      string   `mapstructure:"format"` // "json" | "console"
	OutputPaths []string `mapstructure:"output_paths"`
}

// Logging converts to the logger construction parameters.
func (l LogConfig) Logging() logging.LogConfig {
	return logging.LogConfig{Level: l.Level, Format: l.Format, OutputPaths: l.OutputPaths}
}

// MetricsConfig holds Prometheus exposition parameters.
type MetricsConfig struct {
	Enabled              bool   `mapstructure:"enabled"`
	Namespace            string `mapstructure:"namespace"`
	Path                 string `mapstructure:"path"`
	EnableGoMetrics      bool   `mapstructure:"enable_go_metrics"`
	EnableProcessMetrics bool   `mapstructure:"enable_process_metrics"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration shared by the CLI, API server and worker.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Curation CurationConfig `mapstructure:"curation"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// HasSink reports whether name is among the configured result sinks.
func (c *Config) HasSink(name string) bool {
	for _, s := range c.Storage.Sinks {
		if s == name {
			return true
		}
	}
	return false
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate checks the fully defaulted Config and returns the first problem.
// Adapter sections are only checked when the adapter is selected.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	if c.Pipeline.MaxFormulaLength < 0 {
		return fmt.Errorf("config: pipeline.max_formula_length must be ≥ 0, got %d", c.Pipeline.MaxFormulaLength)
	}

	switch c.Curation.Source {
	case "file":
		if c.Curation.Required && c.Curation.Path == "" {
			return fmt.Errorf("config: curation.path is required when curation.required is set")
		}
	case "minio":
		if c.Curation.ObjectKey == "" {
			return fmt.Errorf("config: curation.object_key is required for the minio source")
		}
	case "none":
		if c.Curation.Required {
			return fmt.Errorf("config: curation.required conflicts with curation.source none")
		}
	default:
		return fmt.Errorf("config: curation.source %q is invalid; expected file|minio|none", c.Curation.Source)
	}

	switch c.Storage.Source {
	case "localfs":
	case "minio":
		if c.MinIO.Endpoint == "" || c.MinIO.Bucket == "" {
			return fmt.Errorf("config: minio.endpoint and minio.bucket are required for the minio source")
		}
	default:
		return fmt.Errorf("config: storage.source %q is invalid; expected localfs|minio", c.Storage.Source)
	}
	if c.Curation.Source == "minio" && (c.MinIO.Endpoint == "" || c.MinIO.Bucket == "") {
		return fmt.Errorf("config: minio.endpoint and minio.bucket are required for minio curation")
	}

	for _, s := range c.Storage.Sinks {
		switch s {
		case "fs":
		case "minio":
			if c.MinIO.Endpoint == "" || c.MinIO.Bucket == "" {
				return fmt.Errorf("config: minio.endpoint and minio.bucket are required for the minio sink")
			}
		case "sqlite":
			if c.SQLite.Path == "" {
				return fmt.Errorf("config: sqlite.path is required for the sqlite sink")
			}
		case "postgres":
			if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
				return fmt.Errorf("config: database.host, database.user and database.db_name are required for the postgres sink")
			}
			if c.Database.MaxConns < 1 {
				return fmt.Errorf("config: database.max_conns must be ≥ 1, got %d", c.Database.MaxConns)
			}
		case "kafka":
			if len(c.Kafka.Brokers) == 0 || c.Kafka.OutputTopic == "" {
				return fmt.Errorf("config: kafka.brokers and kafka.output_topic are required for the kafka sink")
			}
		default:
			return fmt.Errorf("config: storage.sinks entry %q is invalid; expected fs|minio|sqlite|postgres|kafka", s)
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			return fmt.Errorf("config: redis.addr is required when redis is enabled")
		}
		if c.Redis.DB < 0 {
			return fmt.Errorf("config: redis.db must be ≥ 0, got %d", c.Redis.DB)
		}
	}

	switch c.Kafka.SASLMechanism {
	case "", "PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512":
	default:
		return fmt.Errorf("config: kafka.sasl_mechanism %q is invalid; expected PLAIN|SCRAM-SHA-256|SCRAM-SHA-512", c.Kafka.SASLMechanism)
	}
	if c.Kafka.MaxRetries < 0 {
		return fmt.Errorf("config: kafka.max_retries must be ≥ 0, got %d", c.Kafka.MaxRetries)
	}

	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("config: worker.concurrency must be ≥ 1, got %d", c.Worker.Concurrency)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}
