package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix of every setting.
const envPrefix = "GASTM"

// scalarKeys are registered with viper so that GASTM_* variables override
// them even when the key is absent from the file.  viper only consults the
// environment for keys it already knows about during Unmarshal.
var scalarKeys = []string{
	"server.port", "server.mode", "server.read_timeout", "server.write_timeout",
	"server.max_body_size", "server.shutdown_timeout",
	"pipeline.max_formula_length",
	"curation.source", "curation.path", "curation.object_key", "curation.watch", "curation.required",
	"storage.source", "storage.input_root", "storage.output_root", "storage.write_rejections",
	"database.host", "database.port", "database.user", "database.password", "database.db_name",
	"database.ssl_mode", "database.max_conns", "database.min_conns", "database.migration_path",
	"sqlite.path", "sqlite.busy_timeout",
	"redis.enabled", "redis.addr", "redis.password", "redis.db", "redis.pool_size",
	"redis.default_ttl", "redis.key_prefix",
	"kafka.group_id", "kafka.input_topic", "kafka.output_topic", "kafka.dead_letter_topic",
	"kafka.max_retries", "kafka.retry_backoff",
	"kafka.sasl_mechanism", "kafka.sasl_username", "kafka.sasl_password", "kafka.tls_enabled",
	"minio.endpoint", "minio.access_key", "minio.secret_key", "minio.bucket",
	"minio.prefix", "minio.region", "minio.use_ssl",
	"worker.concurrency", "worker.item_timeout", "worker.max_retries", "worker.retry_delay",
	"log.level", "log.format",
	"metrics.enabled", "metrics.namespace", "metrics.path",
}

// listKeys take comma-separated values from the environment; viper's
// default decode hook splits them.
var listKeys = []string{"kafka.brokers", "storage.sinks", "pipeline.extra_junk_words"}

// newViper builds a Viper with YAML files, the GASTM_ env prefix and "." to
// "_" key mapping, so "database.host" reads GASTM_DATABASE_HOST.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, k := range scalarKeys {
		_ = v.BindEnv(k)
	}
	for _, k := range listKeys {
		_ = v.BindEnv(k)
	}
	return v
}

// Load reads the YAML file at configPath, applies GASTM_* overrides and
// defaults, and validates.  An empty path is the same as LoadFromEnv.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return LoadFromEnv()
	}
	v := newViper()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}
	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config from GASTM_* variables and defaults only.
//
//	GASTM_<SECTION>_<FIELD>   e.g.  GASTM_STORAGE_INPUT_ROOT, GASTM_KAFKA_BROKERS=a:9092,b:9092
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}
	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// Watch re-reads configPath whenever it changes and passes the new Config to
// onChange.  A change that fails to parse or validate goes to onError (if
// non-nil) and onChange is not called.  Watch does not block.
func Watch(configPath string, onChange func(*Config), onError func(error)) error {
	v := newViper()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// MustLoad wraps Load and panics on error.  For main() only.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
