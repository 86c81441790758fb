package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/GasTM-Consolidator/internal/config"
)

func TestNewDefaultConfig_Validates(t *testing.T) {
	t.Parallel()
	cfg := config.NewDefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, config.DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, []string{"fs"}, cfg.Storage.Sinks)
	assert.Equal(t, cfg.Storage.InputRoot, cfg.Storage.OutputRoot)
	assert.Equal(t, "gastm.raw-counts", cfg.Kafka.InputTopic)
	assert.Equal(t, "gastm.document-counts", cfg.Kafka.OutputTopic)
	assert.False(t, cfg.Redis.Enabled)
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	cfg.Server.Port = 9999
	cfg.Storage.InputRoot = "/data/in"
	cfg.Worker.Concurrency = 1
	config.ApplyDefaults(cfg)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "/data/in", cfg.Storage.OutputRoot)
	assert.Equal(t, 1, cfg.Worker.Concurrency)

	config.ApplyDefaults(nil)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"port", func(c *config.Config) { c.Server.Port = 70000 }, "server.port"},
		{"mode", func(c *config.Config) { c.Server.Mode = "production" }, "server.mode"},
		{"max length", func(c *config.Config) { c.Pipeline.MaxFormulaLength = -1 }, "pipeline.max_formula_length"},
		{"curation source", func(c *config.Config) { c.Curation.Source = "s3" }, "curation.source"},
		{"curation required path", func(c *config.Config) { c.Curation.Required = true }, "curation.path"},
		{"curation none required", func(c *config.Config) {
			c.Curation.Source = "none"
			c.Curation.Required = true
		}, "conflicts"},
		{"curation minio key", func(c *config.Config) { c.Curation.Source = "minio" }, "curation.object_key"},
		{"storage source", func(c *config.Config) { c.Storage.Source = "ftp" }, "storage.source"},
		{"minio bucket", func(c *config.Config) {
			c.Storage.Source = "minio"
			c.MinIO.Bucket = ""
		}, "minio.bucket"},
		{"sink", func(c *config.Config) { c.Storage.Sinks = []string{"mongo"} }, "storage.sinks"},
		{"sqlite path", func(c *config.Config) {
			c.Storage.Sinks = []string{"sqlite"}
			c.SQLite.Path = ""
		}, "sqlite.path"},
		{"postgres host", func(c *config.Config) {
			c.Storage.Sinks = []string{"postgres"}
			c.Database.Host = ""
		}, "database.host"},
		{"redis addr", func(c *config.Config) {
			c.Redis.Enabled = true
			c.Redis.Addr = ""
		}, "redis.addr"},
		{"worker", func(c *config.Config) { c.Worker.Concurrency = 0 }, "worker.concurrency"},
		{"log level", func(c *config.Config) { c.Log.Level = "trace" }, "log.level"},
		{"log format", func(c *config.Config) { c.Log.Format = "text" }, "log.format"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.NewDefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestConfig_Validate_AdapterSectionsIgnoredWhenUnused(t *testing.T) {
	t.Parallel()
	cfg := config.NewDefaultConfig()
	cfg.Database.Host = ""
	cfg.Redis.Addr = ""
	assert.NoError(t, cfg.Validate())
}

func TestConfig_HelperMethods(t *testing.T) {
	t.Parallel()
	cfg := config.NewDefaultConfig()
	cfg.Storage.Sinks = []string{"fs", "sqlite"}
	assert.True(t, cfg.HasSink("sqlite"))
	assert.False(t, cfg.HasSink("postgres"))

	cfg.Database.Password = "pw"
	lc := cfg.Log.Logging()
	assert.Equal(t, cfg.Log.Level, lc.Level)
	assert.Equal(t, cfg.Log.Format, lc.Format)
}
