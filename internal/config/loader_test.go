package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  port: 9090
  mode: debug
pipeline:
  max_formula_length: 20
  extra_junk_words: [ELSEVIER, ARXIV]
  builtin_formulas:
    H2: hydrogen
curation:
  source: file
  path: ./curation.csv
storage:
  input_root: /data/intermediate
  sinks: [fs, sqlite]
sqlite:
  path: /data/gastm.db
worker:
  concurrency: 8
  item_timeout: 30s
log:
  level: debug
  format: console
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gastm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_File(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 20, cfg.Pipeline.MaxFormulaLength)
	assert.Equal(t, []string{"ELSEVIER", "ARXIV"}, cfg.Pipeline.ExtraJunkWords)
	assert.Equal(t, "hydrogen", cfg.Pipeline.BuiltinFormulas["h2"])
	assert.Equal(t, "/data/intermediate", cfg.Storage.OutputRoot)
	assert.Equal(t, []string{"fs", "sqlite"}, cfg.Storage.Sinks)
	assert.Equal(t, 30*time.Second, cfg.Worker.ItemTimeout)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_InvalidValue(t *testing.T) {
	_, err := Load(writeConfig(t, "log:\n  level: loud\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("GASTM_SERVER_PORT", "7070")
	t.Setenv("GASTM_STORAGE_SINKS", "fs,postgres")
	t.Setenv("GASTM_DATABASE_USER", "consolidator")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, []string{"fs", "postgres"}, cfg.Storage.Sinks)
	assert.Equal(t, "consolidator", cfg.Database.User)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("GASTM_STORAGE_INPUT_ROOT", "/corpus")
	t.Setenv("GASTM_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("GASTM_REDIS_ENABLED", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/corpus", cfg.Storage.InputRoot)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, DefaultRedisAddr, cfg.Redis.Addr)
}

func TestMustLoad_Panics(t *testing.T) {
	assert.Panics(t, func() { MustLoad(filepath.Join(t.TempDir(), "absent.yaml")) })
}

func TestWatch_ReportsChanges(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	changes := make(chan *Config, 4)
	errs := make(chan error, 4)
	require.NoError(t, Watch(path,
		func(c *Config) {
			select {
			case changes <- c:
			default:
			}
		},
		func(err error) {
			select {
			case errs <- err:
			default:
			}
		}))

	time.Sleep(100 * time.Millisecond)
	updated := []byte("server:\n  port: 9191\n")
	require.NoError(t, os.WriteFile(path, updated, 0o644))

	select {
	case cfg := <-changes:
		assert.Equal(t, 9191, cfg.Server.Port)
	case err := <-errs:
		t.Fatalf("unexpected reload error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("no config change observed")
	}
}

func TestWatch_MissingFile(t *testing.T) {
	err := Watch(filepath.Join(t.TempDir(), "absent.yaml"), func(*Config) {}, nil)
	assert.Error(t, err)
}
