// Package bootstrap assembles the consolidation service and its adapters from
// a Config.  The CLI, the API server and the queue worker share it so that a
// given configuration file behaves the same way in every binary.
package bootstrap

import (
	"context"
	"fmt"
	"sync"

	"github.com/turtacn/GasTM-Consolidator/internal/application/consolidation"
	"github.com/turtacn/GasTM-Consolidator/internal/config"
	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/database/postgres"
	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/database/redis"
	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/database/sqlite"
	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/storage/curation"
	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/storage/localfs"
	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/storage/minio"
	"github.com/turtacn/GasTM-Consolidator/pkg/errors"
)

// HealthCheck is a named dependency probe.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Infrastructure holds everything built from one Config.  Close releases the
// connections in reverse order of creation.
type Infrastructure struct {
	Config    *config.Config
	Logger    logging.Logger
	Collector prometheus.MetricsCollector
	Metrics   *prometheus.AppMetrics

	Curation *consolidation.CurationStore
	Source   consolidation.CorpusSource
	Sinks    []consolidation.ResultSink
	// Results is the first configured sink that can answer queries, nil
	// when only file or object sinks are configured.
	Results  consolidation.ResultStore
	Producer *kafka.Producer
	Service  *consolidation.Service

	HealthChecks []HealthCheck

	minio   *minio.Client
	closers []func() error
	once    sync.Once
}

type options struct {
	withoutSinks bool
	withoutRedis bool
}

// Option adjusts Build.
type Option func(*options)

// WithoutSinks skips every result sink.  Used by read-only CLI commands.
func WithoutSinks() Option {
	return func(o *options) { o.withoutSinks = true }
}

// WithoutRedis skips the result cache and run lock.
func WithoutRedis() Option {
	return func(o *options) { o.withoutRedis = true }
}

// Build connects the adapters named in cfg and wires them into a Service.
// On error, whatever was already opened is closed.
func Build(ctx context.Context, cfg *config.Config, logger logging.Logger, opts ...Option) (*Infrastructure, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	infra := &Infrastructure{Config: cfg, Logger: logger}
	if err := infra.build(ctx, o); err != nil {
		infra.Close()
		return nil, err
	}
	logger.Info("infrastructure initialized",
		logging.String("source", infra.Source.Name()),
		logging.Int("sinks", len(infra.Sinks)),
		logging.String("curation_version", infra.Curation.Current().Version()))
	return infra, nil
}

func (i *Infrastructure) build(ctx context.Context, o options) error {
	cfg := i.Config

	if err := i.initMetrics(); err != nil {
		return err
	}
	if err := i.initCuration(ctx); err != nil {
		return err
	}
	if err := i.initSource(ctx); err != nil {
		return err
	}
	if !o.withoutSinks {
		if err := i.initSinks(ctx); err != nil {
			return err
		}
	}

	svcOpts := []consolidation.Option{
		consolidation.WithCurationProvider(i.Curation),
		consolidation.WithSinks(i.Sinks...),
		consolidation.WithMetrics(i.Metrics),
		consolidation.WithLogger(i.Logger),
		consolidation.WithConcurrency(cfg.Worker.Concurrency),
		consolidation.WithDocumentTimeout(cfg.Worker.ItemTimeout),
		consolidation.WithRetry(cfg.Worker.MaxRetries, cfg.Worker.RetryDelay),
	}
	if cfg.Redis.Enabled && !o.withoutRedis {
		client, err := redis.NewClient(cfg.Redis, i.Logger)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		i.closers = append(i.closers, client.Close)
		i.HealthChecks = append(i.HealthChecks, HealthCheck{Name: "redis", Check: client.Ping})

		cache := redis.NewResultCache(client, i.Logger,
			redis.WithPrefix(cfg.Redis.KeyPrefix),
			redis.WithDefaultTTL(cfg.Redis.DefaultTTL))
		svcOpts = append(svcOpts,
			consolidation.WithCache(cache),
			consolidation.WithRunLock(redis.NewRunLock(client, i.Logger)))
	}

	pipeline := consolidation.PipelineFromConfig(cfg.Pipeline, i.Logger)
	i.Service = consolidation.NewService(pipeline, svcOpts...)
	return nil
}

func (i *Infrastructure) initMetrics() error {
	mc := i.Config.Metrics
	if !mc.Enabled {
		i.Collector = prometheus.NewNopCollector()
		i.Metrics = prometheus.NewNopMetrics()
		return nil
	}
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            mc.Namespace,
		EnableGoMetrics:      mc.EnableGoMetrics,
		EnableProcessMetrics: mc.EnableProcessMetrics,
	}, i.Logger)
	if err != nil {
		return err
	}
	i.Collector = collector
	i.Metrics = prometheus.NewAppMetrics(collector)
	return nil
}

// initCuration loads the curation table.  A missing table degrades
// resolution unless curation.required is set; an unreadable one is fatal.
func (i *Infrastructure) initCuration(ctx context.Context) error {
	cc := i.Config.Curation

	var loader consolidation.CurationLoader
	switch cc.Source {
	case "file":
		if cc.Path != "" {
			loader = curation.FileLoader{Path: cc.Path}
		}
	case "minio":
		client, err := i.minioClient(ctx)
		if err != nil {
			return err
		}
		loader = minio.NewCurationLoader(client, cc.ObjectKey)
	}
	i.Curation = consolidation.NewCurationStore(loader, i.Logger, i.Metrics)

	err := i.Curation.Reload(ctx)
	switch {
	case err == nil:
		return nil
	case errors.IsCode(err, errors.ErrCodeMissingCurationTable) && !cc.Required:
		i.Logger.Warn("continuing without a curation table",
			logging.String("source", cc.Source),
			logging.String("code", string(errors.ErrCodeMissingCurationTable)),
			logging.Err(err))
		return nil
	default:
		return err
	}
}

func (i *Infrastructure) initSource(ctx context.Context) error {
	sc := i.Config.Storage
	switch sc.Source {
	case "minio":
		client, err := i.minioClient(ctx)
		if err != nil {
			return err
		}
		i.Source = minio.NewCorpusSource(client, i.Config.MinIO.Prefix)
	default:
		i.Source = localfs.NewSource(sc.InputRoot)
	}
	return nil
}

func (i *Infrastructure) initSinks(ctx context.Context) error {
	cfg := i.Config
	for _, name := range cfg.Storage.Sinks {
		switch name {
		case "fs":
			i.Sinks = append(i.Sinks, localfs.NewSink(cfg.Storage.OutputRoot, cfg.Storage.WriteRejections))

		case "minio":
			client, err := i.minioClient(ctx)
			if err != nil {
				return err
			}
			i.Sinks = append(i.Sinks, minio.NewResultSink(client, cfg.MinIO.Prefix, cfg.Storage.WriteRejections))

		case "sqlite":
			store, err := sqlite.Open(ctx, cfg.SQLite, i.Logger)
			if err != nil {
				return fmt.Errorf("sqlite: %w", err)
			}
			i.closers = append(i.closers, store.Close)
			i.HealthChecks = append(i.HealthChecks, HealthCheck{Name: "sqlite", Check: store.Ping})
			i.Sinks = append(i.Sinks, store)
			if i.Results == nil {
				i.Results = store
			}

		case "postgres":
			pool, err := postgres.NewConnectionPool(ctx, cfg.Database, i.Logger)
			if err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			i.closers = append(i.closers, func() error { postgres.Close(pool); return nil })
			i.HealthChecks = append(i.HealthChecks, HealthCheck{Name: "postgres", Check: func(ctx context.Context) error {
				return postgres.HealthCheck(ctx, pool, i.Logger)
			}})
			repo := repositories.NewResultRepository(pool, i.Logger)
			i.Sinks = append(i.Sinks, repo)
			if i.Results == nil {
				i.Results = repo
			}

		case "kafka":
			producer, err := i.kafkaProducer()
			if err != nil {
				return err
			}
			i.Sinks = append(i.Sinks, kafka.NewEventSink(producer, cfg.Kafka.OutputTopic, "gastm"))
		}
	}
	return nil
}

func (i *Infrastructure) minioClient(ctx context.Context) (*minio.Client, error) {
	if i.minio != nil {
		return i.minio, nil
	}
	client, err := minio.NewClient(ctx, i.Config.MinIO, i.Logger)
	if err != nil {
		return nil, fmt.Errorf("minio: %w", err)
	}
	i.minio = client
	i.closers = append(i.closers, client.Close)
	i.HealthChecks = append(i.HealthChecks, HealthCheck{Name: "minio", Check: func(ctx context.Context) error {
		if hs := client.HealthCheck(ctx); !hs.Healthy {
			return errors.New(errors.ErrCodeStorageError, "minio unhealthy").WithDetail(hs.Error)
		}
		return nil
	}})
	return client, nil
}

// KafkaProducer returns the shared producer, creating it on first use.  The
// worker publishes dead letters through it.
func (i *Infrastructure) KafkaProducer() (*kafka.Producer, error) {
	return i.kafkaProducer()
}

func (i *Infrastructure) kafkaProducer() (*kafka.Producer, error) {
	if i.Producer != nil {
		return i.Producer, nil
	}
	producer, err := kafka.NewProducer(kafka.ProducerConfigFrom(i.Config.Kafka), i.Logger)
	if err != nil {
		return nil, fmt.Errorf("kafka: %w", err)
	}
	i.Producer = producer
	i.closers = append(i.closers, producer.Close)
	return producer, nil
}

// WatchCuration reloads a file-backed curation table on change until ctx is
// done.  It returns immediately when watching is not configured.
func (i *Infrastructure) WatchCuration(ctx context.Context) {
	cc := i.Config.Curation
	if !cc.Watch || cc.Source != "file" || cc.Path == "" {
		return
	}
	go func() {
		if err := i.Curation.Watch(ctx, cc.Path); err != nil {
			i.Logger.Error("curation watcher stopped", logging.Err(err))
		}
	}()
	i.Logger.Info("watching curation table", logging.String("path", cc.Path))
}

// Close releases every opened connection.  It is safe to call more than once.
func (i *Infrastructure) Close() {
	i.once.Do(func() {
		for j := len(i.closers) - 1; j >= 0; j-- {
			if err := i.closers[j](); err != nil {
				i.Logger.Warn("error closing infrastructure", logging.Err(err))
			}
		}
	})
}
