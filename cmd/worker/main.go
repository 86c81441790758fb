// Queue worker entry point for GasTM-Consolidator.  It consumes raw count
// events from Kafka, consolidates each document and hands the result to the
// configured sinks.  Messages that keep failing go to the dead-letter topic.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/GasTM-Consolidator/internal/bootstrap"
	"github.com/turtacn/GasTM-Consolidator/internal/config"
	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/GasTM-Consolidator/internal/interfaces/http"
	"github.com/turtacn/GasTM-Consolidator/internal/interfaces/http/handlers"
)

const defaultHealthPort = 8081

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: GASTM_* environment only)")
	healthPort := flag.Int("health-port", defaultHealthPort, "port of the /healthz, /readyz and metrics endpoints")
	ensureTopics := flag.Bool("ensure-topics", true, "create the input, output and dead-letter topics when missing")
	flag.Parse()

	if err := run(*configPath, *healthPort, *ensureTopics); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, healthPort int, ensureTopics bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if len(cfg.Kafka.Brokers) == 0 || cfg.Kafka.InputTopic == "" {
		return fmt.Errorf("kafka.brokers and kafka.input_topic are required")
	}

	logger, err := logging.NewLogger(cfg.Log.Logging())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logging.SetDefault(logger)
	logger = logger.Named("worker")

	logger.Info("starting GasTM-Consolidator worker",
		logging.String("version", version),
		logging.String("commit", commit),
		logging.String("build_date", buildDate),
		logging.String("input_topic", cfg.Kafka.InputTopic),
		logging.Int("concurrency", cfg.Worker.Concurrency))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	infra, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize infrastructure: %w", err)
	}
	defer infra.Close()
	infra.WatchCuration(ctx)

	if ensureTopics {
		if err := createTopics(ctx, cfg.Kafka, logger); err != nil {
			return err
		}
	}

	var deadLetter kafka.Publisher
	if cfg.Kafka.DeadLetterTopic != "" {
		producer, err := infra.KafkaProducer()
		if err != nil {
			return fmt.Errorf("failed to create dead-letter producer: %w", err)
		}
		deadLetter = producer
	}

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfigFrom(cfg.Kafka), deadLetter, logger)
	if err != nil {
		return fmt.Errorf("failed to create Kafka consumer: %w", err)
	}
	consumer.Subscribe(cfg.Kafka.InputTopic, kafka.NewDocumentHandler(infra.Service, infra.Metrics, logger).Handle)

	healthSrv := newHealthServer(cfg, healthPort, infra, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- healthSrv.Start() }()

	if err := consumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start Kafka consumer: %w", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("health server error", logging.Err(err))
		}
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	}

	// Close waits for the in-flight message before the sinks are released.
	if err := consumer.Close(); err != nil {
		logger.Error("Kafka consumer close error", logging.Err(err))
	}
	if err := healthSrv.Stop(context.Background()); err != nil {
		logger.Error("health server shutdown error", logging.Err(err))
	}
	logger.Info("worker stopped")
	return nil
}

func createTopics(ctx context.Context, kc config.KafkaConfig, logger logging.Logger) error {
	tm, err := kafka.NewTopicManager(ctx, kc.Brokers, logger)
	if err != nil {
		return err
	}
	defer tm.Close()
	return tm.EnsureTopics(kafka.DefaultTopics(kc))
}

// newHealthServer serves the probes and, when enabled, the metrics scrape
// endpoint.  The worker has no API routes.
func newHealthServer(cfg *config.Config, port int, infra *bootstrap.Infrastructure, logger logging.Logger) *httpserver.Server {
	checkers := make([]handlers.HealthChecker, 0, len(infra.HealthChecks))
	for _, hc := range infra.HealthChecks {
		checkers = append(checkers, handlers.CheckerFunc(hc.Name, hc.Check))
	}

	serverCfg := cfg.Server
	serverCfg.Port = port
	serverCfg.Mode = gin.ReleaseMode

	routerCfg := httpserver.RouterConfig{
		HealthHandler: handlers.NewHealthHandler(version, checkers...),
		Server:        serverCfg,
		Logger:        logger,
		Metrics:       infra.Metrics,
	}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsHandler = infra.Collector.Handler()
		routerCfg.MetricsPath = cfg.Metrics.Path
	}
	return httpserver.NewServer(serverCfg, httpserver.NewRouter(routerCfg), logger)
}
