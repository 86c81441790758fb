// API server entry point for GasTM-Consolidator.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/turtacn/GasTM-Consolidator/internal/bootstrap"
	"github.com/turtacn/GasTM-Consolidator/internal/config"
	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/GasTM-Consolidator/internal/interfaces/http"
	"github.com/turtacn/GasTM-Consolidator/internal/interfaces/http/handlers"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: GASTM_* environment only)")
	httpPort := flag.Int("http-port", 0, "HTTP server port (overrides server.port)")
	flag.Parse()

	if err := run(*configPath, *httpPort); err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, httpPort int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if httpPort > 0 {
		cfg.Server.Port = httpPort
	}

	logger, err := logging.NewLogger(cfg.Log.Logging())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logging.SetDefault(logger)

	logger.Info("starting GasTM-Consolidator API server",
		logging.String("version", version),
		logging.String("commit", commit),
		logging.String("build_date", buildDate),
		logging.Int("port", cfg.Server.Port))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	infra, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize infrastructure: %w", err)
	}
	defer infra.Close()
	infra.WatchCuration(ctx)

	checkers := make([]handlers.HealthChecker, 0, len(infra.HealthChecks))
	for _, hc := range infra.HealthChecks {
		checkers = append(checkers, handlers.CheckerFunc(hc.Name, hc.Check))
	}

	routerCfg := httpserver.RouterConfig{
		ConsolidationHandler: handlers.NewConsolidationHandler(infra.Service, logger),
		CurationHandler:      handlers.NewCurationHandler(infra.Curation, infra.Curation),
		HealthHandler:        handlers.NewHealthHandler(version, checkers...),
		Server:               cfg.Server,
		Logger:               logger,
		Metrics:              infra.Metrics,
	}
	if infra.Results != nil {
		routerCfg.ResultHandler = handlers.NewResultHandler(infra.Results)
	}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsHandler = infra.Collector.Handler()
		routerCfg.MetricsPath = cfg.Metrics.Path
	}

	srv := httpserver.NewServer(cfg.Server, httpserver.NewRouter(routerCfg), logger)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	}

	if err := srv.Stop(context.Background()); err != nil {
		logger.Error("HTTP server shutdown error", logging.Err(err))
		return err
	}
	logger.Info("API server stopped")
	return nil
}
