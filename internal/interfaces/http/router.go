// Package http exposes the consolidation service over a gin router.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/GasTM-Consolidator/internal/config"
	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/GasTM-Consolidator/internal/interfaces/http/handlers"
	"github.com/turtacn/GasTM-Consolidator/internal/interfaces/http/middleware"
	"github.com/turtacn/GasTM-Consolidator/pkg/errors"
)

// RouterConfig aggregates the handlers and middleware dependencies of the
// route tree.  Nil handlers leave their routes unmounted.
type RouterConfig struct {
	ConsolidationHandler *handlers.ConsolidationHandler
	CurationHandler      *handlers.CurationHandler
	ResultHandler        *handlers.ResultHandler
	HealthHandler        *handlers.HealthHandler

	Server         config.ServerConfig
	Logger         logging.Logger
	Metrics        *prometheus.AppMetrics
	MetricsHandler http.Handler
	MetricsPath    string
}

// NewRouter builds the gin engine: global middleware, probes, the metrics
// scrape endpoint and the /api/v1 resources.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogging(logger, cfg.Metrics, middleware.DefaultLoggingConfig()))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.Server.CORS))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodySize))

	if h := cfg.HealthHandler; h != nil {
		r.GET("/healthz", h.Liveness)
		r.GET("/readyz", h.Readiness)
	}
	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(cfg.MetricsHandler))
	}

	api := r.Group("/api/v1")
	if h := cfg.ConsolidationHandler; h != nil {
		api.POST("/documents/consolidate", h.Consolidate)
		api.POST("/tokens/classify", h.Classify)
	}
	if h := cfg.CurationHandler; h != nil {
		api.GET("/curation", h.Get)
		api.POST("/curation/reload", h.Reload)
	}
	if h := cfg.ResultHandler; h != nil {
		api.GET("/documents/:id/counts", h.DocumentCounts)
		api.GET("/runs", h.ListRuns)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handlers.ErrorResponse{
			Code:      string(errors.ErrCodeNotFound),
			Message:   "route not found",
			RequestID: middleware.GetRequestID(c),
		})
	})
	return r
}
