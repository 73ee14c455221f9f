package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	internalmiddleware "github.com/noah-isme/timetable-solver-api/internal/middleware"
	"github.com/noah-isme/timetable-solver-api/internal/service"
	"github.com/noah-isme/timetable-solver-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/timetable-solver-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/timetable-solver-api/pkg/middleware/requestid"
)

// RouterConfig controls route registration.
type RouterConfig struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool
	Ready          func() bool
}

// NewRouter assembles the gin engine with the common middleware chain and every endpoint.
func NewRouter(cfg RouterConfig, logr *zap.Logger, metrics *service.MetricsService, schedule *ScheduleHandler) *gin.Engine {
	if logr == nil {
		logr = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))
	r.Use(internalmiddleware.WithResponseMeta())

	metricsHandler := NewMetricsHandler(metrics)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if cfg.Ready != nil && !cfg.Ready() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	prefix := cfg.APIPrefix
	if prefix == "" {
		prefix = "/api/v1"
	}
	api := r.Group(prefix)
	api.GET("/metrics/summary", metricsHandler.Summary)

	scheduleGroup := api.Group("/schedule")
	scheduleGroup.POST("/solve", schedule.Solve)
	scheduleGroup.POST("/solve/async", schedule.SolveAsync)
	scheduleGroup.GET("/runs", schedule.ListRuns)
	scheduleGroup.GET("/runs/:id", schedule.GetRun)
	scheduleGroup.POST("/runs/:id/export", schedule.Export)
	scheduleGroup.GET("/export/:token", schedule.Download)

	return r
}
