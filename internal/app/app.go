package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/weappkit/server/internal/module/auth"
	"github.com/weappkit/server/internal/module/payment"
	"github.com/weappkit/server/internal/shared/config"
	"github.com/weappkit/server/internal/shared/metrics"
	"github.com/weappkit/server/internal/shared/middleware"
)

// App holds the HTTP router and the handlers mounted on it.
type App struct {
	config *config.Config
	router *gin.Engine
	logger *zap.Logger
}

// Handlers groups the module handlers mounted on the router.
type Handlers struct {
	Payment *payment.Handler
	Webhook *payment.WebhookHandler
	Auth    *auth.Handler
}

// NewApp builds the router and registers all routes.
func NewApp(cfg *config.Config, log *zap.Logger, m *metrics.Metrics, h *Handlers) *App {
	a := &App{config: cfg, logger: log}
	a.router = a.setupRouter(m)

	h.Payment.RegisterRoutes(a.router.Group(""))
	h.Webhook.RegisterRoutes(a.router.Group("/hooks"))
	h.Auth.RegisterRoutes(a.router.Group(""))

	return a
}

// setupRouter creates and configures the Gin router.
func (a *App) setupRouter(m *metrics.Metrics) *gin.Engine {
	if a.config.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(middleware.Recovery(a.logger))
	r.Use(middleware.RequestID(a.logger))
	r.Use(middleware.Logging(a.logger))
	r.Use(middleware.Metrics(m))
	r.Use(middleware.CORS())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// Router returns the HTTP handler.
func (a *App) Router() *gin.Engine {
	return a.router
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}
