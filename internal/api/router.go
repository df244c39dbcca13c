package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/pulsehq/insight-engine/internal/api/handlers"
	"github.com/pulsehq/insight-engine/internal/api/middleware"
	"github.com/pulsehq/insight-engine/internal/config"
	"github.com/pulsehq/insight-engine/internal/core/scheduler"
	"github.com/pulsehq/insight-engine/internal/database"
	"github.com/pulsehq/insight-engine/internal/websocket"
)

// NewRouter creates and configures the main HTTP router
func NewRouter(cfg *config.Config, repos *database.Repositories, logger *logrus.Logger, wsHub *websocket.Hub, sched *scheduler.Scheduler) *gin.Engine {
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(middleware.ErrorHandlingMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.CORSMiddleware())

	rateLimiter := middleware.NewRateLimiter(100, 200)
	router.Use(rateLimiter.RateLimitMiddleware())

	h := handlers.NewHandlers(cfg, repos, logger, wsHub, sched)

	// Public routes
	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// WebSocket endpoint for dashboard clients
	router.GET("/ws", websocket.HandleWebSocketGin(wsHub))

	api := router.Group("/api/v1")
	{
		templates := api.Group("/templates")
		{
			templates.GET("", h.GetTemplates)
			templates.GET("/:id", h.GetTemplate)
			templates.POST("", h.SaveTemplate)
			templates.PUT("/:id/active", h.SetTemplateActive)
			templates.POST("/:id/generate", h.GenerateReport)
		}

		reports := api.Group("/reports")
		{
			reports.GET("", h.GetReports)
			reports.GET("/:id", h.GetReport)
		}

		rules := api.Group("/rules")
		{
			rules.GET("", h.GetRules)
			rules.GET("/:id", h.GetRule)
			rules.POST("", h.SaveRule)
			rules.PUT("/:id/active", h.SetRuleActive)
		}

		api.GET("/firings", h.GetFirings)

		notifications := api.Group("/notification-templates")
		{
			notifications.GET("", h.GetNotificationTemplates)
			notifications.POST("", h.SaveNotificationTemplate)
		}

		api.POST("/samples", h.IngestSamples)
		api.GET("/stats", h.GetStats)
	}

	return router
}
