package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pulsehq/insight-engine/internal/api"
	"github.com/pulsehq/insight-engine/internal/config"
	"github.com/pulsehq/insight-engine/internal/core/alerting"
	"github.com/pulsehq/insight-engine/internal/core/reporting"
	"github.com/pulsehq/insight-engine/internal/core/scheduler"
	"github.com/pulsehq/insight-engine/internal/database"
	"github.com/pulsehq/insight-engine/internal/datasource"
	"github.com/pulsehq/insight-engine/internal/definitions"
	"github.com/pulsehq/insight-engine/internal/export"
	"github.com/pulsehq/insight-engine/internal/notify"
	"github.com/pulsehq/insight-engine/internal/websocket"
	"github.com/pulsehq/insight-engine/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	// Initialize database
	db, err := database.Initialize(cfg.Database)
	if err != nil {
		log.Fatal("Failed to initialize database: ", err)
	}
	defer db.Close()

	// Run migrations
	if err := database.Migrate(db, cfg.Database.MigrationsPath); err != nil {
		log.Fatal("Failed to run migrations: ", err)
	}

	// Create repositories
	repos := database.NewRepositories(db)

	// Create WebSocket hub for dashboard clients
	wsHub := websocket.NewHub(log)
	go wsHub.Run()

	// Reconcile declarative definitions into the database
	defs, err := definitions.Load(cfg.Scheduler.DefinitionsPath)
	if err != nil {
		log.Fatal("Failed to load definitions: ", err)
	}
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := definitions.Apply(bootCtx, defs, definitions.Repos{
		Templates:             repos.Template,
		Rules:                 repos.Rule,
		NotificationTemplates: repos.NotificationTemplate,
	}, log); err != nil {
		bootCancel()
		log.Fatal("Failed to apply definitions: ", err)
	}

	// Notification transport channels
	channels := notify.NewRegistry(log)
	channels.Register(notify.NewMailChannel(cfg.Channels.SMTP, log))
	channels.Register(notify.NewChatChannel(cfg.Channels.Slack, log))
	channels.Register(notify.NewSMSChannel(cfg.Channels.SMS, log))
	channels.Register(notify.NewPushChannel(cfg.Channels.Push, log))
	channels.Register(notify.NewWebhookChannel(cfg.Channels.Webhook, log))
	channels.Register(notify.NewDashboardChannel(wsHub, log))

	// Export renderers
	exports := export.NewRegistry(log)
	exports.Register(export.NewCSVRenderer(cfg.Exports.OutputDir))
	exports.Register(export.NewJSONRenderer(cfg.Exports.OutputDir))
	exports.Register(export.NewHTMLRenderer(cfg.Exports.OutputDir))

	// Metric data source backed by the local sample store
	source := datasource.NewDBSource(repos.Metric)

	// Report generator
	generator := reporting.NewGenerator(repos.Template, repos.Report, source, exports, channels, wsHub, log)

	// Alert engine
	location, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		log.WithError(err).Warnf("Invalid timezone %s, using local time", cfg.Scheduler.Timezone)
		location = time.Local
	}
	limiter := alerting.NewLimiter()
	engine := alerting.NewEngine(
		repos.Rule, repos.NotificationTemplate, repos.Firing,
		source, limiter, channels, wsHub, log,
		alerting.EngineOptions{
			EvaluationWindow:   cfg.Scheduler.EvaluationWindowDuration(),
			DispatchTimeout:    cfg.Scheduler.DispatchTimeoutDuration(),
			MaxConcurrent:      cfg.Scheduler.MaxConcurrentEvaluations,
			BusinessHoursStart: cfg.Scheduler.BusinessHoursStart,
			BusinessHoursEnd:   cfg.Scheduler.BusinessHoursEnd,
			Location:           location,
		},
	)
	if err := engine.Seed(bootCtx); err != nil {
		log.WithError(err).Warn("Failed to seed frequency limiter from persisted state")
	}
	bootCancel()

	// Scheduler tick loop
	sched := scheduler.New(repos.Template, generator, engine, log, scheduler.Options{
		TickInterval:             cfg.Scheduler.TickIntervalDuration(),
		ReportTimeout:            cfg.Scheduler.ReportTimeoutDuration(),
		MaxConcurrentGenerations: cfg.Scheduler.MaxConcurrentGenerations,
	})
	if err := sched.Start(); err != nil {
		log.Fatal("Failed to start scheduler: ", err)
	}

	// Initialize router
	router := api.NewRouter(cfg, repos, log, wsHub, sched)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server
	go func() {
		log.Infof("Starting insight engine on port %d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server: ", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sched.Stop(); err != nil {
		log.WithError(err).Warn("Failed to stop scheduler gracefully")
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	log.Info("Server exited")
}
