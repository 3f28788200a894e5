package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexuscrm/taskdesk/internal/application/services"
	"github.com/nexuscrm/taskdesk/internal/bootstrap"
	"github.com/nexuscrm/taskdesk/internal/config"
	"github.com/nexuscrm/taskdesk/internal/domain/ports"
	"github.com/nexuscrm/taskdesk/internal/infrastructure/cache"
	"github.com/nexuscrm/taskdesk/internal/infrastructure/database"
	"github.com/nexuscrm/taskdesk/internal/infrastructure/mailer"
	"github.com/nexuscrm/taskdesk/internal/infrastructure/messaging"
	"github.com/nexuscrm/taskdesk/internal/interfaces/middleware"
	"github.com/nexuscrm/taskdesk/internal/interfaces/rest"
	"github.com/nexuscrm/taskdesk/internal/logger"
	"github.com/nexuscrm/taskdesk/internal/telemetry"
	"github.com/nexuscrm/taskdesk/pkg/constants"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before the logger: the production handler uses its provider.
	tel, err := telemetry.Setup(ctx, cfg)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger.Setup(cfg)
	log := slog.Default()

	if tel != nil {
		log.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTLPEndpoint)
	}
	log.InfoContext(ctx, "taskdesk starting", "env", cfg.Env, "dispatch_mode", cfg.EventDispatchMode)

	db, err := database.Open(ctx, cfg.DB)
	if err != nil {
		log.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.InfoContext(ctx, "database connected", "host", cfg.DB.Host, "name", cfg.DB.Name)

	if err := bootstrap.InitializeSchema(ctx, db, log); err != nil {
		log.ErrorContext(ctx, "schema initialization failed", "error", err)
		os.Exit(1)
	}

	appCache, limiter, closeCache := setupCache(ctx, cfg, log)
	defer closeCache()

	adapters := services.Adapters{
		DB:     db,
		Cache:  appCache,
		Mailer: mailer.NewLogMailer(log),
	}
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := messaging.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaWriteTimeout)
		if err != nil {
			log.ErrorContext(ctx, "failed to create kafka publisher", "error", err)
			os.Exit(1)
		}
		adapters.Stream = publisher
		log.InfoContext(ctx, "event stream enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	svcMgr, err := services.NewServiceManager(cfg, adapters, log)
	if err != nil {
		log.ErrorContext(ctx, "failed to initialize services", "error", err)
		os.Exit(1)
	}

	if err := bootstrap.InitializeSystemData(ctx, svcMgr.Users, svcMgr.Auth, cfg.Admin, log); err != nil {
		log.ErrorContext(ctx, "system data initialization failed", "error", err)
		os.Exit(1)
	}
	if err := bootstrap.InitializeAutomations(ctx, svcMgr.Automations, svcMgr.Automation, cfg.AutomationsFile, log); err != nil {
		log.ErrorContext(ctx, "automation seed failed", "error", err)
		os.Exit(1)
	}

	svcMgr.StartWorkers()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := setupRouter(cfg, svcMgr, db, limiter, log)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           middleware.Gzip(router),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	svcMgr.StopWorkers()

	if adapters.Stream != nil {
		if err := adapters.Stream.Close(); err != nil {
			log.ErrorContext(shutdownCtx, "event stream close error", "error", err)
		}
	}

	if err := tel.Shutdown(shutdownCtx); err != nil {
		log.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
	}

	log.InfoContext(shutdownCtx, "shutdown complete")
}

// setupCache uses Redis when REDIS_URL is set and reachable, and the in-process
// cache and limiter otherwise.
func setupCache(ctx context.Context, cfg *config.Config, log *slog.Logger) (ports.Cache, ports.RateLimiter, func()) {
	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err == nil {
			log.InfoContext(ctx, "redis connected")
			return cache.NewRedisCache(client), cache.NewRedisRateLimiter(client, constants.CacheKeyRatePrefix), func() { client.Close() }
		}
		log.WarnContext(ctx, "redis unavailable, falling back to in-memory cache", "error", err)
	}
	return cache.NewMemoryCache(), cache.NewMemoryRateLimiter(), func() {}
}

func setupRouter(cfg *config.Config, svcMgr *services.ServiceManager, db *sql.DB, limiter ports.RateLimiter, log *slog.Logger) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates the span, Recovery catches panics, the
	// logger then logs with trace context.
	if cfg.TelemetryEnabled() {
		router.Use(otelgin.Middleware(cfg.ServiceName))
	}
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Cors())

	deps := rest.DependenciesFromServices(svcMgr)
	deps.Limiter = limiter
	deps.RateLimitRPM = cfg.RateLimitRPM
	deps.Ping = db.PingContext
	deps.Logger = log
	rest.SetupRoutes(router, deps)

	return router
}
