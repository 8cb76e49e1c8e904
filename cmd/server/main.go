package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/channelsync/backend/internal/application/syncengine"
	"github.com/channelsync/backend/internal/domain/catalogsync"
	"github.com/channelsync/backend/internal/infrastructure/config"
	"github.com/channelsync/backend/internal/infrastructure/ecommerce"
	"github.com/channelsync/backend/internal/infrastructure/logger"
	"github.com/channelsync/backend/internal/infrastructure/persistence"
	"github.com/channelsync/backend/internal/infrastructure/persistence/models"
	"github.com/channelsync/backend/internal/infrastructure/ratelimit"
	"github.com/channelsync/backend/internal/infrastructure/retry"
	"github.com/channelsync/backend/internal/infrastructure/scheduler"
	"github.com/channelsync/backend/internal/infrastructure/secrets"
	"github.com/channelsync/backend/internal/infrastructure/sourcecatalog"
	"github.com/channelsync/backend/internal/interfaces/http/handler"
	"github.com/channelsync/backend/internal/interfaces/http/middleware"
	"github.com/channelsync/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting ChannelSync Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// SQLite has no migration CLI support; build the schema directly.
	// PostgreSQL schemas are managed by cmd/migrate.
	if cfg.Database.Driver == config.DatabaseDriverSQLite {
		if err := db.DB.AutoMigrate(
			&models.ConnectionModel{},
			&models.JobModel{},
			&models.JobItemModel{},
			&models.AuditLogModel{},
		); err != nil {
			log.Fatal("Failed to migrate sqlite schema", zap.Error(err))
		}
	}

	// Initialize repositories
	connectionRepo := persistence.NewGormConnectionRepository(db.DB)
	jobRepo := persistence.NewGormJobRepository(db.DB)
	auditRepo := persistence.NewGormAuditLogRepository(db.DB)

	// Credential decryption for stored destination tokens
	decryptor, err := secrets.NewDecryptor(cfg.Secrets.Passphrase, cfg.Secrets.Salt)
	if err != nil {
		log.Fatal("Failed to initialize credential decryptor", zap.Error(err))
	}

	// Per-destination dispatch queues with token bucket budgets
	dispatcher := ratelimit.NewRegistry(ratelimit.Config{
		GeneralCapacity:    cfg.Dispatcher.GeneralCapacity,
		GeneralPerSecond:   cfg.Dispatcher.GeneralPerSecond,
		InventoryCapacity:  cfg.Dispatcher.InventoryCapacity,
		InventoryPerSecond: cfg.Dispatcher.InventoryPerSecond,
		MaxQueueDepth:      cfg.Dispatcher.MaxQueueDepth,
	}, log)

	// Destination platform adapters, built per connection
	platforms := ecommerce.NewPlatformRegistry(dispatcher, decryptor, log)

	// Retry policy shared by all destination calls
	policy := retry.NewPolicy(retry.Options{
		MaxRetries:        cfg.Retry.MaxRetries,
		BaseDelay:         cfg.Retry.BaseDelay,
		MaxDelay:          cfg.Retry.MaxDelay,
		BackoffMultiplier: cfg.Retry.BackoffMultiplier,
	}, log)

	// Catalog reconciler
	reconciler := syncengine.NewReconciler(policy, auditRepo, log, syncengine.Options{
		InterCallDelay: cfg.Reconciler.InterCallDelay,
	})

	// Source catalog fetchers
	var fetchers []catalogsync.SourceCatalogFetcher
	if cfg.Source.Shopify.Enabled {
		shopifySource, err := sourcecatalog.NewShopifySourceFetcher(&sourcecatalog.ShopifySourceConfig{
			ShopDomain:  cfg.Source.Shopify.ShopDomain,
			AccessToken: cfg.Source.Shopify.AccessToken,
			Primary:     cfg.Source.Shopify.Primary,
		}, dispatcher)
		if err != nil {
			log.Fatal("Failed to initialize shopify source", zap.Error(err))
		}
		fetchers = append(fetchers, shopifySource)
		log.Info("Shopify source enabled", zap.String("shop", cfg.Source.Shopify.ShopDomain))
	}
	if cfg.Source.Feed.Enabled {
		feedSource, err := sourcecatalog.NewFeedFetcher(&sourcecatalog.FeedConfig{
			Name:        cfg.Source.Feed.Name,
			URL:         cfg.Source.Feed.URL,
			BearerToken: cfg.Source.Feed.BearerToken,
			Primary:     cfg.Source.Feed.Primary,
		})
		if err != nil {
			log.Fatal("Failed to initialize feed source", zap.Error(err))
		}
		fetchers = append(fetchers, feedSource)
		log.Info("Feed source enabled", zap.String("name", cfg.Source.Feed.Name))
	}
	if len(fetchers) == 0 {
		log.Warn("No catalog sources enabled; sync jobs will fail until a source is configured")
	}

	// Background worker loop and interval sync trigger
	worker := scheduler.NewWorker(scheduler.WorkerConfig{
		PollInterval: cfg.Worker.PollInterval,
		FailureDelay: cfg.Worker.FailureDelay,
	}, jobRepo, connectionRepo, fetchers, platforms, reconciler, log)

	trigger := scheduler.NewSyncTrigger(scheduler.SyncTriggerConfig{
		CheckInterval: cfg.Worker.CheckInterval,
		SyncInterval:  cfg.Worker.SyncInterval,
	}, connectionRepo, jobRepo, log)

	if cfg.Worker.Enabled {
		if err := worker.Start(context.Background()); err != nil {
			log.Fatal("Failed to start sync worker", zap.Error(err))
		}
		log.Info("Sync worker started", zap.Duration("poll_interval", cfg.Worker.PollInterval))
	}
	if cfg.Worker.TriggerEnabled {
		if err := trigger.Start(context.Background()); err != nil {
			log.Fatal("Failed to start sync trigger", zap.Error(err))
		}
		log.Info("Interval sync trigger started",
			zap.Duration("check_interval", cfg.Worker.CheckInterval),
			zap.Duration("sync_interval", cfg.Worker.SyncInterval),
		)
	}

	// Initialize HTTP handlers
	connectionHandler := handler.NewConnectionHandler(connectionRepo, jobRepo, auditRepo)
	jobHandler := handler.NewJobHandler(jobRepo, connectionRepo)
	auditHandler := handler.NewAuditHandler(auditRepo)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. CORS - Handle cross-origin requests
	// 5. BodyLimit - Limit request body size
	// 6. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))

	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, log))

	// Setup API routes
	router.NewRouter(engine, router.WithAPIVersion("v1")).
		Register(connectionHandler).
		Register(jobHandler).
		Register(auditHandler).
		Setup()

	// Simple ping at root API level for basic liveness checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	// Stop background loops after the HTTP surface is drained so in-flight
	// requests cannot enqueue against a dead worker
	if cfg.Worker.TriggerEnabled {
		if err := trigger.Stop(ctx); err != nil {
			log.Error("Sync trigger did not stop cleanly", zap.Error(err))
		}
	}
	if cfg.Worker.Enabled {
		if err := worker.Stop(ctx); err != nil {
			log.Error("Sync worker did not stop cleanly", zap.Error(err))
		}
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
