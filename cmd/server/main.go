package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eurodoor_admin/internal/config"
	"eurodoor_admin/internal/database"
	"eurodoor_admin/internal/handlers"
	"eurodoor_admin/internal/logger"
	"eurodoor_admin/internal/migrations"
	"eurodoor_admin/internal/redis"
	"eurodoor_admin/internal/report"
	"eurodoor_admin/internal/repository"
	"eurodoor_admin/internal/services"
	"eurodoor_admin/pkg/backend"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const memoryRedisURL = "memory"

// stateStore is what both the Redis client and the in-memory store provide.
type stateStore interface {
	services.ViewStore
	services.SessionStore
	services.Locker
	handlers.Pinger
	Close() error
}

func main() {
	// Load configuration
	cfg := config.Load()

	log := logger.NewForEnvironment(cfg.AppEnv, cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = log.Sync() }()

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// run owns every resource, so its deferred cleanup is done before a fatal exit
	if err := run(cfg, log); err != nil {
		log.Fatal("Server failed", zap.Error(err))
	}
	log.Info("Server exited")
}

func run(cfg *config.Config, log *zap.Logger) error {
	// Report definitions and formatting
	catalog, err := report.LoadCatalog(cfg.ReportsFile)
	if err != nil {
		return fmt.Errorf("failed to load report definitions: %w", err)
	}
	formatter, err := report.NewFormatter(cfg.Locale, cfg.Currency, cfg.CurrencySymbol)
	if err != nil {
		return fmt.Errorf("invalid currency settings: %w", err)
	}

	// Initialize database
	db, err := database.Initialize(cfg.DatabaseURL, log, logger.GormLevel(cfg.LogLevel))
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()
	if err := migrations.Run(db, log); err != nil {
		return err
	}

	// Initialize Redis
	store, err := newStateStore(cfg.RedisURL, log)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	client := backend.NewClient(cfg.BackendBaseURL, cfg.RequestTimeout)

	// Initialize repositories
	auditRepo := repository.NewAuditRepository(db)

	// Initialize services
	registry := services.NewRegistry(store, catalog, cfg.ViewTTL)
	viewService := services.NewViewService(registry, client, formatter, services.ViewOptions{PageSize: cfg.PageSize}, log)
	defer viewService.Shutdown()
	exportService := services.NewExportService(registry, client, store, auditRepo, cfg.ExportLockTTL, log)
	authService := services.NewAuthService(client, store, auditRepo, cfg.SessionTimeout, log)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, cfg.SessionTimeout, cfg.CookieSecure)
	reportHandler := handlers.NewReportHandler(viewService, exportService, auditRepo)

	// Setup routes
	router := gin.New()
	router.Use(logger.RequestID(), logger.GinMiddleware(log), logger.Recovery(log))
	handlers.SetupRoutes(router, authService, authHandler, reportHandler, map[string]handlers.Pinger{
		"redis":    store,
		"database": database.Pinger{DB: db},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting",
			zap.String("port", cfg.ServerPort),
			zap.String("backend", cfg.BackendBaseURL),
			zap.Int("reports", len(catalog.All())))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return fmt.Errorf("failed to start server: %w", err)
	case <-quit:
	}
	log.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	registry.Tracker().CancelAll()
	return nil
}

func newStateStore(url string, log *zap.Logger) (stateStore, error) {
	if url == memoryRedisURL {
		log.Warn("Using in-memory state store; sessions and views are not shared between instances")
		return redis.NewMemoryStore(), nil
	}
	client, err := redis.Initialize(url)
	if err != nil {
		return nil, err
	}
	return client, nil
}
