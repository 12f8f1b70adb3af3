package main

import (
	"flag"
	"fmt"

	"eurodoor_admin/internal/config"
	"eurodoor_admin/internal/database"
	"eurodoor_admin/internal/logger"
	"eurodoor_admin/internal/migrations"
	"eurodoor_admin/internal/models"
	"eurodoor_admin/internal/report"

	"go.uber.org/zap"
)

func main() {
	reset := flag.Bool("reset", false, "drop the audit tables before migrating")
	flag.Parse()

	// Load configuration
	cfg := config.Load()
	log := logger.NewForEnvironment(cfg.AppEnv, cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = log.Sync() }()

	// run owns every resource, so its deferred cleanup is done before a fatal exit
	if err := run(cfg, log, *reset); err != nil {
		log.Fatal("Database initialization failed", zap.Error(err))
	}
	log.Info("Database initialization completed successfully")
}

func run(cfg *config.Config, log *zap.Logger, reset bool) error {
	// Check the report definitions the server will load
	catalog, err := report.LoadCatalog(cfg.ReportsFile)
	if err != nil {
		return fmt.Errorf("invalid report definitions: %w", err)
	}
	for _, def := range catalog.All() {
		log.Info("Report definition", zap.String("report", def.Key), zap.String("endpoint", def.Endpoint))
	}

	// Initialize database
	db, err := database.Initialize(cfg.DatabaseURL, log, logger.GormLevel(cfg.LogLevel))
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Warn("Failed to close database", zap.Error(err))
		}
	}()

	if reset {
		log.Info("Dropping audit tables")
		if err := db.Migrator().DropTable(&models.ExportAudit{}, &models.LoginAudit{}); err != nil {
			log.Warn("Error dropping tables", zap.Error(err))
		}
	}

	return migrations.Run(db, log)
}
