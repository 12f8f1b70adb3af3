package migrations

import (
	"fmt"

	"eurodoor_admin/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Run creates or updates the audit tables. It never drops data.
func Run(db *gorm.DB, log *zap.Logger) error {
	log.Info("Running database migrations")

	if err := db.AutoMigrate(
		&models.ExportAudit{},
		&models.LoginAudit{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Info("Database migrations completed")
	return nil
}
