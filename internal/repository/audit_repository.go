package repository

import (
	"context"

	"eurodoor_admin/internal/models"

	"gorm.io/gorm"
)

const maxAuditPage = 200

type AuditRepository interface {
	RecordExport(ctx context.Context, audit *models.ExportAudit) error
	RecordLogin(ctx context.Context, audit *models.LoginAudit) error
	ListExports(ctx context.Context, reportKey string, limit int) ([]models.ExportAudit, error)
	ListLogins(ctx context.Context, email string, limit int) ([]models.LoginAudit, error)
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) RecordExport(ctx context.Context, audit *models.ExportAudit) error {
	return r.db.WithContext(ctx).Create(audit).Error
}

func (r *auditRepository) RecordLogin(ctx context.Context, audit *models.LoginAudit) error {
	return r.db.WithContext(ctx).Create(audit).Error
}

// ListExports returns the newest export attempts, optionally for one report.
func (r *auditRepository) ListExports(ctx context.Context, reportKey string, limit int) ([]models.ExportAudit, error) {
	var audits []models.ExportAudit
	q := r.db.WithContext(ctx).Order("requested_at DESC, id DESC").Limit(clampLimit(limit))
	if reportKey != "" {
		q = q.Where("report_key = ?", reportKey)
	}
	err := q.Find(&audits).Error
	return audits, err
}

func (r *auditRepository) ListLogins(ctx context.Context, email string, limit int) ([]models.LoginAudit, error) {
	var audits []models.LoginAudit
	q := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(clampLimit(limit))
	if email != "" {
		q = q.Where("email = ?", email)
	}
	err := q.Find(&audits).Error
	return audits, err
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxAuditPage {
		return maxAuditPage
	}
	return limit
}
