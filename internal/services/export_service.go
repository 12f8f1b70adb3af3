package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eurodoor_admin/internal/apperr"
	"eurodoor_admin/internal/models"
	"eurodoor_admin/internal/report"
	"eurodoor_admin/pkg/backend"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const exportLockPrefix = "export:"

// Locker guards a key across instances.
type Locker interface {
	AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// DocumentDownloader fetches the backend-rendered PDF.
type DocumentDownloader interface {
	Download(ctx context.Context, path string) (*backend.Document, error)
}

// ExportRecorder persists export attempts.
type ExportRecorder interface {
	RecordExport(ctx context.Context, audit *models.ExportAudit) error
}

type ExportResult struct {
	Filename    string
	ContentType string
	Body        []byte
}

type ExportService interface {
	Export(ctx context.Context, sessionID, adminEmail, viewID string) (*ExportResult, error)
}

type exportService struct {
	registry   *Registry
	downloader DocumentDownloader
	locker     Locker
	recorder   ExportRecorder
	lockTTL    time.Duration
	log        *zap.Logger
}

func NewExportService(
	registry *Registry,
	downloader DocumentDownloader,
	locker Locker,
	recorder ExportRecorder,
	lockTTL time.Duration,
	log *zap.Logger,
) ExportService {
	return &exportService{
		registry:   registry,
		downloader: downloader,
		locker:     locker,
		recorder:   recorder,
		lockTTL:    lockTTL,
		log:        log,
	}
}

// Export downloads the report PDF for a loaded view. Only one export per view
// runs at a time; a second request while one is in flight is rejected.
func (s *exportService) Export(ctx context.Context, sessionID, adminEmail, viewID string) (*ExportResult, error) {
	state, def, err := s.registry.Owned(ctx, sessionID, viewID)
	if err != nil {
		return nil, err
	}
	if state.Loading || state.Error != "" {
		return nil, apperr.ValidationErr("Report is not loaded")
	}

	audit := &models.ExportAudit{
		ReportKey:   def.Key,
		ViewID:      viewID,
		AdminEmail:  adminEmail,
		Filename:    def.DownloadFilename,
		RequestedAt: time.Now().UTC(),
	}

	lockKey := exportLockPrefix + viewID
	token := uuid.NewString()
	acquired, err := s.locker.AcquireLock(ctx, lockKey, token, s.lockTTL)
	if err != nil {
		return nil, apperr.Wrap(fmt.Errorf("failed to acquire export lock: %w", err))
	}
	if !acquired {
		audit.Status = models.ExportRejected
		s.record(ctx, audit)
		return nil, apperr.InProgressErr("An export of this report is already in progress")
	}
	defer func() {
		// released even when the request was canceled
		if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), lockKey, token); err != nil {
			s.log.Warn("Failed to release export lock", zap.String("view_id", viewID), zap.Error(err))
		}
	}()

	dlCtx, done := s.registry.Tracker().Track(ctx, viewID)
	defer done()

	start := time.Now()
	doc, dlErr := s.downloader.Download(dlCtx, def.DownloadEndpoint)
	audit.DurationMs = time.Since(start).Milliseconds()

	if dlErr != nil {
		audit.Status = models.ExportFailed
		audit.Error = dlErr.Error()
		s.record(ctx, audit)
		s.log.Error("Failed to export report",
			zap.String("view_id", viewID),
			zap.String("report", def.Key),
			zap.Error(dlErr))

		// an unmounted view has nowhere to show the error
		if !errors.Is(dlCtx.Err(), context.Canceled) {
			s.setExportError(ctx, sessionID, viewID, def.ExportError)
		}
		return nil, apperr.ExportErr(def.ExportError, dlErr)
	}

	audit.Status = models.ExportSucceeded
	audit.Bytes = len(doc.Body)
	s.record(ctx, audit)
	if state.ExportError != "" {
		s.setExportError(ctx, sessionID, viewID, "")
	}

	s.log.Info("Report exported",
		zap.String("view_id", viewID),
		zap.String("report", def.Key),
		zap.Int("bytes", len(doc.Body)),
		zap.Int64("duration_ms", audit.DurationMs))

	return &ExportResult{
		Filename:    def.DownloadFilename,
		ContentType: doc.ContentType,
		Body:        doc.Body,
	}, nil
}

func (s *exportService) setExportError(ctx context.Context, sessionID, viewID, msg string) {
	_, _, err := s.registry.Modify(context.WithoutCancel(ctx), sessionID, viewID, func(state *report.ViewState, _ *report.Definition) error {
		state.SetExportError(msg)
		return nil
	})
	if err != nil {
		s.log.Warn("Failed to store export error", zap.String("view_id", viewID), zap.Error(err))
	}
}

func (s *exportService) record(ctx context.Context, audit *models.ExportAudit) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordExport(context.WithoutCancel(ctx), audit); err != nil {
		s.log.Warn("Failed to record export audit", zap.String("view_id", audit.ViewID), zap.Error(err))
	}
}
