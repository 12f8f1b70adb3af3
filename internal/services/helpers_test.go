package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"eurodoor_admin/internal/models"
	"eurodoor_admin/internal/redis"
	"eurodoor_admin/internal/report"
	"eurodoor_admin/pkg/backend"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const (
	sessionA = "session-a"
	sessionB = "session-b"
)

type fakeFetcher struct {
	mu    sync.Mutex
	rows  []map[string]any
	err   error
	gate  chan struct{}
	paths []string
}

func (f *fakeFetcher) FetchCollection(ctx context.Context, path string) ([]map[string]any, error) {
	f.mu.Lock()
	f.paths = append(f.paths, path)
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.rows, f.err
}

func (f *fakeFetcher) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

type fakeDownloader struct {
	doc     *backend.Document
	err     error
	gate    chan struct{}
	started chan struct{}
}

func (d *fakeDownloader) Download(ctx context.Context, path string) (*backend.Document, error) {
	if d.started != nil {
		d.started <- struct{}{}
	}
	if d.gate != nil {
		select {
		case <-d.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return d.doc, d.err
}

type fakeRecorder struct {
	mu      sync.Mutex
	exports []models.ExportAudit
	logins  []models.LoginAudit
}

func (r *fakeRecorder) RecordExport(ctx context.Context, audit *models.ExportAudit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exports = append(r.exports, *audit)
	return nil
}

func (r *fakeRecorder) RecordLogin(ctx context.Context, audit *models.LoginAudit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logins = append(r.logins, *audit)
	return nil
}

func (r *fakeRecorder) exportStatuses() []models.ExportStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ExportStatus, len(r.exports))
	for i, e := range r.exports {
		out[i] = e.Status
	}
	return out
}

// touchRecordingStore records the TTL of every view refresh.
type touchRecordingStore struct {
	*redis.MemoryStore

	mu      sync.Mutex
	touches []time.Duration
}

func (s *touchRecordingStore) TouchView(ctx context.Context, viewID string, ttl time.Duration) error {
	s.mu.Lock()
	s.touches = append(s.touches, ttl)
	s.mu.Unlock()
	return s.MemoryStore.TouchView(ctx, viewID, ttl)
}

func (s *touchRecordingStore) touched() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.touches...)
}

// orderRows builds n backend order rows; the first delivered are "delivered".
func orderRows(n, delivered int) []map[string]any {
	out := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		status := "placed"
		if i < delivered {
			status = "delivered"
		}
		out = append(out, map[string]any{
			"orderId":      fmt.Sprintf("ord-%04d-abcdef", i),
			"customerName": fmt.Sprintf("Customer %d", i),
			"title":        "Steel Door",
			"phone":        fmt.Sprintf("0712%06d", i),
			"totalPrice":   float64(100),
			"orderStatus":  status,
			"createdAt":    "2024-01-05T10:00:00Z",
		})
	}
	return out
}

type fixture struct {
	store    *redis.MemoryStore
	registry *Registry
	fetcher  *fakeFetcher
	views    ViewService
	logs     *observer.ObservedLogs
}

func newFixture(t *testing.T, fetcher *fakeFetcher) *fixture {
	t.Helper()
	catalog, err := report.LoadCatalog("")
	require.NoError(t, err)
	formatter, err := report.NewFormatter("en-KE", "KES", "Ksh")
	require.NoError(t, err)

	store := redis.NewMemoryStore()
	registry := NewRegistry(store, catalog, time.Hour)
	core, logs := observer.New(zapcore.DebugLevel)
	views := NewViewService(registry, fetcher, formatter, ViewOptions{PageSize: 10}, zap.New(core))
	t.Cleanup(views.Shutdown)

	return &fixture{store: store, registry: registry, fetcher: fetcher, views: views, logs: logs}
}

// waitSettled polls until the view leaves the loading phase.
func waitSettled(t *testing.T, views ViewService, sessionID, viewID string) *report.View {
	t.Helper()
	var view *report.View
	require.Eventually(t, func() bool {
		v, err := views.Get(context.Background(), sessionID, viewID)
		if err != nil || v.Status == report.PhaseLoading {
			return false
		}
		view = v
		return true
	}, 2*time.Second, 5*time.Millisecond)
	return view
}

func mountReady(t *testing.T, f *fixture, reportKey string) *report.View {
	t.Helper()
	v, err := f.views.Mount(context.Background(), sessionA, reportKey)
	require.NoError(t, err)
	return waitSettled(t, f.views, sessionA, v.ID)
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }
