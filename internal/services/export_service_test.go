package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"eurodoor_admin/internal/apperr"
	"eurodoor_admin/internal/models"
	"eurodoor_admin/pkg/backend"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newExportService(f *fixture, d *fakeDownloader, rec *fakeRecorder) ExportService {
	return NewExportService(f.registry, d, f.store, rec, time.Minute, zap.NewNop())
}

func TestExportService_Success(t *testing.T) {
	f := newFixture(t, &fakeFetcher{rows: orderRows(3, 0)})
	rec := &fakeRecorder{}
	dl := &fakeDownloader{doc: &backend.Document{ContentType: "application/pdf", Body: []byte("%PDF-1.4")}}
	exports := newExportService(f, dl, rec)
	v := mountReady(t, f, "orders")

	res, err := exports.Export(context.Background(), sessionA, "admin@eurodoor.co.ke", v.ID)
	require.NoError(t, err)

	assert.Equal(t, "order_report.pdf", res.Filename)
	assert.Equal(t, "application/pdf", res.ContentType)
	assert.Equal(t, []byte("%PDF-1.4"), res.Body)

	require.Len(t, rec.exports, 1)
	assert.Equal(t, models.ExportSucceeded, rec.exports[0].Status)
	assert.Equal(t, "admin@eurodoor.co.ke", rec.exports[0].AdminEmail)
	assert.Equal(t, 8, rec.exports[0].Bytes)

	// the lock is released afterwards
	ok, err := f.store.AcquireLock(context.Background(), exportLockPrefix+v.ID, "probe", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExportService_FailureKeepsData(t *testing.T) {
	f := newFixture(t, &fakeFetcher{rows: orderRows(23, 12)})
	rec := &fakeRecorder{}
	dl := &fakeDownloader{err: errors.New("request failed with status code 500")}
	exports := newExportService(f, dl, rec)
	ctx := context.Background()
	v := mountReady(t, f, "orders")

	_, err := exports.Export(ctx, sessionA, "admin@eurodoor.co.ke", v.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.ExportFailed, apperr.KindOf(err))
	assert.Equal(t, "Failed to download PDF report", apperr.PublicMessage(err))

	got, err := f.views.Get(ctx, sessionA, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "Failed to download PDF report", got.ExportError)
	assert.Equal(t, 23, got.FilteredCount)
	assert.Len(t, got.Rows, 10)
	assert.Equal(t, []models.ExportStatus{models.ExportFailed}, rec.exportStatuses())

	// a later success clears the message
	dl.err = nil
	dl.doc = &backend.Document{ContentType: "application/pdf", Body: []byte("ok")}
	_, err = exports.Export(ctx, sessionA, "admin@eurodoor.co.ke", v.ID)
	require.NoError(t, err)

	got, err = f.views.Get(ctx, sessionA, v.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ExportError)
}

func TestExportService_RejectsConcurrentExport(t *testing.T) {
	f := newFixture(t, &fakeFetcher{rows: orderRows(3, 0)})
	rec := &fakeRecorder{}
	dl := &fakeDownloader{
		doc:     &backend.Document{ContentType: "application/pdf", Body: []byte("pdf")},
		gate:    make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	exports := newExportService(f, dl, rec)
	ctx := context.Background()
	v := mountReady(t, f, "orders")

	errc := make(chan error, 1)
	go func() {
		_, err := exports.Export(ctx, sessionA, "admin@eurodoor.co.ke", v.ID)
		errc <- err
	}()
	<-dl.started

	_, err := exports.Export(ctx, sessionA, "admin@eurodoor.co.ke", v.ID)
	assert.Equal(t, apperr.ExportInProgress, apperr.KindOf(err))

	close(dl.gate)
	require.NoError(t, <-errc)
	assert.ElementsMatch(t, []models.ExportStatus{models.ExportRejected, models.ExportSucceeded}, rec.exportStatuses())
}

func TestExportService_UnmountCancelsExport(t *testing.T) {
	f := newFixture(t, &fakeFetcher{rows: orderRows(3, 0)})
	dl := &fakeDownloader{gate: make(chan struct{}), started: make(chan struct{}, 1)}
	exports := newExportService(f, dl, &fakeRecorder{})
	ctx := context.Background()
	v := mountReady(t, f, "orders")

	errc := make(chan error, 1)
	go func() {
		_, err := exports.Export(ctx, sessionA, "admin@eurodoor.co.ke", v.ID)
		errc <- err
	}()
	<-dl.started

	require.NoError(t, f.views.Unmount(ctx, sessionA, v.ID))

	select {
	case err := <-errc:
		assert.Equal(t, apperr.ExportFailed, apperr.KindOf(err))
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("export was not canceled")
	}
}

func TestExportService_RequiresLoadedView(t *testing.T) {
	fetcher := &fakeFetcher{gate: make(chan struct{})}
	f := newFixture(t, fetcher)
	exports := newExportService(f, &fakeDownloader{}, &fakeRecorder{})
	ctx := context.Background()

	v, err := f.views.Mount(ctx, sessionA, "orders")
	require.NoError(t, err)

	_, err = exports.Export(ctx, sessionA, "admin@eurodoor.co.ke", v.ID)
	assert.Equal(t, apperr.ValidationFailed, apperr.KindOf(err))

	_, err = exports.Export(ctx, sessionB, "other@eurodoor.co.ke", v.ID)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
	close(fetcher.gate)
}
