package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"eurodoor_admin/internal/apperr"
	"eurodoor_admin/internal/redis"
	"eurodoor_admin/internal/report"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestViewService_MountFetchesOnce(t *testing.T) {
	fetcher := &fakeFetcher{rows: orderRows(23, 12), gate: make(chan struct{})}
	f := newFixture(t, fetcher)
	ctx := context.Background()

	v, err := f.views.Mount(ctx, sessionA, "orders")
	require.NoError(t, err)
	assert.Equal(t, report.PhaseLoading, v.Status)
	assert.Equal(t, "Loading orders...", v.Message)
	assert.Nil(t, v.Summary)

	close(fetcher.gate)
	ready := waitSettled(t, f.views, sessionA, v.ID)

	assert.Equal(t, report.PhaseReady, ready.Status)
	assert.Equal(t, 23, ready.FilteredCount)
	assert.Equal(t, 3, ready.TotalPages)
	assert.Len(t, ready.Rows, 10)
	assert.Equal(t, []string{"/api/reports/orders"}, fetcher.calls())

	// reads never refetch
	_, err = f.views.Get(ctx, sessionA, v.ID)
	require.NoError(t, err)
	assert.Len(t, fetcher.calls(), 1)
}

func TestViewService_FetchFailureReplacesView(t *testing.T) {
	f := newFixture(t, &fakeFetcher{err: errors.New("request failed with status code 500")})

	v := mountReady(t, f, "orders")

	assert.Equal(t, report.PhaseError, v.Status)
	assert.Equal(t, "Error: request failed with status code 500", v.Message)
	assert.Nil(t, v.Summary)
	assert.Empty(t, v.Rows)
	assert.Nil(t, v.Pagination)
}

func TestViewService_UnknownReport(t *testing.T) {
	f := newFixture(t, &fakeFetcher{})

	_, err := f.views.Mount(context.Background(), sessionA, "invoices")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
	assert.Empty(t, f.fetcher.calls())
}

func TestViewService_UpdateFiltersAndPages(t *testing.T) {
	f := newFixture(t, &fakeFetcher{rows: orderRows(23, 12)})
	ctx := context.Background()
	v := mountReady(t, f, "orders")

	v, err := f.views.Update(ctx, sessionA, v.ID, ViewUpdate{Action: ActionNext})
	require.NoError(t, err)
	assert.Equal(t, 2, v.Page)

	v, err = f.views.Update(ctx, sessionA, v.ID, ViewUpdate{Filters: map[string]string{"status": "delivered"}})
	require.NoError(t, err)
	assert.Equal(t, 1, v.Page, "filter change resets the page")
	assert.Equal(t, 12, v.FilteredCount)
	assert.Equal(t, 2, v.TotalPages)
	require.NotNil(t, v.Summary)
	assert.Equal(t, "12", v.Summary.Cards[0].Value)
	assert.Equal(t, "Ksh 1,200.00", v.Summary.Cards[1].Value)

	v, err = f.views.Update(ctx, sessionA, v.ID, ViewUpdate{Page: intPtr(99)})
	require.NoError(t, err)
	assert.Equal(t, 2, v.Page, "page is clamped to the last page")
	assert.Len(t, v.Rows, 2)

	v, err = f.views.Update(ctx, sessionA, v.ID, ViewUpdate{Action: ActionNext})
	require.NoError(t, err)
	assert.Equal(t, 2, v.Page)

	v, err = f.views.Update(ctx, sessionA, v.ID, ViewUpdate{Search: strPtr("customer 1")})
	require.NoError(t, err)
	assert.Equal(t, 1, v.Page, "search resets the page")
	// Customer 1 and Customer 10, 11 are delivered
	assert.Equal(t, 3, v.FilteredCount)
	assert.Nil(t, v.Pagination)

	v, err = f.views.Update(ctx, sessionA, v.ID, ViewUpdate{Search: strPtr(""), Filters: map[string]string{"status": ""}})
	require.NoError(t, err)
	assert.Equal(t, 23, v.FilteredCount)
	assert.Equal(t, report.AllValue, v.Criteria.Filters["status"])
}

func TestViewService_UpdateRejectsBadInput(t *testing.T) {
	f := newFixture(t, &fakeFetcher{rows: orderRows(5, 0)})
	ctx := context.Background()
	v := mountReady(t, f, "orders")

	tests := []struct {
		name string
		upd  ViewUpdate
	}{
		{"unknown action", ViewUpdate{Action: "last"}},
		{"unknown filter", ViewUpdate{Filters: map[string]string{"payment": "paid"}}},
		{"invalid option", ViewUpdate{Filters: map[string]string{"status": "shipped"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.views.Update(ctx, sessionA, v.ID, tt.upd)
			assert.Equal(t, apperr.ValidationFailed, apperr.KindOf(err))
		})
	}

	// a rejected update leaves the stored state alone
	got, err := f.views.Get(ctx, sessionA, v.ID)
	require.NoError(t, err)
	assert.Equal(t, report.AllValue, got.Criteria.Filters["status"])
}

func TestViewService_UpdateWhileLoading(t *testing.T) {
	fetcher := &fakeFetcher{gate: make(chan struct{})}
	f := newFixture(t, fetcher)
	ctx := context.Background()

	v, err := f.views.Mount(ctx, sessionA, "orders")
	require.NoError(t, err)

	_, err = f.views.Update(ctx, sessionA, v.ID, ViewUpdate{Search: strPtr("door")})
	assert.Equal(t, apperr.ValidationFailed, apperr.KindOf(err))
	close(fetcher.gate)
}

func TestViewService_OtherSessionCannotSeeView(t *testing.T) {
	f := newFixture(t, &fakeFetcher{rows: orderRows(3, 0)})
	ctx := context.Background()
	v := mountReady(t, f, "orders")

	_, err := f.views.Get(ctx, sessionB, v.ID)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	_, err = f.views.Update(ctx, sessionB, v.ID, ViewUpdate{Action: ActionNext})
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	err = f.views.Unmount(ctx, sessionB, v.ID)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	_, err = f.views.Get(ctx, sessionA, v.ID)
	assert.NoError(t, err)
}

func TestViewService_UnmountCancelsFetch(t *testing.T) {
	fetcher := &fakeFetcher{rows: orderRows(3, 0), gate: make(chan struct{})}
	f := newFixture(t, fetcher)
	ctx := context.Background()

	v, err := f.views.Mount(ctx, sessionA, "orders")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(fetcher.calls()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, f.registry.Tracker().active(v.ID))

	require.NoError(t, f.views.Unmount(ctx, sessionA, v.ID))

	require.Eventually(t, func() bool { return f.registry.Tracker().active(v.ID) == 0 }, time.Second, 5*time.Millisecond)

	// the canceled fetch must not bring the view back
	require.Eventually(t, func() bool { return f.logs.FilterMessage("Fetch canceled").Len() == 1 }, time.Second, 5*time.Millisecond)
	_, err = f.views.Get(ctx, sessionA, v.ID)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	canceled := f.logs.FilterMessage("Fetch canceled").All()
	assert.Equal(t, zapcore.DebugLevel, canceled[0].Level)
	assert.Equal(t, v.ID, canceled[0].ContextMap()["view_id"])
	assert.Zero(t, f.logs.FilterLevelExact(zapcore.WarnLevel).Len())
	assert.Zero(t, f.logs.FilterMessage("Report fetched").Len())
}

func TestViewService_ShutdownCancelsFetch(t *testing.T) {
	fetcher := &fakeFetcher{rows: orderRows(3, 0), gate: make(chan struct{})}
	f := newFixture(t, fetcher)
	ctx := context.Background()

	v, err := f.views.Mount(ctx, sessionA, "orders")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(fetcher.calls()) == 1 }, time.Second, 5*time.Millisecond)

	f.views.Shutdown()

	// the view is still stored but the canceled fetch leaves it loading
	assert.Equal(t, 1, f.logs.FilterMessage("Fetch canceled").Len())
	assert.Zero(t, f.logs.FilterLevelExact(zapcore.WarnLevel).Len())
	got, err := f.views.Get(ctx, sessionA, v.ID)
	require.NoError(t, err)
	assert.Equal(t, report.PhaseLoading, got.Status)
}

func TestViewService_GetRefreshesExpiry(t *testing.T) {
	catalog, err := report.LoadCatalog("")
	require.NoError(t, err)
	formatter, err := report.NewFormatter("en-KE", "KES", "Ksh")
	require.NoError(t, err)
	store := &touchRecordingStore{MemoryStore: redis.NewMemoryStore()}
	views := NewViewService(NewRegistry(store, catalog, time.Hour), &fakeFetcher{rows: orderRows(3, 0)}, formatter, ViewOptions{}, zap.NewNop())
	t.Cleanup(views.Shutdown)
	ctx := context.Background()

	v, err := views.Mount(ctx, sessionA, "orders")
	require.NoError(t, err)
	waitSettled(t, views, sessionA, v.ID)

	before := len(store.touched())
	_, err = views.Get(ctx, sessionA, v.ID)
	require.NoError(t, err)
	touched := store.touched()
	require.Len(t, touched, before+1)
	assert.Equal(t, time.Hour, touched[before])

	// a view of another session is neither shown nor kept alive
	_, err = views.Get(ctx, sessionB, v.ID)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
	assert.Len(t, store.touched(), before+1)
}

func TestViewService_Currency(t *testing.T) {
	f := newFixture(t, &fakeFetcher{})
	assert.Equal(t, "KES", f.views.Currency())
}

func TestViewService_EmptyCollection(t *testing.T) {
	f := newFixture(t, &fakeFetcher{rows: []map[string]any{}})

	v := mountReady(t, f, "suppliers")

	assert.Equal(t, report.PhaseReady, v.Status)
	assert.True(t, v.Empty)
	assert.Equal(t, 0, v.FilteredCount)
	assert.Equal(t, 1, v.TotalPages)
	require.NotNil(t, v.Summary)
	assert.Equal(t, "0", v.Summary.Cards[0].Value)
}

func TestViewService_Reports(t *testing.T) {
	f := newFixture(t, &fakeFetcher{})

	keys := make([]string, 0)
	for _, def := range f.views.Reports() {
		keys = append(keys, def.Key)
	}
	assert.ElementsMatch(t, []string{"orders", "service-bookings", "suppliers"}, keys)
}
