package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"eurodoor_admin/internal/apperr"
	"eurodoor_admin/internal/redis"
	"eurodoor_admin/internal/report"
)

// ViewStore persists view state between requests.
type ViewStore interface {
	SetView(ctx context.Context, state *report.ViewState, ttl time.Duration) error
	GetView(ctx context.Context, viewID string) (*report.ViewState, error)
	TouchView(ctx context.Context, viewID string, ttl time.Duration) error
	DeleteView(ctx context.Context, viewID string) error
}

// Registry is the view state shared by the view and export services.
// Every read-modify-write of a stored view goes through Modify.
type Registry struct {
	store   ViewStore
	catalog *report.Catalog
	tracker *Tracker
	ttl     time.Duration

	mu sync.Mutex
}

func NewRegistry(store ViewStore, catalog *report.Catalog, ttl time.Duration) *Registry {
	return &Registry{
		store:   store,
		catalog: catalog,
		tracker: NewTracker(),
		ttl:     ttl,
	}
}

func (r *Registry) Catalog() *report.Catalog { return r.catalog }

func (r *Registry) Tracker() *Tracker { return r.tracker }

func (r *Registry) Create(ctx context.Context, state *report.ViewState) error {
	if err := r.store.SetView(ctx, state, r.ttl); err != nil {
		return apperr.Wrap(fmt.Errorf("failed to store view: %w", err))
	}
	return nil
}

// Owned loads a view and checks it belongs to sessionID. Views of other
// sessions are reported as missing.
func (r *Registry) Owned(ctx context.Context, sessionID, viewID string) (*report.ViewState, *report.Definition, error) {
	state, err := r.store.GetView(ctx, viewID)
	if err != nil {
		if errors.Is(err, redis.ErrNotFound) {
			return nil, nil, apperr.NotFoundErr("View not found")
		}
		return nil, nil, apperr.Wrap(fmt.Errorf("failed to load view: %w", err))
	}
	if sessionID != "" && state.SessionID != sessionID {
		return nil, nil, apperr.NotFoundErr("View not found")
	}
	def, ok := r.catalog.Get(state.ReportKey)
	if !ok {
		return nil, nil, apperr.NotFoundErr(fmt.Sprintf("Unknown report %q", state.ReportKey))
	}
	return state, def, nil
}

// Read is Owned for a user read: the view's expiry restarts, so a view that
// is being looked at does not expire.
func (r *Registry) Read(ctx context.Context, sessionID, viewID string) (*report.ViewState, *report.Definition, error) {
	state, def, err := r.Owned(ctx, sessionID, viewID)
	if err != nil {
		return nil, nil, err
	}
	if err := r.store.TouchView(ctx, viewID, r.ttl); err != nil {
		if errors.Is(err, redis.ErrNotFound) {
			return nil, nil, apperr.NotFoundErr("View not found")
		}
		return nil, nil, apperr.Wrap(fmt.Errorf("failed to refresh view: %w", err))
	}
	return state, def, nil
}

// Modify applies fn to the stored view and saves it. An empty sessionID
// skips the ownership check, for background work that already checked it.
// Nothing is saved when fn fails.
func (r *Registry) Modify(ctx context.Context, sessionID, viewID string, fn func(*report.ViewState, *report.Definition) error) (*report.ViewState, *report.Definition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, def, err := r.Owned(ctx, sessionID, viewID)
	if err != nil {
		return nil, nil, err
	}
	if err := fn(state, def); err != nil {
		return nil, nil, err
	}
	if err := r.store.SetView(ctx, state, r.ttl); err != nil {
		return nil, nil, apperr.Wrap(fmt.Errorf("failed to store view: %w", err))
	}
	return state, def, nil
}

// Remove cancels the work tracked for the view and deletes it. It returns
// the number of canceled requests.
func (r *Registry) Remove(ctx context.Context, sessionID, viewID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, _, err := r.Owned(ctx, sessionID, viewID); err != nil {
		return 0, err
	}
	canceled := r.tracker.Cancel(viewID)
	if err := r.store.DeleteView(ctx, viewID); err != nil {
		return canceled, apperr.Wrap(fmt.Errorf("failed to delete view: %w", err))
	}
	return canceled, nil
}
