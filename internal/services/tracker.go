package services

import (
	"context"
	"sync"
)

// Tracker keeps the cancel functions of the requests running on behalf of
// each view, so unmounting a view stops its fetch and export.
type Tracker struct {
	mu     sync.Mutex
	nextID uint64
	views  map[string]map[uint64]context.CancelFunc
}

func NewTracker() *Tracker {
	return &Tracker{views: make(map[string]map[uint64]context.CancelFunc)}
}

// Track derives a cancelable context for viewID. done must be called when
// the work finishes.
func (t *Tracker) Track(parent context.Context, viewID string) (ctx context.Context, done func()) {
	ctx, cancel := context.WithCancel(parent)

	t.mu.Lock()
	t.nextID++
	id := t.nextID
	if t.views[viewID] == nil {
		t.views[viewID] = make(map[uint64]context.CancelFunc)
	}
	t.views[viewID][id] = cancel
	t.mu.Unlock()

	return ctx, func() {
		t.mu.Lock()
		if m := t.views[viewID]; m != nil {
			delete(m, id)
			if len(m) == 0 {
				delete(t.views, viewID)
			}
		}
		t.mu.Unlock()
		cancel()
	}
}

// Cancel stops everything tracked for viewID and returns how many requests it hit.
func (t *Tracker) Cancel(viewID string) int {
	t.mu.Lock()
	m := t.views[viewID]
	delete(t.views, viewID)
	t.mu.Unlock()

	for _, cancel := range m {
		cancel()
	}
	return len(m)
}

// CancelAll stops all tracked work, used on shutdown.
func (t *Tracker) CancelAll() {
	t.mu.Lock()
	views := t.views
	t.views = make(map[string]map[uint64]context.CancelFunc)
	t.mu.Unlock()

	for _, m := range views {
		for _, cancel := range m {
			cancel()
		}
	}
}

func (t *Tracker) active(viewID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.views[viewID])
}
