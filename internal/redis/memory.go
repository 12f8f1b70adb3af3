package redis

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"eurodoor_admin/internal/models"
	"eurodoor_admin/internal/report"
)

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore mirrors Client in process memory. It is meant for local
// development (REDIS_URL=memory) and tests; state is not shared between replicas.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memEntry), now: time.Now}
}

func (m *MemoryStore) SetSession(ctx context.Context, session *models.AdminSession, ttl time.Duration) error {
	return m.set(sessionPrefix+session.ID, session, ttl)
}

func (m *MemoryStore) GetSession(ctx context.Context, sessionID string) (*models.AdminSession, error) {
	var session models.AdminSession
	if err := m.get(sessionPrefix+sessionID, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (m *MemoryStore) DeleteSession(ctx context.Context, sessionID string) error {
	m.del(sessionPrefix + sessionID)
	return nil
}

func (m *MemoryStore) SetView(ctx context.Context, state *report.ViewState, ttl time.Duration) error {
	return m.set(viewPrefix+state.ID, state, ttl)
}

func (m *MemoryStore) GetView(ctx context.Context, viewID string) (*report.ViewState, error) {
	var state report.ViewState
	if err := m.get(viewPrefix+viewID, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (m *MemoryStore) TouchView(ctx context.Context, viewID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := viewPrefix + viewID
	e, ok := m.entries[k]
	if !ok || e.expired(m.now()) {
		delete(m.entries, k)
		return ErrNotFound
	}
	e.expiresAt = m.deadline(ttl)
	m.entries[k] = e
	return nil
}

func (m *MemoryStore) DeleteView(ctx context.Context, viewID string) error {
	m.del(viewPrefix + viewID)
	return nil
}

func (m *MemoryStore) AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := lockPrefix + key
	if e, ok := m.entries[k]; ok && !e.expired(m.now()) {
		return false, nil
	}
	m.entries[k] = memEntry{value: []byte(token), expiresAt: m.deadline(ttl)}
	return true, nil
}

func (m *MemoryStore) ReleaseLock(ctx context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := lockPrefix + key
	if e, ok := m.entries[k]; ok && string(e.value) == token {
		delete(m.entries, k)
	}
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) set(key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.entries[key] = memEntry{value: data, expiresAt: m.deadline(ttl)}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) get(key string, dest interface{}) error {
	m.mu.Lock()
	e, ok := m.entries[key]
	if ok && e.expired(m.now()) {
		delete(m.entries, key)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(e.value, dest)
}

func (m *MemoryStore) del(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

func (m *MemoryStore) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}
