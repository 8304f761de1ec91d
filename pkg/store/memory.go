package store

import (
	"context"
	"sync"
	"time"

	"github.com/platformbuilds/dashboard-core/internal/monitoring"
	"github.com/platformbuilds/dashboard-core/pkg/logger"
)

// memoryStore is an in-process store for development, tests and as the
// starting point of the auto-swapping store. Data is not shared across
// replicas and is lost on restart.
type memoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	locks   map[string]memoryLock
	tokens  *lockTokens
	now     func() time.Time
	logger  logger.Logger
}

type memoryLock struct {
	token     string
	expiresAt time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero: never
}

func NewMemoryStore(log logger.Logger) RecordStore {
	if log == nil {
		log = logger.NewNop()
	}
	log.Warn("Using in-memory record store; dashboards are lost on restart")
	return newMemoryStore(log)
}

func newMemoryStore(log logger.Logger) *memoryStore {
	return &memoryStore{
		entries: make(map[string]memoryEntry),
		locks:   make(map[string]memoryLock),
		tokens:  newLockTokens(),
		now:     time.Now,
		logger:  log,
	}
}

func (m *memoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || e.expired(m.now()) {
		monitoring.RecordStoreOperation("get", "miss")
		return nil, keyNotFound(key)
	}
	monitoring.RecordStoreOperation("get", "hit")
	return append([]byte(nil), e.value...), nil
}

func (m *memoryStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	b, err := encodeValue(key, value)
	if err != nil {
		monitoring.RecordStoreOperation("set", "error")
		return err
	}
	e := memoryEntry{value: append([]byte(nil), b...)}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	monitoring.RecordStoreOperation("set", "success")
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	monitoring.RecordStoreOperation("delete", "success")
	return nil
}

func (m *memoryStore) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	lk := lockKey(key)
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	if l, held := m.locks[lk]; held && now.Before(l.expiresAt) {
		monitoring.RecordStoreOperation("acquire_lock", "conflict")
		return false, nil
	}
	token := m.tokens.next()
	m.locks[lk] = memoryLock{token: token, expiresAt: now.Add(ttl)}
	m.tokens.put(lk, token)
	monitoring.RecordStoreOperation("acquire_lock", "success")
	return true, nil
}

// ReleaseLock removes the lock only while it still carries our token.
func (m *memoryStore) ReleaseLock(ctx context.Context, key string) error {
	lk := lockKey(key)
	token, ok := m.tokens.take(lk)
	if !ok {
		return nil
	}
	m.mu.Lock()
	if l, held := m.locks[lk]; held && l.token == token {
		delete(m.locks, lk)
	}
	m.mu.Unlock()
	monitoring.RecordStoreOperation("release_lock", "success")
	return nil
}

func (m *memoryStore) HealthCheck(ctx context.Context) error { return nil }

func (m *memoryStore) Backend() string { return "memory" }

func (m *memoryStore) Close() error { return nil }

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}
