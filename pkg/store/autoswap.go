package store

import (
	"context"
	"sync"
	"time"

	"github.com/platformbuilds/dashboard-core/pkg/logger"
)

const swapRetryInterval = 5 * time.Second

// AutoSwapStore starts on a fallback store and keeps dialing Valkey in
// the background; on the first successful dial it swaps over. Records
// written to the fallback before the swap are copied across for the keys
// listed in carry.
type AutoSwapStore struct {
	mu      sync.RWMutex
	current RecordStore
	logger  logger.Logger
	carry   []string

	stopOnce sync.Once
	stopCh   chan struct{}
	swapped  chan struct{}
}

func newAutoSwapStore(fallback RecordStore, log logger.Logger, interval time.Duration, carry []string, dialReal func() (RecordStore, error)) *AutoSwapStore {
	if log == nil {
		log = logger.NewNop()
	}
	a := &AutoSwapStore{
		current: fallback,
		logger:  log,
		carry:   carry,
		stopCh:  make(chan struct{}),
		swapped: make(chan struct{}),
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-a.stopCh:
				return
			case <-ticker.C:
				real, err := dialReal()
				if err != nil {
					a.logger.Warn("Valkey connection attempt failed; will retry", "error", err)
					continue
				}
				a.swap(real)
				return // stop after first successful swap
			}
		}
	}()

	return a
}

func (a *AutoSwapStore) swap(real RecordStore) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a.mu.Lock()
	old := a.current
	for _, key := range a.carry {
		b, err := old.Get(ctx, key)
		if err != nil {
			continue
		}
		if _, err := real.Get(ctx, key); err == nil {
			continue // never overwrite shared state
		}
		if err := real.Set(ctx, key, b, 0); err != nil {
			a.logger.Warn("Failed to carry record over to Valkey", "key", key, "error", err)
		}
	}
	a.current = real
	a.mu.Unlock()

	close(a.swapped)
	_ = old.Close()
	a.logger.Info("Valkey connection established; switched from in-memory to Valkey store")
}

// Stop stops the background connector.
func (a *AutoSwapStore) Stop() {
	a.stopOnce.Do(func() { close(a.stopCh) })
}

// Swapped is closed once the store has moved to Valkey.
func (a *AutoSwapStore) Swapped() <-chan struct{} { return a.swapped }

func (a *AutoSwapStore) active() RecordStore {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current
}

func (a *AutoSwapStore) Get(ctx context.Context, key string) ([]byte, error) {
	return a.active().Get(ctx, key)
}

func (a *AutoSwapStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return a.active().Set(ctx, key, value, ttl)
}

func (a *AutoSwapStore) Delete(ctx context.Context, key string) error {
	return a.active().Delete(ctx, key)
}

func (a *AutoSwapStore) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return a.active().AcquireLock(ctx, key, ttl)
}

func (a *AutoSwapStore) ReleaseLock(ctx context.Context, key string) error {
	return a.active().ReleaseLock(ctx, key)
}

func (a *AutoSwapStore) HealthCheck(ctx context.Context) error {
	return a.active().HealthCheck(ctx)
}

func (a *AutoSwapStore) Backend() string { return "autoswap:" + a.active().Backend() }

func (a *AutoSwapStore) Close() error {
	a.Stop()
	return a.active().Close()
}

// NewAutoSwapForSingle creates an auto-swapping store that upgrades from
// fallback to a single-node Valkey client when reachable.
func NewAutoSwapForSingle(addr string, db int, password string, log logger.Logger, fallback RecordStore, carry ...string) *AutoSwapStore {
	return newAutoSwapStore(fallback, log, swapRetryInterval, carry, func() (RecordStore, error) {
		return NewValkeySingle(addr, db, password)
	})
}

// NewAutoSwapForCluster creates an auto-swapping store that upgrades from
// fallback to a Valkey cluster client when reachable.
func NewAutoSwapForCluster(nodes []string, password string, log logger.Logger, fallback RecordStore, carry ...string) *AutoSwapStore {
	return newAutoSwapStore(fallback, log, swapRetryInterval, carry, func() (RecordStore, error) {
		return NewValkeyCluster(nodes, password)
	})
}
