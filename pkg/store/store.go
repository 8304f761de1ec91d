// Package store is the keyed record store behind dashboard persistence.
// Backends: in-process memory, a bbolt file, a single Valkey node, a
// Valkey cluster, and an auto-swapping wrapper that starts in memory and
// upgrades to Valkey once it is reachable.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrKeyNotFound is returned by Get for absent keys.
var ErrKeyNotFound = errors.New("key not found")

// RecordStore is a flat key/value store with advisory locks.
type RecordStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value; []byte and string are stored as-is, anything else
	// as JSON. ttl <= 0 keeps the value until it is overwritten or deleted.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// AcquireLock takes the lock named key for at most ttl. It returns
	// false without error when another holder has it.
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error

	HealthCheck(ctx context.Context) error
	// Backend names the implementation for logs and /ready.
	Backend() string
	Close() error
}

func keyNotFound(key string) error {
	return fmt.Errorf("%w: %s", ErrKeyNotFound, key)
}

func lockKey(key string) string { return "lock:" + key }

// encodeValue applies the Set value rules shared by every backend.
func encodeValue(key string, value interface{}) ([]byte, error) {
	switch x := value.(type) {
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %s: %w", key, err)
		}
		return b, nil
	}
}

func isNotFound(err error) bool { return errors.Is(err, ErrKeyNotFound) }
