package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platformbuilds/dashboard-core/internal/monitoring"
)

// valkeySingle implements RecordStore against a single-node Valkey/Redis instance.
type valkeySingle struct {
	client *redis.Client
	locks  *lockTokens
}

func NewValkeySingle(addr string, db int, password string) (RecordStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Valkey single-node: %w", err)
	}

	return &valkeySingle{client: client, locks: newLockTokens()}, nil
}

func (v *valkeySingle) Get(ctx context.Context, key string) ([]byte, error) {
	return valkeyGet(ctx, v.client, key)
}

func (v *valkeySingle) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return valkeySet(ctx, v.client, key, value, ttl)
}

func (v *valkeySingle) Delete(ctx context.Context, key string) error {
	return valkeyDelete(ctx, v.client, key)
}

func (v *valkeySingle) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return valkeyAcquireLock(ctx, v.client, v.locks, key, ttl)
}

func (v *valkeySingle) ReleaseLock(ctx context.Context, key string) error {
	return valkeyReleaseLock(ctx, v.client, v.locks, key)
}

// HealthCheck pings the Valkey single-node instance.
func (v *valkeySingle) HealthCheck(ctx context.Context) error {
	return v.client.Ping(ctx).Err()
}

func (v *valkeySingle) Backend() string { return "valkey" }

func (v *valkeySingle) Close() error { return v.client.Close() }

/* ------------- operations shared by the single-node and cluster clients ------------- */

func valkeyGet(ctx context.Context, c redis.Cmdable, key string) ([]byte, error) {
	b, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		monitoring.RecordStoreOperation("get", "miss")
		return nil, keyNotFound(key)
	}
	if err != nil {
		monitoring.RecordStoreOperation("get", "error")
		return nil, err
	}
	monitoring.RecordStoreOperation("get", "hit")
	return b, nil
}

func valkeySet(ctx context.Context, c redis.Cmdable, key string, value interface{}, ttl time.Duration) error {
	data, err := encodeValue(key, value)
	if err != nil {
		monitoring.RecordStoreOperation("set", "error")
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := c.Set(ctx, key, data, ttl).Err(); err != nil {
		monitoring.RecordStoreOperation("set", "error")
		return err
	}
	monitoring.RecordStoreOperation("set", "success")
	return nil
}

func valkeyDelete(ctx context.Context, c redis.Cmdable, key string) error {
	if err := c.Del(ctx, key).Err(); err != nil {
		monitoring.RecordStoreOperation("delete", "error")
		return err
	}
	monitoring.RecordStoreOperation("delete", "success")
	return nil
}

/* --------------------------- distributed locks --------------------------- */

// releaseScript deletes the lock only while it still holds our token, so
// a holder whose lock expired cannot release someone else's.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func valkeyAcquireLock(ctx context.Context, c redis.Cmdable, locks *lockTokens, key string, ttl time.Duration) (bool, error) {
	lk := lockKey(key)
	token := locks.next()

	// SET NX PX for atomic locking
	set, err := c.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		monitoring.RecordStoreOperation("acquire_lock", "error")
		return false, err
	}
	if !set {
		monitoring.RecordStoreOperation("acquire_lock", "conflict")
		return false, nil
	}
	locks.put(lk, token)
	monitoring.RecordStoreOperation("acquire_lock", "success")
	return true, nil
}

func valkeyReleaseLock(ctx context.Context, c redis.Cmdable, locks *lockTokens, key string) error {
	lk := lockKey(key)
	token, ok := locks.take(lk)
	if !ok {
		return nil
	}
	if err := releaseScript.Run(ctx, c, []string{lk}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		monitoring.RecordStoreOperation("release_lock", "error")
		return err
	}
	monitoring.RecordStoreOperation("release_lock", "success")
	return nil
}
