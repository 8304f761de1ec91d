package store

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// valkeyCluster implements RecordStore against a Valkey cluster. The
// dashboards key and its lock hash to single slots, so SET NX and the
// release script behave as on a single node.
type valkeyCluster struct {
	client *redis.ClusterClient
	locks  *lockTokens
}

func NewValkeyCluster(nodes []string, password string) (RecordStore, error) {
	client := redis.NewClusterClient(&redis.ClusterOptions{
		Addrs:        nodes,
		Password:     password,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	// Test connection to Valkey cluster
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Valkey cluster: %w", err)
	}

	return &valkeyCluster{client: client, locks: newLockTokens()}, nil
}

func (v *valkeyCluster) Get(ctx context.Context, key string) ([]byte, error) {
	return valkeyGet(ctx, v.client, key)
}

func (v *valkeyCluster) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return valkeySet(ctx, v.client, key, value, ttl)
}

func (v *valkeyCluster) Delete(ctx context.Context, key string) error {
	return valkeyDelete(ctx, v.client, key)
}

func (v *valkeyCluster) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return valkeyAcquireLock(ctx, v.client, v.locks, key, ttl)
}

func (v *valkeyCluster) ReleaseLock(ctx context.Context, key string) error {
	return valkeyReleaseLock(ctx, v.client, v.locks, key)
}

func (v *valkeyCluster) HealthCheck(ctx context.Context) error {
	return v.client.Ping(ctx).Err()
}

func (v *valkeyCluster) Backend() string { return "valkey-cluster" }

func (v *valkeyCluster) Close() error { return v.client.Close() }
