package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/platformbuilds/dashboard-core/internal/monitoring"
)

var (
	recordsBucket = []byte("records")
	locksBucket   = []byte("locks")
)

// boltStore keeps records in a single bbolt file. Each value is stored
// with an 8-byte big-endian expiry prefix (unix nanos, 0 = never).
type boltStore struct {
	db     *bolt.DB
	tokens *lockTokens
	now    func() time.Time
}

// NewBoltStore opens (creating if needed) the bbolt file at path.
func NewBoltStore(path string) (RecordStore, error) {
	return openBolt(path)
}

func openBolt(path string) (*boltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt store %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{recordsBucket, locksBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init bolt buckets: %w", err)
	}
	return &boltStore{db: db, tokens: newLockTokens(), now: time.Now}, nil
}

func (b *boltStore) Get(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(recordsBucket).Get([]byte(key))
		exp, val, ok := splitExpiry(raw)
		if !ok || expiredAt(exp, b.now()) {
			return keyNotFound(key)
		}
		out = append([]byte(nil), val...)
		return nil
	})
	switch {
	case err == nil:
		monitoring.RecordStoreOperation("get", "hit")
	case isNotFound(err):
		monitoring.RecordStoreOperation("get", "miss")
	default:
		monitoring.RecordStoreOperation("get", "error")
	}
	return out, err
}

func (b *boltStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := encodeValue(key, value)
	if err != nil {
		monitoring.RecordStoreOperation("set", "error")
		return err
	}
	var exp time.Time
	if ttl > 0 {
		exp = b.now().Add(ttl)
	}
	err = b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(recordsBucket).Put([]byte(key), joinExpiry(exp, data))
	})
	if err != nil {
		monitoring.RecordStoreOperation("set", "error")
		return fmt.Errorf("bolt put %s: %w", key, err)
	}
	monitoring.RecordStoreOperation("set", "success")
	return nil
}

func (b *boltStore) Delete(ctx context.Context, key string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(recordsBucket).Delete([]byte(key))
	})
	if err != nil {
		monitoring.RecordStoreOperation("delete", "error")
		return err
	}
	monitoring.RecordStoreOperation("delete", "success")
	return nil
}

// AcquireLock is atomic because bbolt serializes read-write transactions.
func (b *boltStore) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	lk := []byte(lockKey(key))
	now := b.now()
	token := b.tokens.next()
	acquired := false
	err := b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(locksBucket)
		if exp, _, ok := splitExpiry(bkt.Get(lk)); ok && !expiredAt(exp, now) {
			return nil
		}
		acquired = true
		return bkt.Put(lk, joinExpiry(now.Add(ttl), []byte(token)))
	})
	switch {
	case err != nil:
		monitoring.RecordStoreOperation("acquire_lock", "error")
		return false, err
	case !acquired:
		monitoring.RecordStoreOperation("acquire_lock", "conflict")
	default:
		b.tokens.put(string(lk), token)
		monitoring.RecordStoreOperation("acquire_lock", "success")
	}
	return acquired, nil
}

// ReleaseLock removes the lock only while it still carries our token.
func (b *boltStore) ReleaseLock(ctx context.Context, key string) error {
	lk := lockKey(key)
	token, ok := b.tokens.take(lk)
	if !ok {
		return nil
	}
	err := b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(locksBucket)
		if _, owner, held := splitExpiry(bkt.Get([]byte(lk))); !held || string(owner) != token {
			return nil
		}
		return bkt.Delete([]byte(lk))
	})
	if err != nil {
		monitoring.RecordStoreOperation("release_lock", "error")
		return err
	}
	monitoring.RecordStoreOperation("release_lock", "success")
	return nil
}

func (b *boltStore) HealthCheck(ctx context.Context) error {
	return b.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(recordsBucket) == nil {
			return fmt.Errorf("bolt store: bucket %s missing", recordsBucket)
		}
		return nil
	})
}

func (b *boltStore) Backend() string { return "bolt" }

func (b *boltStore) Close() error { return b.db.Close() }

func joinExpiry(exp time.Time, val []byte) []byte {
	out := make([]byte, 8+len(val))
	if !exp.IsZero() {
		binary.BigEndian.PutUint64(out, uint64(exp.UnixNano()))
	}
	copy(out[8:], val)
	return out
}

func splitExpiry(raw []byte) (int64, []byte, bool) {
	if len(raw) < 8 {
		return 0, nil, false
	}
	return int64(binary.BigEndian.Uint64(raw[:8])), raw[8:], true
}

func expiredAt(exp int64, now time.Time) bool {
	return exp != 0 && now.UnixNano() >= exp
}
