package node

import (
	"fmt"
	"time"

	"rubin.dev/chia-consensus/crypto/bls"

	bolt "go.etcd.io/bbolt"
)

var bucketBlsCache = []byte("bls_aggregate_verify_cache")

// BlsCacheStore persists a bls.Cache's verified-signature entries to a
// small on-disk bbolt database, so a CLI invocation (or a node restart)
// doesn't have to re-run every aggregate verification it already paid
// for in a previous process. Adapts the teacher's bolt.Open/bucket
// pattern to a single flat key-value bucket instead of a block store.
type BlsCacheStore struct {
	db *bolt.DB
}

// OpenBlsCacheStore opens (creating if necessary) the bbolt database at
// path and ensures its single bucket exists.
func OpenBlsCacheStore(path string) (*BlsCacheStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bls cache db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketBlsCache)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bls cache bucket: %w", err)
	}
	return &BlsCacheStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BlsCacheStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load builds a bls.Cache pre-populated with every entry this store
// has previously saved.
func (s *BlsCacheStore) Load() (*bls.Cache, error) {
	cache := bls.NewCache()
	entries := make(map[string]bool)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBlsCache)
		return b.ForEach(func(k, v []byte) error {
			if len(v) != 1 {
				return fmt.Errorf("bls cache entry %x has unexpected length %d", k, len(v))
			}
			entries[string(k)] = v[0] != 0
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	cache.Restore(entries)
	return cache, nil
}

// Save writes every entry currently held by cache into the store,
// overwriting any prior value for the same key.
func (s *BlsCacheStore) Save(cache *bls.Cache) error {
	entries := cache.Snapshot()
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBlsCache)
		for k, v := range entries {
			val := byte(0)
			if v {
				val = 1
			}
			if err := b.Put([]byte(k), []byte{val}); err != nil {
				return err
			}
		}
		return nil
	})
}
