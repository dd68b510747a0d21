package node

import (
	"path/filepath"
	"testing"

	"rubin.dev/chia-consensus/crypto/bls"
)

func TestBlsCacheStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bls-cache.db")

	store, err := OpenBlsCacheStore(path)
	if err != nil {
		t.Fatalf("OpenBlsCacheStore: %v", err)
	}

	cache := bls.NewCache()
	cache.Restore(map[string]bool{"aa": true, "bb": false})

	if err := store.Save(cache); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenBlsCacheStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })

	loaded, err := reopened.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	snap := loaded.Snapshot()
	if len(snap) != 2 || !snap["aa"] || snap["bb"] {
		t.Fatalf("unexpected snapshot after reload: %#v", snap)
	}
}

func TestBlsCacheStoreEmptyLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bls-cache.db")

	store, err := OpenBlsCacheStore(path)
	if err != nil {
		t.Fatalf("OpenBlsCacheStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	cache, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cache.Snapshot()) != 0 {
		t.Fatalf("expected an empty cache from a fresh store")
	}
}
