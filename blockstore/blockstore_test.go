package blockstore_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/ipfs/go-cid"

	"github.com/jacekv/minisol/blockstore"
	"github.com/jacekv/minisol/blockstore/testkit"
)

func TestFSStoreConformance(t *testing.T) {
	testkit.RunStoreConformance(t, func(t *testing.T) blockstore.Store {
		st, err := blockstore.NewFS(t.TempDir())
		if err != nil {
			t.Fatalf("NewFS: %v", err)
		}
		return st
	})
}

func TestMemStoreConformance(t *testing.T) {
	testkit.RunStoreConformance(t, func(t *testing.T) blockstore.Store {
		return blockstore.NewMem()
	})
}

func TestMultiStoreConformance(t *testing.T) {
	testkit.RunStoreConformance(t, func(t *testing.T) blockstore.Store {
		fs, err := blockstore.NewFS(t.TempDir())
		if err != nil {
			t.Fatalf("NewFS: %v", err)
		}
		return blockstore.MultiStore{Stores: []blockstore.Store{blockstore.NewMem(), fs}}
	})
}

func TestMultiStoreFallback(t *testing.T) {
	primary := blockstore.NewMem()
	secondary := blockstore.NewMem()
	id, err := secondary.Put([]byte("only in the fallback"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	multi := blockstore.MultiStore{Stores: []blockstore.Store{primary, secondary}}
	got, err := multi.Get(id)
	if err != nil {
		t.Fatalf("Get through fallback: %v", err)
	}
	if string(got) != "only in the fallback" {
		t.Fatalf("fallback bytes mismatch")
	}
	if primary.Has(id) {
		t.Fatal("fallback read wrote to the primary")
	}
}

func TestFSStoreImmutable(t *testing.T) {
	dir := t.TempDir()
	st, err := blockstore.NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	if _, err := st.Put([]byte("block")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	// Same bytes again is idempotent, not a violation.
	if _, err := st.Put([]byte("block")); err != nil {
		t.Fatalf("repeat Put: %v", err)
	}
}

// failingStore returns a non-NotFound error from Get.
type failingStore struct{ err error }

func (f failingStore) Put(b []byte) (cid.Cid, error) { return blockstore.BlockCID(b) }
func (f failingStore) Get(cid.Cid) ([]byte, error)   { return nil, f.err }
func (f failingStore) Has(cid.Cid) bool              { return false }

func TestMultiStorePropagatesRealErrors(t *testing.T) {
	backing := blockstore.NewMem()
	id, err := backing.Put([]byte("reachable"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	broken := failingStore{err: errors.New("disk on fire")}
	multi := blockstore.MultiStore{Stores: []blockstore.Store{broken, backing}}

	// A store failure that is not ErrNotFound must surface, not be
	// papered over by the fallback.
	if _, err := multi.Get(id); err == nil || !strings.Contains(err.Error(), "disk on fire") {
		t.Fatalf("expected the store failure, got %v", err)
	}

	// ErrNotFound from the first store still falls through.
	missing := blockstore.MultiStore{Stores: []blockstore.Store{blockstore.NewMem(), backing}}
	got, err := missing.Get(id)
	if err != nil {
		t.Fatalf("fallback Get: %v", err)
	}
	if string(got) != "reachable" {
		t.Fatal("fallback bytes mismatch")
	}
}
