package blockstore

import (
	"sync"

	"github.com/ipfs/go-cid"
)

// MemStore is an in-memory block store, safe for concurrent use. The
// daemon uses it when no snapshot directory is configured; tests use it
// for isolation.
type MemStore struct {
	mu     sync.RWMutex
	blocks map[cid.Cid][]byte
}

// NewMem constructs an empty in-memory store.
func NewMem() *MemStore {
	return &MemStore{blocks: make(map[cid.Cid][]byte)}
}

func (s *MemStore) Put(bytes []byte) (cid.Cid, error) {
	id, err := BlockCID(bytes)
	if err != nil {
		return cid.Undef, err
	}
	if !id.Defined() {
		return cid.Undef, ErrInvalidCID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blocks[id]; !ok {
		s.blocks[id] = append([]byte(nil), bytes...)
	}
	return id, nil
}

func (s *MemStore) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, ErrInvalidCID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blocks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (s *MemStore) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blocks[id]
	return ok
}
