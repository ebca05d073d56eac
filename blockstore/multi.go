package blockstore

import (
	"errors"

	"github.com/ipfs/go-cid"
)

// MultiStore provides deterministic, ordered fallback across multiple
// stores.
//
// Read order is the slice order in Stores; callers MUST supply a fixed
// order. This avoids map-iteration nondeterminism and makes the retrieval
// strategy explicit.
//
// Put is defined to write only to the first store.
type MultiStore struct {
	Stores []Store
}

func (m MultiStore) Put(bytes []byte) (cid.Cid, error) {
	if len(m.Stores) == 0 {
		return cid.Undef, errors.New("blockstore: MultiStore has no stores")
	}
	return m.Stores[0].Put(bytes)
}

// Get tries each store in order. Only ErrNotFound moves on to the next
// store; any other failure is returned immediately.
func (m MultiStore) Get(id cid.Cid) ([]byte, error) {
	for _, st := range m.Stores {
		b, err := st.Get(id)
		if err == nil {
			return b, nil
		}
		if IsNotFound(err) {
			continue
		}
		return nil, err
	}
	return nil, ErrNotFound
}

func (m MultiStore) Has(id cid.Cid) bool {
	for _, st := range m.Stores {
		if st.Has(id) {
			return true
		}
	}
	return false
}
