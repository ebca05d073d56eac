// Package blockstore provides content-addressed storage for ledger
// snapshot blocks. Blocks are immutable and keyed by CIDv1 (raw codec,
// sha2-256 multihash) derived from their bytes.
package blockstore

import (
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// Store is a minimal content-addressable block store.
//
// Contract:
// - Put MUST be idempotent.
// - Stored blocks MUST be immutable.
// - CIDs MUST be derived from the bytes written.
// - Get MUST return ErrNotFound when the CID is absent.
type Store interface {
	Put(bytes []byte) (cid.Cid, error)
	Get(id cid.Cid) ([]byte, error)
	Has(id cid.Cid) bool
}

// BlockCID returns the CIDv1 (raw + sha2-256) for a block's bytes.
func BlockCID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}
