// Package snapshot persists point-in-time ledger state as content-
// addressed blocks, with signed manifests binding a snapshot CID to the
// slot and blockhash it captures, and deterministic tar bundles for
// moving snapshots between machines.
package snapshot

import (
	"fmt"

	"github.com/ipfs/go-cid"

	"github.com/jacekv/minisol/blockstore"
	"github.com/jacekv/minisol/ledger"
)

// Write encodes st and stores it as a single block, returning its CID.
func Write(store blockstore.Store, st ledger.State) (cid.Cid, error) {
	if store == nil {
		return cid.Undef, fmt.Errorf("snapshot: nil store")
	}
	return store.Put(EncodeState(st))
}

// Read loads and decodes the snapshot block at id.
func Read(store blockstore.Store, id cid.Cid) (ledger.State, error) {
	if store == nil {
		return ledger.State{}, fmt.Errorf("snapshot: nil store")
	}
	b, err := store.Get(id)
	if err != nil {
		return ledger.State{}, err
	}
	return DecodeState(b)
}

// Capture exports the ledger's current state into store and returns the
// snapshot CID together with a manifest describing it.
func Capture(store blockstore.Store, l *ledger.Ledger) (cid.Cid, Manifest, error) {
	st := l.ExportState()
	block := EncodeState(st)
	id, err := store.Put(block)
	if err != nil {
		return cid.Undef, Manifest{}, err
	}
	return id, NewManifest(id, st, block), nil
}

// Restore loads the snapshot at id and replaces the ledger's state with
// it.
func Restore(store blockstore.Store, l *ledger.Ledger, id cid.Cid) error {
	st, err := Read(store, id)
	if err != nil {
		return err
	}
	l.RestoreState(st)
	return nil
}
