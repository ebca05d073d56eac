package snapshot

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ipfs/go-cid"

	"github.com/jacekv/minisol/blockstore"
)

// Bundle entry layout: every snapshot block under blocks/<cid>, plus a
// manifest.json describing (and optionally signing) the primary snapshot.

var epoch0 = time.Unix(0, 0).UTC()

// Export writes a deterministic TAR bundle containing the given snapshot
// blocks and the manifest.
//
// The bundle bytes are deterministic: entry order is lexicographic and
// TAR headers are normalized. All exported bytes are validated against
// their CIDs.
func Export(w io.Writer, store blockstore.Store, ids []cid.Cid, manifest Manifest) error {
	if store == nil {
		return fmt.Errorf("snapshot: nil store")
	}

	uniq := make(map[string]cid.Cid, len(ids))
	for _, id := range ids {
		if !id.Defined() {
			return blockstore.ErrInvalidCID
		}
		uniq[id.String()] = id
	}
	cidStrings := make([]string, 0, len(uniq))
	for s := range uniq {
		cidStrings = append(cidStrings, s)
	}
	sort.Strings(cidStrings)

	tw := tar.NewWriter(w)
	for _, s := range cidStrings {
		id := uniq[s]
		b, err := store.Get(id)
		if err != nil {
			_ = tw.Close()
			return err
		}
		got, err := blockstore.BlockCID(b)
		if err != nil {
			_ = tw.Close()
			return err
		}
		if got.String() != id.String() {
			_ = tw.Close()
			return blockstore.ErrCIDMismatch
		}
		if err := writeFile(tw, "blocks/"+id.String(), b); err != nil {
			_ = tw.Close()
			return err
		}
	}

	encoded, err := manifest.Encode()
	if err != nil {
		_ = tw.Close()
		return err
	}
	if err := writeFile(tw, "manifest.json", encoded); err != nil {
		_ = tw.Close()
		return err
	}
	return tw.Close()
}

// Import reads a bundle from r, imports every block into store, and
// returns the bundle's manifest.
//
// Import is fail-closed: unknown entries, duplicate blocks, or blocks
// whose bytes do not match their filename CID cause an error. Manifest
// signatures are verified; a bundle whose manifest does not match its
// snapshot block is rejected.
func Import(r io.Reader, store blockstore.Store) (Manifest, error) {
	if store == nil {
		return Manifest{}, fmt.Errorf("snapshot: nil store")
	}

	tr := tar.NewReader(r)
	seen := map[string]struct{}{}
	var manifest *Manifest

	for {
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Manifest{}, err
		}
		name := cleanTarPath(h.Name)
		if name == "" {
			return Manifest{}, fmt.Errorf("snapshot: invalid entry path: %q", h.Name)
		}
		if h.Typeflag != tar.TypeReg {
			return Manifest{}, fmt.Errorf("snapshot: unexpected tar entry type: %v (%s)", h.Typeflag, name)
		}

		if name == "manifest.json" {
			b, err := io.ReadAll(tr)
			if err != nil {
				return Manifest{}, err
			}
			m, err := DecodeManifest(b)
			if err != nil {
				return Manifest{}, err
			}
			manifest = &m
			continue
		}

		if !strings.HasPrefix(name, "blocks/") {
			return Manifest{}, fmt.Errorf("snapshot: unknown entry: %s", name)
		}
		cidStr := strings.TrimPrefix(name, "blocks/")
		id, derr := cid.Decode(cidStr)
		if derr != nil || !id.Defined() {
			return Manifest{}, blockstore.ErrInvalidCID
		}

		payload, err := io.ReadAll(tr)
		if err != nil {
			return Manifest{}, err
		}
		got, err := blockstore.BlockCID(payload)
		if err != nil {
			return Manifest{}, err
		}
		if got.String() != id.String() {
			return Manifest{}, blockstore.ErrCIDMismatch
		}

		if _, ok := seen[id.String()]; ok {
			return Manifest{}, fmt.Errorf("snapshot: duplicate block entry: %s", id)
		}
		seen[id.String()] = struct{}{}

		putID, err := store.Put(payload)
		if err != nil {
			return Manifest{}, err
		}
		if putID.String() != id.String() {
			return Manifest{}, blockstore.ErrCIDMismatch
		}
	}

	if manifest == nil {
		return Manifest{}, fmt.Errorf("snapshot: bundle has no manifest")
	}
	if _, ok := seen[manifest.Snapshot]; !ok {
		return Manifest{}, fmt.Errorf("snapshot: manifest names block %s not present in bundle", manifest.Snapshot)
	}
	if err := manifest.VerifySignatures(); err != nil {
		return Manifest{}, err
	}
	id, err := cid.Decode(manifest.Snapshot)
	if err != nil {
		return Manifest{}, blockstore.ErrInvalidCID
	}
	block, err := store.Get(id)
	if err != nil {
		return Manifest{}, err
	}
	if err := manifest.VerifyBlock(block); err != nil {
		return Manifest{}, err
	}
	return *manifest, nil
}

func writeFile(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		Uid:      0,
		Gid:      0,
		Uname:    "",
		Gname:    "",
		ModTime:  epoch0,
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := io.Copy(tw, bytes.NewReader(content))
	return err
}

func cleanTarPath(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return ""
	}
	parts := strings.Split(name, "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" || part == "." || part == ".." {
			return ""
		}
		out = append(out, part)
	}
	return strings.Join(out, "/")
}
