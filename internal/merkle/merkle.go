// Package merkle builds the binary hash tree over a vault's sorted
// file inventory. Leaves are SHA-256 of the canonical JSON of each
// file-entry record; internal nodes are SHA-256 of the concatenation
// of their children; an odd level duplicates its last node rather
// than promoting it unhashed.
package merkle

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/ParichayaHQ/vault/internal/canon"
)

// Entry is one leaf's source record: a tracked file's path, content
// hash, and size. Field order here does not matter — canon.Marshal
// sorts keys before hashing.
type Entry struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// LeafHash returns the hex SHA-256 of the canonical JSON of e.
func LeafHash(e Entry) (string, error) {
	return canon.Hash(e)
}

// Root computes the Merkle root over entries, in the order given.
// Callers are responsible for presenting entries pre-sorted (by
// path) so the root is reproducible across implementations. An empty
// entry list has the well-defined root "" (the empty string); callers
// should treat a zero-file vault as a special case before sealing.
func Root(entries []Entry) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	level := make([][]byte, len(entries))
	for i, e := range entries {
		h, err := LeafHash(e)
		if err != nil {
			return "", err
		}
		b, err := hex.DecodeString(h)
		if err != nil {
			return "", err
		}
		level[i] = b
	}

	for len(level) > 1 {
		level = nextLevel(level)
	}
	return hex.EncodeToString(level[0]), nil
}

// nextLevel hashes pairs of nodes up one level, duplicating the last
// node when the level has an odd count.
func nextLevel(level [][]byte) [][]byte {
	if len(level)%2 == 1 {
		level = append(level, level[len(level)-1])
	}
	next := make([][]byte, 0, len(level)/2)
	for i := 0; i < len(level); i += 2 {
		h := sha256.New()
		h.Write(level[i])
		h.Write(level[i+1])
		next = append(next, h.Sum(nil))
	}
	return next
}
