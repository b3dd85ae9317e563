// Package cid wraps go-cid/go-multihash to compute the CIDv1
// content identifier recorded alongside each manifest entry's sha256.
package cid

import (
	"crypto/sha256"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// CIDGenerator provides content identifier generation functionality
type CIDGenerator struct{}

// NewCIDGenerator creates a new CID generator
func NewCIDGenerator() *CIDGenerator {
	return &CIDGenerator{}
}

// GenerateFromBytes generates a CID from raw bytes using SHA-256
func (g *CIDGenerator) GenerateFromBytes(data []byte) (cid.Cid, error) {
	if len(data) == 0 {
		return cid.Undef, fmt.Errorf("cannot generate CID from empty data")
	}

	hash := sha256.Sum256(data)

	mh, err := multihash.Encode(hash[:], multihash.SHA2_256)
	if err != nil {
		return cid.Undef, fmt.Errorf("failed to create multihash: %w", err)
	}

	c := cid.NewCidV1(cid.DagJSON, mh)
	return c, nil
}
