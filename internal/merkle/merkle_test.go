package merkle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootDeterministic(t *testing.T) {
	entries := []Entry{
		{Path: "a.txt", SHA256: "aa", Size: 1},
		{Path: "b.txt", SHA256: "bb", Size: 2},
		{Path: "c.txt", SHA256: "cc", Size: 3},
	}

	r1, err := Root(entries)
	require.NoError(t, err)
	r2, err := Root(entries)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
	assert.Len(t, r1, 64)
}

func TestRootChangesOnByteFlip(t *testing.T) {
	base := []Entry{
		{Path: "a.txt", SHA256: "aa", Size: 1},
		{Path: "b.txt", SHA256: "bb", Size: 2},
	}
	r1, err := Root(base)
	require.NoError(t, err)

	tampered := []Entry{
		{Path: "a.txt", SHA256: "ab", Size: 1},
		{Path: "b.txt", SHA256: "bb", Size: 2},
	}
	r2, err := Root(tampered)
	require.NoError(t, err)

	assert.NotEqual(t, r1, r2)
}

func TestRootDetectsRemoval(t *testing.T) {
	full := []Entry{
		{Path: "a.txt", SHA256: "aa", Size: 1},
		{Path: "b.txt", SHA256: "bb", Size: 2},
		{Path: "c.txt", SHA256: "cc", Size: 3},
	}
	r1, err := Root(full)
	require.NoError(t, err)

	missingOne := full[:2]
	r2, err := Root(missingOne)
	require.NoError(t, err)

	assert.NotEqual(t, r1, r2)
}

func TestOddLevelDuplicatesLastNode(t *testing.T) {
	// Three leaves: level 1 duplicates the third to pair it off.
	entries := []Entry{
		{Path: "a", SHA256: "1", Size: 1},
		{Path: "b", SHA256: "2", Size: 1},
		{Path: "c", SHA256: "3", Size: 1},
	}
	root, err := Root(entries)
	require.NoError(t, err)
	assert.NotEmpty(t, root)

	// Duplicating the last node on an odd level pairs the third leaf
	// with itself, so a four-entry tree whose fourth entry repeats the
	// third hashes to exactly the same root.
	dup := append(append([]Entry{}, entries...), entries[2])
	rootDup, err := Root(dup)
	require.NoError(t, err)
	assert.Equal(t, root, rootDup)
}

func TestEmptyEntriesYieldsEmptyRoot(t *testing.T) {
	root, err := Root(nil)
	require.NoError(t, err)
	assert.Equal(t, "", root)
}

func TestSingleEntryRootIsItsLeafHash(t *testing.T) {
	e := Entry{Path: "solo", SHA256: "deadbeef", Size: 4}
	root, err := Root([]Entry{e})
	require.NoError(t, err)
	leaf, err := LeafHash(e)
	require.NoError(t, err)
	assert.Equal(t, leaf, root)
}
