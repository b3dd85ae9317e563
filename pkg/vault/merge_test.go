package vault

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ParichayaHQ/vault/internal/events"
)

func TestUnionMergeCombinesDisjointObservations(t *testing.T) {
	root := t.TempDir()
	pathA := filepath.Join(root, "a")
	pathB := filepath.Join(root, "b")
	pathOut := filepath.Join(root, "out")

	resultA, err := Init(pathA, InitOptions{ActorLabel: "alice"})
	require.NoError(t, err)
	resultB, err := Init(pathB, InitOptions{ActorLabel: "bob"})
	require.NoError(t, err)

	_, err = Append(pathA, events.EventTypeObservation,
		map[string]any{"subject": "x", "predicate": "status", "value": "green", "confidence": 0.9},
		resultA.RootPrivateKey, resultA.RootKeyID)
	require.NoError(t, err)
	_, err = Append(pathB, events.EventTypeObservation,
		map[string]any{"subject": "y", "predicate": "status", "value": "blue", "confidence": 0.9},
		resultB.RootPrivateKey, resultB.RootKeyID)
	require.NoError(t, err)

	report, err := UnionMerge(pathA, pathB, pathOut)
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, 2, report.EventsFromA)
	assert.Equal(t, 2, report.EventsFromB)
	assert.Equal(t, 3, report.EventsMerged)

	state, err := Replay(pathOut, "")
	require.NoError(t, err)
	assert.Contains(t, state.Local, "x:status")
	assert.Contains(t, state.Local, "y:status")
}

func TestUnionMergeIsIdempotentOnOverlappingEvents(t *testing.T) {
	root := t.TempDir()
	pathA := filepath.Join(root, "a")
	pathOut := filepath.Join(root, "out")

	resultA, err := Init(pathA, InitOptions{ActorLabel: "alice"})
	require.NoError(t, err)
	_, err = Append(pathA, events.EventTypeObservation,
		map[string]any{"subject": "x", "predicate": "status", "value": "green", "confidence": 0.9},
		resultA.RootPrivateKey, resultA.RootKeyID)
	require.NoError(t, err)

	report, err := UnionMerge(pathA, pathA, pathOut)
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, report.EventsFromA, report.EventsMerged)
}
