package vault

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWarnsWhenNoQuorumConfigured(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "v1")

	result, err := Init(dir, InitOptions{ActorLabel: "alice"})
	require.NoError(t, err)
	assert.Empty(t, result.QuorumKeyID)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "no quorum key")
}

func TestInitWithQuorumHasNoWarnings(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "v1")

	result, err := Init(dir, InitOptions{ActorLabel: "alice", CreateQuorum: true})
	require.NoError(t, err)
	assert.Empty(t, result.Warnings)
}

func TestInitHonorsPolicyFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "v1")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, policiesDir), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, policiesDir, policyFileName),
		[]byte("actor_label: carol\nrequire_quorum: true\n"), 0o644))

	result, err := Init(dir, InitOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, result.QuorumKeyID)
	assert.Empty(t, result.Warnings)

	payload, err := readGenesisPayload(dir)
	require.NoError(t, err)
	assert.Equal(t, "carol", payload.ActorLabel)
}
