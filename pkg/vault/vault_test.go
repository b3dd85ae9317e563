package vault

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitCreatesSelfVerifyingVault(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "v1")

	result, err := Init(dir, InitOptions{ActorLabel: "alice", SelfTest: true})
	require.NoError(t, err)
	assert.Contains(t, result.RootKeyID, "bp1_")

	report, err := Verify(dir)
	require.NoError(t, err)
	assert.True(t, report.OK())
}

func TestInitRejectsReInitialization(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "v1")

	_, err := Init(dir, InitOptions{ActorLabel: "alice"})
	require.NoError(t, err)

	_, err = Init(dir, InitOptions{ActorLabel: "alice"})
	require.Error(t, err)
}

func TestInitWithQuorumBootstrapsBothKeys(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "v1")

	result, err := Init(dir, InitOptions{ActorLabel: "alice", CreateQuorum: true})
	require.NoError(t, err)
	assert.NotEmpty(t, result.QuorumKeyID)
	assert.NotEqual(t, result.RootKeyID, result.QuorumKeyID)
}
