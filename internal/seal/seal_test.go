package seal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ParichayaHQ/vault/internal/crypto"
	"github.com/ParichayaHQ/vault/internal/vaulterr"
)

func writeFixtureVault(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "identity"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "events"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "identity", "genesis.json"), []byte(`{"root_key_id":"bp1_abc"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "events", "events.ndjson"), []byte(`{"type":"GENESIS"}`+"\n"), 0o644))
}

func TestGenerateManifestCoversTrackedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFixtureVault(t, dir)

	m, err := GenerateManifest(dir)
	require.NoError(t, err)
	require.Len(t, m.Files, 2)
	assert.NotEmpty(t, m.MerkleRoot)

	paths := map[string]bool{}
	for _, f := range m.Files {
		paths[f.Path] = true
		assert.NotEmpty(t, f.SHA256)
		assert.NotEmpty(t, f.CID)
	}
	assert.True(t, paths["identity/genesis.json"])
	assert.True(t, paths["events/events.ndjson"])
}

func TestGenerateManifestExcludesSealArtifacts(t *testing.T) {
	dir := t.TempDir()
	writeFixtureVault(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.json"), []byte(`{}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.sig"), []byte("sig"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "merkle_root.txt"), []byte("root"), 0o644))

	m, err := GenerateManifest(dir)
	require.NoError(t, err)
	for _, f := range m.Files {
		assert.NotEqual(t, "manifest.json", f.Path)
		assert.NotEqual(t, "manifest.sig", f.Path)
		assert.NotEqual(t, "merkle_root.txt", f.Path)
	}
}

func TestGenerateManifestRejectsSymlink(t *testing.T) {
	dir := t.TempDir()
	writeFixtureVault(t, dir)
	target := filepath.Join(dir, "identity", "genesis.json")
	link := filepath.Join(dir, "identity", "genesis.link")
	require.NoError(t, os.Symlink(target, link))

	_, err := GenerateManifest(dir)
	require.Error(t, err)
}

func TestSignAndVerifySealRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeFixtureVault(t, dir)

	kp, err := crypto.NewEd25519KeyPair()
	require.NoError(t, err)
	signer := crypto.NewEd25519Signer(kp)

	manifest, err := GenerateManifest(dir)
	require.NoError(t, err)

	sig, err := SignManifest(manifest, signer)
	require.NoError(t, err)

	report, err := VerifySeal(dir, manifest, sig, kp.PublicKey)
	require.NoError(t, err)
	assert.True(t, report.OK())
}

func TestVerifySealDetectsTamperedFile(t *testing.T) {
	dir := t.TempDir()
	writeFixtureVault(t, dir)

	kp, err := crypto.NewEd25519KeyPair()
	require.NoError(t, err)
	signer := crypto.NewEd25519Signer(kp)

	manifest, err := GenerateManifest(dir)
	require.NoError(t, err)
	sig, err := SignManifest(manifest, signer)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "identity", "genesis.json"), []byte(`{"root_key_id":"bp1_tampered"}`), 0o644))

	report, err := VerifySeal(dir, manifest, sig, kp.PublicKey)
	require.NoError(t, err)
	assert.False(t, report.OK())

	var sawHashMismatch bool
	for _, issue := range report.Issues {
		if issue.Path == "identity/genesis.json" {
			sawHashMismatch = true
		}
	}
	assert.True(t, sawHashMismatch)
}

func TestVerifySealDetectsMissingFile(t *testing.T) {
	dir := t.TempDir()
	writeFixtureVault(t, dir)

	kp, err := crypto.NewEd25519KeyPair()
	require.NoError(t, err)
	signer := crypto.NewEd25519Signer(kp)

	manifest, err := GenerateManifest(dir)
	require.NoError(t, err)
	sig, err := SignManifest(manifest, signer)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, "events", "events.ndjson")))

	report, err := VerifySeal(dir, manifest, sig, kp.PublicKey)
	require.NoError(t, err)
	assert.False(t, report.OK())
}

func TestVerifySealDetectsUntrackedFile(t *testing.T) {
	dir := t.TempDir()
	writeFixtureVault(t, dir)

	kp, err := crypto.NewEd25519KeyPair()
	require.NoError(t, err)
	signer := crypto.NewEd25519Signer(kp)

	manifest, err := GenerateManifest(dir)
	require.NoError(t, err)
	sig, err := SignManifest(manifest, signer)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "events", "extra.txt"), []byte("surprise"), 0o644))

	report, err := VerifySeal(dir, manifest, sig, kp.PublicKey)
	require.NoError(t, err)
	assert.False(t, report.OK())

	var sawUntracked bool
	for _, issue := range report.Issues {
		if issue.Path == "events/extra.txt" {
			sawUntracked = true
			assert.Equal(t, vaulterr.KindUntrackedFile, issue.Kind)
		}
	}
	assert.True(t, sawUntracked)
}

func TestVerifySealDetectsBadSignature(t *testing.T) {
	dir := t.TempDir()
	writeFixtureVault(t, dir)

	kp, err := crypto.NewEd25519KeyPair()
	require.NoError(t, err)
	signer := crypto.NewEd25519Signer(kp)

	manifest, err := GenerateManifest(dir)
	require.NoError(t, err)
	_, err = SignManifest(manifest, signer)
	require.NoError(t, err)

	otherKP, err := crypto.NewEd25519KeyPair()
	require.NoError(t, err)
	otherSigner := crypto.NewEd25519Signer(otherKP)
	wrongSig, err := SignManifest(manifest, otherSigner)
	require.NoError(t, err)

	report, err := VerifySeal(dir, manifest, wrongSig, kp.PublicKey)
	require.NoError(t, err)
	assert.False(t, report.OK())
}
