package vault

import (
	"crypto/ed25519"
	"encoding/json"
	"os"

	"github.com/ParichayaHQ/vault/internal/crypto"
	"github.com/ParichayaHQ/vault/internal/seal"
	"github.com/ParichayaHQ/vault/internal/vaulterr"
)

// reseal regenerates the manifest and Merkle root from the vault's
// current files and re-signs it with signingKey. Called after init,
// append and rotate; UnionMerge has no signing key and does not
// reseal its output.
func reseal(root string, signingKey ed25519.PrivateKey) error {
	manifest, err := seal.GenerateManifest(root)
	if err != nil {
		return err
	}

	kp, err := crypto.NewEd25519KeyPairFromPrivateKey(signingKey)
	if err != nil {
		return vaulterr.New(vaulterr.KindManifestSignatureInvalid, "vault.reseal", err)
	}
	signer := crypto.NewEd25519Signer(kp)

	sig, err := seal.SignManifest(manifest, signer)
	if err != nil {
		return err
	}

	b, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return vaulterr.New(vaulterr.KindIoError, "vault.reseal", err)
	}
	if err := os.WriteFile(manifestPath(root), b, 0o644); err != nil {
		return vaulterr.WithPath(vaulterr.KindIoError, "vault.reseal", manifestPath(root), err)
	}
	if err := os.WriteFile(sigPath(root), []byte(sig), 0o644); err != nil {
		return vaulterr.WithPath(vaulterr.KindIoError, "vault.reseal", sigPath(root), err)
	}
	if err := os.WriteFile(rootTxtPath(root), []byte(manifest.MerkleRoot+"\n"), 0o644); err != nil {
		return vaulterr.WithPath(vaulterr.KindIoError, "vault.reseal", rootTxtPath(root), err)
	}
	return nil
}

func readManifest(root string) (*seal.Manifest, string, error) {
	b, err := os.ReadFile(manifestPath(root))
	if err != nil {
		return nil, "", vaulterr.WithPath(vaulterr.KindFileMissing, "vault.read_manifest", manifestPath(root), err)
	}
	var m seal.Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, "", vaulterr.New(vaulterr.KindIoError, "vault.read_manifest", err)
	}
	sig, err := os.ReadFile(sigPath(root))
	if err != nil {
		return nil, "", vaulterr.WithPath(vaulterr.KindFileMissing, "vault.read_manifest", sigPath(root), err)
	}
	return &m, string(sig), nil
}
