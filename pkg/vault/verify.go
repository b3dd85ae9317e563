package vault

import (
	"github.com/ParichayaHQ/vault/internal/eventlog"
	"github.com/ParichayaHQ/vault/internal/keyregistry"
	"github.com/ParichayaHQ/vault/internal/seal"
	"github.com/ParichayaHQ/vault/internal/vaulterr"
)

// VerifyReport is the outcome of verifying a vault end to end: every
// actor's chain, plus the seal over the file tree that chain lives in.
type VerifyReport struct {
	ChainIssues []eventlog.ChainIssue
	SealIssues  []seal.SealIssue
}

// OK reports whether the vault is fully intact.
func (r VerifyReport) OK() bool {
	return len(r.ChainIssues) == 0 && len(r.SealIssues) == 0
}

// Verify runs the chain-integrity checks (per-actor continuity, fork
// detection, signature validity, key authorization) and the seal
// checks (file inventory, Merkle root, manifest signature) and
// returns every discrepancy found.
func Verify(vaultPath string) (VerifyReport, error) {
	log, err := openLog(vaultPath)
	if err != nil {
		return VerifyReport{}, err
	}
	registry := rebuildRegistry(log)

	chainReport := log.VerifyChain(registry)

	manifest, sigB64, err := readManifest(vaultPath)
	if err != nil {
		return VerifyReport{}, err
	}

	sealReport, err := verifySealAgainstTree(vaultPath, manifest, sigB64, registry)
	if err != nil {
		return VerifyReport{}, err
	}

	return VerifyReport{ChainIssues: chainReport.Issues, SealIssues: sealReport.Issues}, nil
}

// verifySealAgainstTree recomputes the manifest from disk and checks
// it against the recorded one (files, size, Merkle root), then
// verifies the signature under whichever key the manifest names as
// its signer.
func verifySealAgainstTree(vaultPath string, manifest *seal.Manifest, sigB64 string, registry *keyregistry.Registry) (*seal.SealReport, error) {
	rec, known := registry.Get(manifest.SignerKeyID)
	if !known {
		return &seal.SealReport{Issues: []seal.SealIssue{{
			Kind:   vaulterr.KindManifestSignatureInvalid,
			Detail: "manifest signer_key_id is not a key known to this vault",
		}}}, nil
	}
	publicKey, err := rec.PublicKey()
	if err != nil {
		return nil, err
	}
	return seal.VerifySeal(vaultPath, manifest, sigB64, publicKey)
}
