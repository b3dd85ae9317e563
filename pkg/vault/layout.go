// Package vault is the public surface of the vault: init, append,
// verify, replay, rotate, and union-merge, each operating on the
// on-disk directory layout fixed by the vault format.
package vault

import (
	"os"
	"path/filepath"
)

const (
	identityDir     = "identity"
	genesisFileName = "genesis.json"
	keysFileName    = "keys.json"
	eventsDir       = "events"
	eventsFileName  = "events.ndjson"
	policiesDir     = "policies"
	policyFileName  = "vault.yaml"
	stateDir        = "state"
	manifestName    = "manifest.json"
	manifestSigName = "manifest.sig"
	merkleRootName  = "merkle_root.txt"
)

func genesisPath(root string) string  { return filepath.Join(root, identityDir, genesisFileName) }
func keysPath(root string) string     { return filepath.Join(root, identityDir, keysFileName) }
func eventsPath(root string) string   { return filepath.Join(root, eventsDir, eventsFileName) }
func policyPath(root string) string   { return filepath.Join(root, policiesDir, policyFileName) }
func manifestPath(root string) string { return filepath.Join(root, manifestName) }
func sigPath(root string) string      { return filepath.Join(root, manifestSigName) }
func rootTxtPath(root string) string  { return filepath.Join(root, merkleRootName) }

// lockPath is events/.lock, inside the tree the seal walks — it is
// kept out of the manifest via seal's own excludedPaths, the same
// mechanism that excludes manifest.json/manifest.sig/merkle_root.txt.
func lockPath(root string) string { return filepath.Join(root, eventsDir, ".lock") }

func ensureLayout(root string) error {
	for _, dir := range []string{identityDir, eventsDir, policiesDir, stateDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return err
		}
	}
	return nil
}
