// Package seal builds and verifies the vault's integrity seal: a
// signed manifest of every tracked file plus the Merkle root over
// that inventory.
package seal

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ParichayaHQ/vault/internal/canon"
	"github.com/ParichayaHQ/vault/internal/cid"
	"github.com/ParichayaHQ/vault/internal/crypto"
	"github.com/ParichayaHQ/vault/internal/merkle"
	"github.com/ParichayaHQ/vault/internal/vaulterr"
)

// excludedPaths are the seal's own artifacts — they can't hash
// themselves into the manifest they describe.
var excludedPaths = map[string]bool{
	"manifest.json":   true,
	"manifest.sig":    true,
	"merkle_root.txt": true,
	"events/.lock":    true,
}

// FileEntry is one manifest record: a tracked file's path (POSIX,
// relative to vault root), content hash, size, and content ID.
type FileEntry struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
	CID    string `json:"cid"`
}

// Manifest is the full file inventory plus its Merkle root. The
// canonical bytes that get signed are the whole struct including
// SignerKeyID, so a manifest can't be re-attributed to a different
// signer without invalidating the signature over it.
type Manifest struct {
	Files       []FileEntry `json:"files"`
	MerkleRoot  string      `json:"merkle_root"`
	SignerKeyID string      `json:"signer_key_id"`
}

// GenerateManifest walks vaultRoot, hashing every tracked file.
// Symbolic links are refused with SymlinkRejected; any path that
// would resolve outside vaultRoot fails with PathEscape.
func GenerateManifest(vaultRoot string) (*Manifest, error) {
	absRoot, err := filepath.Abs(vaultRoot)
	if err != nil {
		return nil, vaulterr.WithPath(vaulterr.KindIoError, "seal.generate_manifest", vaultRoot, err)
	}

	var entries []FileEntry
	walkErr := filepath.Walk(absRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return vaulterr.WithPath(vaulterr.KindIoError, "seal.generate_manifest", path, err)
		}
		relPosix := filepath.ToSlash(rel)
		if relPosix == ".." || strings.HasPrefix(relPosix, "../") {
			return vaulterr.WithPath(vaulterr.KindPathEscape, "seal.generate_manifest", relPosix, nil)
		}
		if excludedPaths[relPosix] {
			return nil
		}

		if info.Mode()&os.ModeSymlink != 0 {
			return vaulterr.WithPath(vaulterr.KindSymlinkRejected, "seal.generate_manifest", relPosix, nil)
		}

		sum, size, err := hashFile(path)
		if err != nil {
			return err
		}

		contentCID, err := contentID(path)
		if err != nil {
			return err
		}

		entries = append(entries, FileEntry{
			Path:   relPosix,
			SHA256: sum,
			Size:   size,
			CID:    contentCID,
		})
		return nil
	})
	if walkErr != nil {
		if _, ok := walkErr.(*vaulterr.Error); ok {
			return nil, walkErr
		}
		return nil, vaulterr.WithPath(vaulterr.KindIoError, "seal.generate_manifest", absRoot, walkErr)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	leaves := make([]merkle.Entry, len(entries))
	for i, e := range entries {
		leaves[i] = merkle.Entry{Path: e.Path, SHA256: e.SHA256, Size: e.Size}
	}
	root, err := merkle.Root(leaves)
	if err != nil {
		return nil, err
	}

	return &Manifest{Files: entries, MerkleRoot: root}, nil
}

func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, vaulterr.WithPath(vaulterr.KindIoError, "seal.hash_file", path, err)
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, vaulterr.WithPath(vaulterr.KindIoError, "seal.hash_file", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

func contentID(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", vaulterr.WithPath(vaulterr.KindIoError, "seal.content_id", path, err)
	}
	if len(data) == 0 {
		return "", nil
	}
	generator := cid.NewCIDGenerator()
	c, err := generator.GenerateFromBytes(data)
	if err != nil {
		return "", vaulterr.WithPath(vaulterr.KindIoError, "seal.content_id", path, err)
	}
	return c.String(), nil
}

// SignManifest stamps manifest with signer's key ID, signs its
// canonical bytes, and returns the base64 detached signature.
func SignManifest(manifest *Manifest, signer *crypto.Ed25519Signer) (string, error) {
	manifest.SignerKeyID = signer.KeyID()
	b, err := canonicalManifestBytes(manifest)
	if err != nil {
		return "", err
	}
	sig, err := signer.Sign(b)
	if err != nil {
		return "", vaulterr.New(vaulterr.KindManifestSignatureInvalid, "seal.sign_manifest", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

func canonicalManifestBytes(manifest *Manifest) ([]byte, error) {
	// Files is already sorted by GenerateManifest; route the whole
	// struct through the shared canonicalizer so manifest signing gets
	// the same byte-determinism story as events and reducer state.
	return canon.Marshal(manifest)
}

// SealIssue is one discrepancy VerifySeal found between the manifest
// and the vault directory it describes.
type SealIssue struct {
	Kind   vaulterr.Kind
	Path   string
	Detail string
}

// SealReport is the outcome of verifying a vault's seal.
type SealReport struct {
	Issues []SealIssue
}

// OK reports whether the seal is intact.
func (r *SealReport) OK() bool { return len(r.Issues) == 0 }

// VerifySeal recomputes the manifest from vaultRoot's current files and
// checks it against the recorded manifest, the recorded Merkle root,
// and the detached signature over the manifest, in that order. All
// discrepancies are collected rather than stopping at the first.
func VerifySeal(vaultRoot string, recorded *Manifest, signatureB64 string, publicKey ed25519.PublicKey) (*SealReport, error) {
	report := &SealReport{}

	fresh, err := GenerateManifest(vaultRoot)
	if err != nil {
		return nil, err
	}

	recordedByPath := make(map[string]FileEntry, len(recorded.Files))
	for _, f := range recorded.Files {
		recordedByPath[f.Path] = f
	}
	freshByPath := make(map[string]FileEntry, len(fresh.Files))
	for _, f := range fresh.Files {
		freshByPath[f.Path] = f
	}

	for path, want := range recordedByPath {
		got, present := freshByPath[path]
		if !present {
			report.Issues = append(report.Issues, SealIssue{
				Kind: vaulterr.KindFileMissing,
				Path: path,
			})
			continue
		}
		if got.SHA256 != want.SHA256 || got.Size != want.Size {
			report.Issues = append(report.Issues, SealIssue{
				Kind:   vaulterr.KindFileHashMismatch,
				Path:   path,
				Detail: "recorded " + want.SHA256 + " != current " + got.SHA256,
			})
		}
		if got.CID != want.CID {
			report.Issues = append(report.Issues, SealIssue{
				Kind:   vaulterr.KindFileHashMismatch,
				Path:   path,
				Detail: "recorded cid " + want.CID + " != current " + got.CID,
			})
		}
	}
	for path := range freshByPath {
		if _, present := recordedByPath[path]; !present {
			report.Issues = append(report.Issues, SealIssue{
				Kind:   vaulterr.KindUntrackedFile,
				Path:   path,
				Detail: "file present on disk but absent from the recorded manifest",
			})
		}
	}

	if fresh.MerkleRoot != recorded.MerkleRoot {
		report.Issues = append(report.Issues, SealIssue{
			Kind:   vaulterr.KindMerkleRootMismatch,
			Detail: "recorded " + recorded.MerkleRoot + " != recomputed " + fresh.MerkleRoot,
		})
	}

	ok, err := VerifyManifestSignature(recorded, signatureB64, publicKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		report.Issues = append(report.Issues, SealIssue{
			Kind:   vaulterr.KindManifestSignatureInvalid,
			Detail: "manifest signature does not verify against the supplied key",
		})
	}

	return report, nil
}

// VerifyManifestSignature checks signatureB64 against manifest's
// canonical bytes under publicKey, independent of file-tree state —
// callers checking a manifest against several candidate keys (e.g.
// every active key in a registry) call this directly rather than
// re-walking the vault tree once per key.
func VerifyManifestSignature(manifest *Manifest, signatureB64 string, publicKey ed25519.PublicKey) (bool, error) {
	b, err := canonicalManifestBytes(manifest)
	if err != nil {
		return false, err
	}
	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return false, nil
	}
	return ed25519.Verify(publicKey, b, sig), nil
}
