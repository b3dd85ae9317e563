package vault

import (
	"crypto/ed25519"
	"encoding/base64"
	"os"
	"time"

	"github.com/ParichayaHQ/vault/internal/crypto"
	"github.com/ParichayaHQ/vault/internal/events"
	"github.com/ParichayaHQ/vault/internal/vaulterr"
)

// InitOptions configures vault creation.
type InitOptions struct {
	// CreateQuorum bootstraps a second key alongside the root key, so
	// no single compromised key is ever sufficient to rotate itself.
	CreateQuorum bool
	ActorLabel   string
	// SelfTest runs Verify immediately after writing the seal and
	// fails Init if it doesn't pass.
	SelfTest bool
}

// InitResult is everything the caller needs after Init: the new
// identifiers, the freshly generated private key material, which
// never touches disk and is the caller's sole responsibility from
// here on, and any non-fatal Warnings Init thinks the caller should
// see (e.g. no quorum key configured).
type InitResult struct {
	RootKeyID        string
	RootPrivateKey   ed25519.PrivateKey
	QuorumKeyID      string
	QuorumPrivateKey ed25519.PrivateKey
	Warnings         []string
}

// Init creates a new vault at vaultPath: the directory layout, a
// freshly generated root identity (and optional quorum identity)
// sealed into a signed GENESIS event, and the initial manifest/seal.
//
// If policies/vault.yaml is already present at vaultPath, its hints
// fill in anything opts leaves unset: an ActorLabel opts doesn't
// specify, or a RequireQuorum preference that forces quorum bootstrap
// even when opts.CreateQuorum is false.
func Init(vaultPath string, opts InitOptions) (InitResult, error) {
	if _, err := os.Stat(genesisPath(vaultPath)); err == nil {
		return InitResult{}, vaulterr.WithPath(vaulterr.KindIoError, "vault.init", vaultPath, errAlreadyInitialized)
	}
	if err := ensureLayout(vaultPath); err != nil {
		return InitResult{}, vaulterr.WithPath(vaulterr.KindIoError, "vault.init", vaultPath, err)
	}

	policy, err := loadPolicy(vaultPath)
	if err != nil {
		return InitResult{}, err
	}
	if policy != nil {
		if opts.ActorLabel == "" {
			opts.ActorLabel = policy.ActorLabel
		}
		if policy.RequireQuorum {
			opts.CreateQuorum = true
		}
	}

	rootKP, err := crypto.NewEd25519KeyPair()
	if err != nil {
		return InitResult{}, vaulterr.New(vaulterr.KindIoError, "vault.init", err)
	}

	payload := events.GenesisPayload{
		RootKeyID:     rootKP.KeyID(),
		RootPublicKey: rootKP.PublicKeyBase64(),
		ActorLabel:    opts.ActorLabel,
	}

	result := InitResult{
		RootKeyID:      rootKP.KeyID(),
		RootPrivateKey: rootKP.PrivateKey,
	}

	var quorumKP *crypto.Ed25519KeyPair
	if opts.CreateQuorum {
		quorumKP, err = crypto.NewEd25519KeyPair()
		if err != nil {
			return InitResult{}, vaulterr.New(vaulterr.KindIoError, "vault.init", err)
		}
		payload.QuorumKeyID = quorumKP.KeyID()
		payload.QuorumPublicKey = quorumKP.PublicKeyBase64()
		result.QuorumKeyID = quorumKP.KeyID()
		result.QuorumPrivateKey = quorumKP.PrivateKey
	} else {
		result.Warnings = append(result.Warnings,
			"vault created with a single root key and no quorum key: "+
				"rotation after compromise will have no second signer to authorize it")
	}

	genesis := &events.Event{
		Type:         events.EventTypeGenesis,
		Actor:        rootKP.KeyID(),
		TimestampUTC: events.NewTimestamp(time.Now()),
		Payload:      payload,
	}
	if err := signEvent(genesis, rootKP.PrivateKey); err != nil {
		return InitResult{}, err
	}

	log, err := openLog(vaultPath)
	if err != nil {
		return InitResult{}, err
	}
	registry := rebuildRegistry(log)
	if err := registry.ApplyGenesis(payload); err != nil {
		return InitResult{}, vaulterr.New(vaulterr.KindRotationRuleViolation, "vault.init", err)
	}
	if err := log.Append(genesis, registry); err != nil {
		return InitResult{}, err
	}

	if err := writeGenesisPayload(vaultPath, payload); err != nil {
		return InitResult{}, err
	}
	if err := writeKeysSnapshot(vaultPath, registry); err != nil {
		return InitResult{}, err
	}
	if err := reseal(vaultPath, rootKP.PrivateKey); err != nil {
		return InitResult{}, err
	}

	if opts.SelfTest {
		report, err := Verify(vaultPath)
		if err != nil {
			return InitResult{}, err
		}
		if !report.OK() {
			return InitResult{}, vaulterr.New(vaulterr.KindIoError, "vault.init", errSelfTestFailed)
		}
	}

	return result, nil
}

// signEvent derives e's event_id from its current content and signs
// the resulting digest, filling in EventID and Signature in place.
func signEvent(e *events.Event, signingKey ed25519.PrivateKey) error {
	id, err := e.DeriveEventID()
	if err != nil {
		return err
	}
	e.EventID = id

	digest, err := e.SigningDigest()
	if err != nil {
		return err
	}
	e.Signature = base64.StdEncoding.EncodeToString(ed25519.Sign(signingKey, digest))
	return nil
}
