// Package keyregistry tracks which keys are authorized to sign for
// an actor and checks each rotation event on its own: a
// KEY_REVOCATION or KEY_PROMOTION must be signed by another active
// key, a revocation must target an active key, and a promotion must
// introduce a key the registry has not seen. The registry does not
// check that a promotion follows a revocation; pkg/vault.Rotate emits
// the pair in that order.
package keyregistry

import (
	"encoding/base64"
	"encoding/json"

	"github.com/ParichayaHQ/vault/internal/events"
	"github.com/ParichayaHQ/vault/internal/vaulterr"
)

// Status is a key's lifecycle state. The only transition is
// active -> revoked; there is no path back.
type Status string

const (
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
)

// KeyRecord is one entry in the registry.
type KeyRecord struct {
	KeyID                string `json:"key_id"`
	PublicKeyB64         string `json:"public_key_b64"`
	ActorLabel           string `json:"actor"`
	Status               Status `json:"status"`
	TrustBoundaryEventID string `json:"trust_boundary_event_id,omitempty"`
}

// PublicKey decodes the stored base64 public key.
func (r KeyRecord) PublicKey() ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(r.PublicKeyB64)
	if err != nil {
		return nil, vaulterr.WithKey(vaulterr.KindKeyNotAuthorized, "keyrecord.public_key", r.KeyID, err)
	}
	return b, nil
}

// Registry is the per-vault key state, keyed by key ID.
type Registry struct {
	keys map[string]*KeyRecord
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{keys: make(map[string]*KeyRecord)}
}

// LoadSnapshot rebuilds a registry from a previously persisted
// identity/keys.json document.
func LoadSnapshot(snapshot map[string]KeyRecord) *Registry {
	r := New()
	for id, rec := range snapshot {
		rec := rec
		r.keys[id] = &rec
	}
	return r
}

// PublicKeyForSigning implements eventlog.KeyLookup.
func (r *Registry) PublicKeyForSigning(keyID string) ([]byte, bool, bool) {
	rec, ok := r.keys[keyID]
	if !ok {
		return nil, false, false
	}
	publicKey, err := rec.PublicKey()
	if err != nil {
		return nil, false, true
	}
	return publicKey, rec.Status == StatusActive, true
}

// RevocationPayload is the payload of a KEY_REVOCATION event.
type RevocationPayload struct {
	RevokedKeyID         string `json:"revoked_key_id"`
	Reason               string `json:"reason"`
	TrustBoundaryEventID string `json:"trust_boundary_event_id"`
	RevokedAtUTC         string `json:"revoked_at_utc"`
}

// PromotionPayload is the payload of a KEY_PROMOTION event.
type PromotionPayload struct {
	NewKeyID     string `json:"new_key_id"`
	NewPublicKey string `json:"new_public_key"`
	ActorLabel   string `json:"actor_label,omitempty"`
}

// Bootstrap registers the vault's first key as active, outside the
// rotation ceremony — this is how GENESIS seeds key material.
func (r *Registry) Bootstrap(keyID, publicKeyB64, actorLabel string) error {
	if _, exists := r.keys[keyID]; exists {
		return vaulterr.WithKey(vaulterr.KindRotationRuleViolation, "registry.bootstrap", keyID, errAlreadyKnown)
	}
	r.keys[keyID] = &KeyRecord{
		KeyID:        keyID,
		PublicKeyB64: publicKeyB64,
		ActorLabel:   actorLabel,
		Status:       StatusActive,
	}
	return nil
}

// IsActive reports whether keyID is currently an active signer.
func (r *Registry) IsActive(keyID string) bool {
	rec, ok := r.keys[keyID]
	return ok && rec.Status == StatusActive
}

// Get returns the record for keyID, if known.
func (r *Registry) Get(keyID string) (*KeyRecord, bool) {
	rec, ok := r.keys[keyID]
	return rec, ok
}

// ActiveCount returns the number of currently active keys — used to
// detect the single-key-vault terminal state.
func (r *Registry) ActiveCount() int {
	n := 0
	for _, rec := range r.keys {
		if rec.Status == StatusActive {
			n++
		}
	}
	return n
}

// ApplyRevocation applies a signer-accepted KEY_REVOCATION event. The
// caller has already verified the event's signature and chain
// position; ApplyRevocation enforces the remaining acceptance tests:
// signer active, signer != target, target currently active.
func (r *Registry) ApplyRevocation(signerKeyID string, payload RevocationPayload, eventID string) error {
	if !r.IsActive(signerKeyID) {
		return vaulterr.WithKey(vaulterr.KindKeyNotAuthorized, "registry.revoke", signerKeyID, errSignerNotActive)
	}
	if signerKeyID == payload.RevokedKeyID {
		return vaulterr.WithKey(vaulterr.KindRotationRuleViolation, "registry.revoke", signerKeyID, errSelfRevocation)
	}
	target, ok := r.keys[payload.RevokedKeyID]
	if !ok || target.Status != StatusActive {
		return vaulterr.WithKey(vaulterr.KindRotationRuleViolation, "registry.revoke", payload.RevokedKeyID, errTargetNotActive)
	}

	target.Status = StatusRevoked
	boundary := payload.TrustBoundaryEventID
	if boundary == "" {
		boundary = eventID
	}
	target.TrustBoundaryEventID = boundary
	return nil
}

// ApplyPromotion applies a signer-accepted KEY_PROMOTION event.
// Enforces: signer active, target unknown (neither active nor
// revoked), no self-promotion.
func (r *Registry) ApplyPromotion(signerKeyID string, payload PromotionPayload) error {
	if !r.IsActive(signerKeyID) {
		return vaulterr.WithKey(vaulterr.KindKeyNotAuthorized, "registry.promote", signerKeyID, errSignerNotActive)
	}
	if signerKeyID == payload.NewKeyID {
		return vaulterr.WithKey(vaulterr.KindRotationRuleViolation, "registry.promote", signerKeyID, errSelfPromotion)
	}
	if _, known := r.keys[payload.NewKeyID]; known {
		return vaulterr.WithKey(vaulterr.KindRotationRuleViolation, "registry.promote", payload.NewKeyID, errTargetAlreadyKnown)
	}

	actorLabel := payload.ActorLabel
	if actorLabel == "" {
		if existing, ok := r.keys[signerKeyID]; ok {
			actorLabel = existing.ActorLabel
		}
	}

	r.keys[payload.NewKeyID] = &KeyRecord{
		KeyID:        payload.NewKeyID,
		PublicKeyB64: payload.NewPublicKey,
		ActorLabel:   actorLabel,
		Status:       StatusActive,
	}
	return nil
}

// ApplyGenesis bootstraps the root key, and the quorum key if present,
// from a GENESIS event's payload. Re-running it on an already-seeded
// registry is a no-op rather than an error, so replay from a
// checkpoint can call it idempotently.
func (r *Registry) ApplyGenesis(payload events.GenesisPayload) error {
	if _, exists := r.keys[payload.RootKeyID]; !exists {
		if err := r.Bootstrap(payload.RootKeyID, payload.RootPublicKey, payload.ActorLabel); err != nil {
			return err
		}
	}
	if payload.QuorumKeyID != "" {
		if _, exists := r.keys[payload.QuorumKeyID]; !exists {
			if err := r.Bootstrap(payload.QuorumKeyID, payload.QuorumPublicKey, payload.ActorLabel); err != nil {
				return err
			}
		}
	}
	return nil
}

// ApplyEvent dispatches a GENESIS, KEY_REVOCATION, or KEY_PROMOTION
// event to the matching Apply* method. Any other event type is a
// no-op.
func (r *Registry) ApplyEvent(e *events.Event) error {
	switch e.Type {
	case events.EventTypeGenesis:
		var payload events.GenesisPayload
		if err := decodePayload(e.Payload, &payload); err != nil {
			return err
		}
		if payload.RootKeyID == "" {
			payload.RootKeyID = e.Actor
		}
		return r.ApplyGenesis(payload)
	case events.EventTypeKeyRevocation:
		var payload RevocationPayload
		if err := decodePayload(e.Payload, &payload); err != nil {
			return err
		}
		return r.ApplyRevocation(e.Actor, payload, e.EventID)
	case events.EventTypeKeyPromotion:
		var payload PromotionPayload
		if err := decodePayload(e.Payload, &payload); err != nil {
			return err
		}
		return r.ApplyPromotion(e.Actor, payload)
	}
	return nil
}

// RevokedBefore reports whether keyID is revoked and position lies
// strictly after boundaryPosition, the chain position of the key's
// trust-boundary event. The reducer applies the same test through its
// own suspect check and does not call this method.
func (r *Registry) RevokedBefore(keyID string, position, boundaryPosition int) bool {
	rec, ok := r.keys[keyID]
	if !ok || rec.Status != StatusRevoked {
		return false
	}
	return position > boundaryPosition
}

// Snapshot returns a copy of every known key record, for persisting
// identity/keys.json.
func (r *Registry) Snapshot() map[string]KeyRecord {
	out := make(map[string]KeyRecord, len(r.keys))
	for id, rec := range r.keys {
		out[id] = *rec
	}
	return out
}

func decodePayload(payload interface{}, out interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return vaulterr.New(vaulterr.KindRotationRuleViolation, "registry.decode_payload", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return vaulterr.New(vaulterr.KindRotationRuleViolation, "registry.decode_payload", err)
	}
	return nil
}
