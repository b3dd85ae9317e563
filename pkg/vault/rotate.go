package vault

import (
	"crypto/ed25519"
	"encoding/base64"
	"time"

	"github.com/ParichayaHQ/vault/internal/crypto"
	"github.com/ParichayaHQ/vault/internal/events"
	"github.com/ParichayaHQ/vault/internal/keyregistry"
)

// RotateResult is the two event IDs produced by a rotation ceremony.
type RotateResult struct {
	RevocationEventID string
	PromotionEventID  string
}

// Rotate runs the two-event rotation ceremony: authorityKey signs a
// KEY_REVOCATION against oldKeyID, then a KEY_PROMOTION introducing
// newPublicKey, both appended onto the authority's own chain. Both
// events are checked against the rotation rules before either is
// written, so a rule violation leaves the log unchanged; an I/O
// failure while writing the promotion can leave the revocation on
// disk.
func Rotate(vaultPath, oldKeyID string, newPublicKey ed25519.PublicKey, authorityKey ed25519.PrivateKey) (RotateResult, error) {
	log, err := openLog(vaultPath)
	if err != nil {
		return RotateResult{}, err
	}
	registry := rebuildRegistry(log)

	authorityPub, _ := authorityKey.Public().(ed25519.PublicKey)
	authorityKeyID := crypto.KeyID(authorityPub)

	boundary := lastEventID(log, oldKeyID)

	revocation := &events.Event{
		Type:          events.EventTypeKeyRevocation,
		Actor:         authorityKeyID,
		PrevEventHash: lastEventID(log, authorityKeyID),
		TimestampUTC:  events.NewTimestamp(time.Now()),
		Payload: keyregistry.RevocationPayload{
			RevokedKeyID:         oldKeyID,
			TrustBoundaryEventID: boundary,
			RevokedAtUTC:         events.NewTimestamp(time.Now()),
		},
	}
	if err := signEvent(revocation, authorityKey); err != nil {
		return RotateResult{}, err
	}
	if err := registry.ApplyEvent(revocation); err != nil {
		return RotateResult{}, err
	}

	newKeyID := crypto.KeyID(newPublicKey)
	promotion := &events.Event{
		Type:          events.EventTypeKeyPromotion,
		Actor:         authorityKeyID,
		PrevEventHash: revocation.EventID,
		TimestampUTC:  events.NewTimestamp(time.Now()),
		Payload: keyregistry.PromotionPayload{
			NewKeyID:     newKeyID,
			NewPublicKey: base64.StdEncoding.EncodeToString(newPublicKey),
		},
	}
	if err := signEvent(promotion, authorityKey); err != nil {
		return RotateResult{}, err
	}
	if err := registry.ApplyEvent(promotion); err != nil {
		return RotateResult{}, err
	}
	if err := log.Append(revocation, registry); err != nil {
		return RotateResult{}, err
	}
	if err := log.Append(promotion, registry); err != nil {
		return RotateResult{}, err
	}

	if err := writeKeysSnapshot(vaultPath, registry); err != nil {
		return RotateResult{}, err
	}
	if err := reseal(vaultPath, authorityKey); err != nil {
		return RotateResult{}, err
	}

	return RotateResult{RevocationEventID: revocation.EventID, PromotionEventID: promotion.EventID}, nil
}
