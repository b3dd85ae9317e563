package vault

import (
	"crypto/ed25519"
	"time"

	"github.com/ParichayaHQ/vault/internal/eventlog"
	"github.com/ParichayaHQ/vault/internal/events"
	"github.com/ParichayaHQ/vault/internal/keyregistry"
	"github.com/ParichayaHQ/vault/internal/vaulterr"
)

// Append signs and durably appends one event onto actorKeyID's chain,
// then re-seals the vault. It returns the new event's ID.
func Append(vaultPath string, eventType events.EventType, payload any, signingKey ed25519.PrivateKey, actorKeyID string) (string, error) {
	log, err := openLog(vaultPath)
	if err != nil {
		return "", err
	}
	registry := rebuildRegistry(log)

	prev := lastEventID(log, actorKeyID)

	e := &events.Event{
		Type:          eventType,
		Actor:         actorKeyID,
		PrevEventHash: prev,
		TimestampUTC:  events.NewTimestamp(time.Now()),
		Payload:       payload,
	}
	if err := signEvent(e, signingKey); err != nil {
		return "", err
	}
	if err := events.ValidateStructure(e); err != nil {
		return "", vaulterr.New(vaulterr.KindCanonicalization, "vault.append", err)
	}

	// Rotation-ceremony events carry business rules (self-revocation,
	// self-promotion, target-state) the log's own append check can't
	// see — it only validates chain continuity and signatures. Run
	// them against a throwaway copy of the registry before committing
	// the event, so a malformed ceremony event never reaches disk.
	if eventType == events.EventTypeKeyRevocation || eventType == events.EventTypeKeyPromotion {
		if err := keyregistry.LoadSnapshot(registry.Snapshot()).ApplyEvent(e); err != nil {
			return "", err
		}
	}

	if err := log.Append(e, registry); err != nil {
		return "", err
	}

	if err := writeKeysSnapshot(vaultPath, rebuildRegistry(log)); err != nil {
		return "", err
	}
	if err := reseal(vaultPath, signingKey); err != nil {
		return "", err
	}

	return e.EventID, nil
}

func lastEventID(log *eventlog.Log, actor string) string {
	evs := log.EventsFor(actor)
	if len(evs) == 0 {
		return ""
	}
	return evs[len(evs)-1].EventID
}
