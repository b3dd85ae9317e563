// Package events defines the event record that every vault component
// reads or writes, and the canonicalization rules specific to it:
// which fields participate in the event_id digest versus the
// signing digest.
package events

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/ParichayaHQ/vault/internal/canon"
	"github.com/ParichayaHQ/vault/internal/vaulterr"
)

// EventType identifies the semantic kind of an event. The reducer
// dispatches on it; unknown values are recorded but never fatal.
type EventType string

const (
	EventTypeGenesis       EventType = "GENESIS"
	EventTypeObservation   EventType = "OBSERVATION"
	EventTypeAttestation   EventType = "ATTESTATION"
	EventTypeRetraction    EventType = "RETRACTION"
	EventTypeKeyRevocation EventType = "KEY_REVOCATION"
	EventTypeKeyPromotion  EventType = "KEY_PROMOTION"
	EventTypeReducerEpoch  EventType = "REDUCER_EPOCH"
)

// EventIDPrefix and EventIDHexLen fix the shape of an event_id: the
// prefix plus the first 24 lowercase hex characters of the ID digest.
const (
	EventIDPrefix = "evt_"
	EventIDHexLen = 24
)

// Event is the append-only unit of the log. Payload is an arbitrary
// canonicalizable value — its shape depends on Type.
type Event struct {
	Type          EventType   `json:"type" validate:"required,eventtype"`
	EventID       string      `json:"event_id,omitempty" validate:"omitempty,eventid"`
	Actor         string      `json:"actor" validate:"required,keyid"`
	PrevEventHash string      `json:"prev_event_hash,omitempty" validate:"omitempty,eventid"`
	TimestampUTC  string      `json:"timestamp_utc" validate:"required"`
	Payload       interface{} `json:"payload"`
	Signature     string      `json:"signature,omitempty"`
}

// NewTimestamp renders t as the ISO-8601 UTC string events carry.
// Informational only — chain order, not timestamp, is authoritative.
func NewTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// IsKnownType reports whether typ is one of the fixed vocabulary.
// A reverse-domain custom tag that passes IsValidEventType (lowercase,
// dot-separated) is also accepted; the reducer counts it as ignored
// rather than dispatching it.
func IsKnownType(typ EventType) bool {
	switch typ {
	case EventTypeGenesis, EventTypeObservation, EventTypeAttestation,
		EventTypeRetraction, EventTypeKeyRevocation, EventTypeKeyPromotion,
		EventTypeReducerEpoch:
		return true
	}
	return false
}

// toMap renders the event through encoding/json and back into a
// generic map so fields can be selectively dropped before
// canonicalization runs.
func (e *Event) toMap() (map[string]interface{}, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, vaulterr.New(vaulterr.KindCanonicalization, "event.to_map", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]interface{}
	if err := dec.Decode(&m); err != nil {
		return nil, vaulterr.New(vaulterr.KindCanonicalization, "event.to_map", err)
	}
	return m, nil
}

// IDCanonicalBytes returns the canonical bytes of the event with
// event_id and signature both removed — the input to event_id
// derivation.
func (e *Event) IDCanonicalBytes() ([]byte, error) {
	m, err := e.toMap()
	if err != nil {
		return nil, err
	}
	delete(m, "event_id")
	delete(m, "signature")
	return canon.Marshal(m)
}

// SigningCanonicalBytes returns the canonical bytes of the event with
// only signature removed — event_id stays present. This is what gets
// SHA-256'd and signed.
func (e *Event) SigningCanonicalBytes() ([]byte, error) {
	m, err := e.toMap()
	if err != nil {
		return nil, err
	}
	delete(m, "signature")
	return canon.Marshal(m)
}

// DeriveEventID computes this event's event_id from its current
// content, ignoring any event_id already set.
func (e *Event) DeriveEventID() (string, error) {
	b, err := e.IDCanonicalBytes()
	if err != nil {
		return "", err
	}
	digest := canon.SHA256Hex(b)
	return EventIDPrefix + digest[:EventIDHexLen], nil
}

// SigningDigest returns the SHA-256 digest that gets signed — the
// data argument to an Ed25519 Sign call, per the signing contract.
func (e *Event) SigningDigest() ([]byte, error) {
	b, err := e.SigningCanonicalBytes()
	if err != nil {
		return nil, err
	}
	sum := canon.SHA256Hex(b)
	digest, err := hex.DecodeString(sum)
	if err != nil {
		return nil, vaulterr.New(vaulterr.KindCanonicalization, "event.signing_digest", err)
	}
	return digest, nil
}
