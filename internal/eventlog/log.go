// Package eventlog implements the append-only, per-actor causal
// chain that is the vault's sole source of truth. Every other piece
// of derived state — the registry, the belief state, the seal — is
// discardable and rebuildable from this log.
package eventlog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ParichayaHQ/vault/internal/canon"
	"github.com/ParichayaHQ/vault/internal/crypto"
	"github.com/ParichayaHQ/vault/internal/events"
	"github.com/ParichayaHQ/vault/internal/vaulterr"
)

// KeyLookup resolves a key ID to its public key bytes and active
// status, so Append and VerifyChain can check signatures without
// importing the key-registry package directly.
type KeyLookup interface {
	PublicKeyForSigning(keyID string) (publicKey []byte, active bool, known bool)
}

// Log is an in-memory, file-backed event log for one vault.
type Log struct {
	path     string
	lockPath string

	mu              sync.Mutex
	events          []*events.Event
	byID            map[string]*events.Event
	lastByActor     map[string]string         // actor -> last event_id
	positionByActor map[string]map[string]int // actor -> event_id -> chain position
}

// Open loads an existing events.ndjson (if present) into memory.
// lockPath is the sentinel file Append locks exclusively.
func Open(path, lockPath string) (*Log, error) {
	l := &Log{
		path:            path,
		lockPath:        lockPath,
		byID:            make(map[string]*events.Event),
		lastByActor:     make(map[string]string),
		positionByActor: make(map[string]map[string]int),
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, vaulterr.WithPath(vaulterr.KindIoError, "eventlog.open", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e events.Event
		if err := json.Unmarshal(line, &e); err != nil {
			// A partial trailing record from a concurrent writer —
			// readers ignore it rather than fail the whole load.
			break
		}
		l.index(&e)
	}
	if err := scanner.Err(); err != nil {
		return nil, vaulterr.WithPath(vaulterr.KindIoError, "eventlog.open", path, err)
	}
	return l, nil
}

func (l *Log) index(e *events.Event) {
	ev := *e
	l.events = append(l.events, &ev)
	l.byID[ev.EventID] = &ev
	if l.positionByActor[ev.Actor] == nil {
		l.positionByActor[ev.Actor] = make(map[string]int)
	}
	l.positionByActor[ev.Actor][ev.EventID] = len(l.positionByActor[ev.Actor])
	l.lastByActor[ev.Actor] = ev.EventID
}

// EventsFor returns actor's events in append order.
func (l *Log) EventsFor(actor string) []*events.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*events.Event
	for _, e := range l.events {
		if e.Actor == actor {
			out = append(out, e)
		}
	}
	return out
}

// All returns every event in append order. Callers must not mutate
// the returned slice's elements.
func (l *Log) All() []*events.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*events.Event, len(l.events))
	copy(out, l.events)
	return out
}

// PositionOf returns the zero-based position of eventID within its
// actor's chain.
func (l *Log) PositionOf(actor, eventID string) (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.positionByActor[actor][eventID]
	return pos, ok
}

// Append validates and durably appends a single event. It fails with
// ChainBroken, DuplicateEventId, SignatureInvalid, or
// KeyNotAuthorized without mutating on-disk or in-memory state.
func (l *Log) Append(e *events.Event, keys KeyLookup) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, err := acquireLock(l.lockPath)
	if err != nil {
		return err
	}
	defer lock.release()

	if err := l.validateForAppend(e, keys); err != nil {
		return err
	}

	if err := l.writeAtomic(e); err != nil {
		return err
	}

	l.index(e)
	return nil
}

func (l *Log) validateForAppend(e *events.Event, keys KeyLookup) error {
	if _, exists := l.byID[e.EventID]; exists {
		return vaulterr.WithEvent(vaulterr.KindDuplicateEventID, "eventlog.append", e.EventID, nil)
	}

	last, hasLast := l.lastByActor[e.Actor]
	switch {
	case !hasLast && e.PrevEventHash != "":
		return vaulterr.WithEvent(vaulterr.KindChainBroken, "eventlog.append", e.EventID, nil)
	case hasLast && e.PrevEventHash != last:
		return vaulterr.WithEvent(vaulterr.KindChainBroken, "eventlog.append", e.EventID, nil)
	}

	publicKey, active, known := keys.PublicKeyForSigning(e.Actor)
	if !known || !active {
		return vaulterr.WithKey(vaulterr.KindKeyNotAuthorized, "eventlog.append", e.Actor, nil)
	}

	verifier := crypto.NewEd25519Verifier()
	ok, err := events.VerifySignature(e, publicKey, verifier)
	if err != nil {
		return err
	}
	if !ok {
		return vaulterr.WithEvent(vaulterr.KindSignatureInvalid, "eventlog.append", e.EventID, nil)
	}

	return nil
}

// writeAtomic appends e's canonical JSON as one line. The line is
// first written to a temp segment in the same directory and fsynced;
// the staged bytes are then appended to the canonical file, which is
// opened append-only for this one write and fsynced in turn. The
// canonical file is extended in place, not replaced by a rename, so a
// crash during that final append can leave a partial trailing line;
// Open stops reading at the first line that does not parse.
func (l *Log) writeAtomic(e *events.Event) error {
	line, err := canon.Marshal(e)
	if err != nil {
		return vaulterr.WithEvent(vaulterr.KindCanonicalization, "eventlog.append", e.EventID, err)
	}
	line = append(line, '\n')

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return vaulterr.WithPath(vaulterr.KindIoError, "eventlog.append", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".events-append-*.tmp")
	if err != nil {
		return vaulterr.WithPath(vaulterr.KindIoError, "eventlog.append", dir, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(line); err != nil {
		tmp.Close()
		return vaulterr.WithPath(vaulterr.KindIoError, "eventlog.append", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return vaulterr.WithPath(vaulterr.KindIoError, "eventlog.append", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return vaulterr.WithPath(vaulterr.KindIoError, "eventlog.append", tmpPath, err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return vaulterr.WithPath(vaulterr.KindIoError, "eventlog.append", l.path, err)
	}
	defer f.Close()

	staged, err := os.ReadFile(tmpPath)
	if err != nil {
		return vaulterr.WithPath(vaulterr.KindIoError, "eventlog.append", tmpPath, err)
	}
	if _, err := f.Write(staged); err != nil {
		return vaulterr.WithPath(vaulterr.KindIoError, "eventlog.append", l.path, err)
	}
	return f.Sync()
}

// sortForReduction orders events by (timestamp_utc, actor, event_id)
// ascending, per the union-merge ordering contract.
func sortForReduction(evs []*events.Event) {
	sort.SliceStable(evs, func(i, j int) bool {
		a, b := evs[i], evs[j]
		if a.TimestampUTC != b.TimestampUTC {
			return a.TimestampUTC < b.TimestampUTC
		}
		if a.Actor != b.Actor {
			return a.Actor < b.Actor
		}
		return a.EventID < b.EventID
	})
}
