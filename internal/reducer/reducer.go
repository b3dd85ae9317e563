package reducer

import (
	"bytes"
	"encoding/json"

	"github.com/ParichayaHQ/vault/internal/canon"
	"github.com/ParichayaHQ/vault/internal/events"
	"github.com/ParichayaHQ/vault/internal/keyregistry"
)

type observationPayload struct {
	Subject    string      `json:"subject"`
	Predicate  string      `json:"predicate"`
	Value      interface{} `json:"value"`
	Confidence float64     `json:"confidence"`
}

type retractionPayload struct {
	TargetSubject   string `json:"target_subject"`
	TargetPredicate string `json:"target_predicate"`
}

// foldState is the reducer's working context for one Reduce call. It
// is created fresh per call and never shared, so Reduce stays a pure
// function of its input: no package-level mutable state.
type foldState struct {
	state        *State
	registry     *keyregistry.Registry
	nextPosition map[string]int            // actor -> next position to assign
	positionOf   map[string]map[string]int // actor -> event_id -> chain position
}

// Reduce folds evs, in the order given, into a belief state. Callers
// are responsible for presenting events in the correct order: append
// order within one vault, or union-merge's (timestamp_utc, actor,
// event_id) order across merged vaults. Event content never stops the
// fold: an event of an unrecognized type is counted as ignored, and a
// known-type event whose payload does not decode leaves the state
// unchanged. The only error returned is a failure to hash the final
// state.
func Reduce(evs []*events.Event) (*State, error) {
	fs := &foldState{
		state:        newState(),
		registry:     keyregistry.New(),
		nextPosition: make(map[string]int),
		positionOf:   make(map[string]map[string]int),
	}

	for _, e := range evs {
		pos := fs.nextPosition[e.Actor]
		fs.nextPosition[e.Actor] = pos + 1
		if fs.positionOf[e.Actor] == nil {
			fs.positionOf[e.Actor] = make(map[string]int)
		}
		fs.positionOf[e.Actor][e.EventID] = pos

		switch e.Type {
		case events.EventTypeGenesis:
			fs.applyGenesis(e)
			_ = fs.registry.ApplyEvent(e)
		case events.EventTypeObservation:
			fs.applyObservation(e, pos)
		case events.EventTypeAttestation:
			fs.applyAttestation(e, pos)
		case events.EventTypeRetraction:
			fs.applyRetraction(e)
		case events.EventTypeKeyRevocation, events.EventTypeKeyPromotion:
			// Errors here mean the event violated a rotation rule;
			// an already-verified log won't produce these, but
			// reduce stays total and simply leaves the registry
			// unchanged rather than aborting. An accepted revocation
			// moves local/canonical claims backed by the revoked key's
			// post-boundary events to contested.
			if err := fs.registry.ApplyEvent(e); err == nil && e.Type == events.EventTypeKeyRevocation {
				var p keyregistry.RevocationPayload
				_ = decode(e.Payload, &p)
				for _, ns := range []map[string]Belief{fs.state.Local, fs.state.Canonical} {
					for key, b := range ns {
						for _, id := range b.SourceEventIDs {
							if pos, ok := fs.positionOf[p.RevokedKeyID][id]; ok && fs.suspect(p.RevokedKeyID, pos) {
								delete(ns, key)
								fs.moveToContested(key, b)
								break
							}
						}
					}
				}
			}
		case events.EventTypeReducerEpoch:
			// Marks a snapshot point; no state change of its own.
		default:
			fs.state.Metadata.IgnoredEvents++
			continue
		}
		fs.state.Metadata.EventsApplied++
	}

	hash, err := computeStateHash(fs.state)
	if err != nil {
		return nil, err
	}
	fs.state.Metadata.StateHash = hash
	return fs.state, nil
}

// suspect reports whether the event at position pos, signed by
// actor, falls strictly after that key's recorded trust boundary —
// i.e. its claims belong in contested rather than local/canonical.
func (fs *foldState) suspect(actor string, pos int) bool {
	rec, ok := fs.registry.Get(actor)
	if !ok || rec.Status != keyregistry.StatusRevoked || rec.TrustBoundaryEventID == "" {
		return false
	}
	boundaryPos, known := fs.positionOf[actor][rec.TrustBoundaryEventID]
	if !known {
		// Boundary event predates this fold's visible prefix (e.g. a
		// checkpoint-seeded replay); treat everything visible as
		// potentially suspect only once the boundary is known.
		return false
	}
	return pos > boundaryPos
}

func (fs *foldState) moveToContested(key string, belief Belief) {
	delete(fs.state.Local, key)
	entry := fs.state.Contested[key]
	entry.Branches = append(entry.Branches, belief)
	fs.state.Contested[key] = entry
}

func (fs *foldState) applyGenesis(e *events.Event) {
	fs.state.Canonical["genesis:identity"] = Belief{
		Value:          e.Payload,
		Confidence:     1.0,
		SourceEventIDs: []string{e.EventID},
		LastUpdateUTC:  e.TimestampUTC,
	}
}

func (fs *foldState) applyObservation(e *events.Event, pos int) {
	var p observationPayload
	if err := decode(e.Payload, &p); err != nil {
		return
	}
	key := subjectPredicateKey(p.Subject, p.Predicate)
	belief := Belief{
		Value:          p.Value,
		Confidence:     p.Confidence,
		SourceEventIDs: []string{e.EventID},
		LastUpdateUTC:  e.TimestampUTC,
	}

	if fs.suspect(e.Actor, pos) {
		fs.moveToContested(key, belief)
		return
	}

	s := fs.state

	// A key already in contested stays contested until an attestation
	// resolves it — any further observation is just one more branch,
	// never a fresh local entry, or the four namespaces stop being
	// disjoint.
	if _, hasContested := s.Contested[key]; hasContested {
		fs.moveToContested(key, belief)
		return
	}

	existingCanonical, hasCanonical := s.Canonical[key]
	existingLocal, hasLocal := s.Local[key]

	switch {
	case hasCanonical && !valuesEqual(existingCanonical.Value, p.Value) && existingCanonical.Confidence >= 0.5 && p.Confidence >= 0.5:
		fs.contestWith(key, existingCanonical, belief)
		delete(s.Canonical, key)
	case hasLocal && !valuesEqual(existingLocal.Value, p.Value) && existingLocal.Confidence >= 0.5 && p.Confidence >= 0.5 && !fs.signedOnlyBy(e.Actor, existingLocal.SourceEventIDs):
		fs.contestWith(key, existingLocal, belief)
		delete(s.Local, key)
	case hasLocal && (valuesEqual(existingLocal.Value, p.Value) || fs.signedOnlyBy(e.Actor, existingLocal.SourceEventIDs)):
		merged := existingLocal
		merged.Value = p.Value
		merged.Confidence = p.Confidence
		merged.LastUpdateUTC = e.TimestampUTC
		merged.SourceEventIDs = append(merged.SourceEventIDs, e.EventID)
		s.Local[key] = merged
	default:
		s.Local[key] = belief
	}
}

// signedOnlyBy reports whether every event in ids is on actor's chain.
func (fs *foldState) signedOnlyBy(actor string, ids []string) bool {
	for _, id := range ids {
		if _, ok := fs.positionOf[actor][id]; !ok {
			return false
		}
	}
	return true
}

func (fs *foldState) contestWith(key string, a, b Belief) {
	entry := fs.state.Contested[key]
	entry.Branches = append(entry.Branches, a, b)
	fs.state.Contested[key] = entry
}

func (fs *foldState) applyAttestation(e *events.Event, pos int) {
	var p observationPayload
	if err := decode(e.Payload, &p); err != nil {
		return
	}
	key := subjectPredicateKey(p.Subject, p.Predicate)
	belief := Belief{
		Value:          p.Value,
		Confidence:     p.Confidence,
		SourceEventIDs: []string{e.EventID},
		LastUpdateUTC:  e.TimestampUTC,
	}

	if fs.suspect(e.Actor, pos) {
		fs.moveToContested(key, belief)
		return
	}

	s := fs.state

	if contested, ok := s.Contested[key]; ok {
		resolves := false
		for _, branch := range contested.Branches {
			if valuesEqual(branch.Value, p.Value) {
				resolves = true
				break
			}
		}
		if !resolves {
			// The attestation doesn't settle any branch already on
			// record — add it as one more contested claim rather than
			// overwriting canonical out from under an unresolved fork.
			fs.moveToContested(key, belief)
			return
		}
		fs.archiveContestedEvidence(key, contested, e.EventID)
		delete(s.Contested, key)
		delete(s.Local, key)
		s.Canonical[key] = belief
		return
	}

	if prior, ok := s.Canonical[key]; ok && !valuesEqual(prior.Value, p.Value) {
		s.Archived[key] = ArchivedEntry{Belief: prior, SupersededBy: e.EventID}
	}

	delete(s.Local, key)
	s.Canonical[key] = belief
}

func (fs *foldState) archiveContestedEvidence(key string, contested ContestedEntry, resolvedBy string) {
	for i, branch := range contested.Branches {
		archiveKey := key
		if i > 0 && len(branch.SourceEventIDs) > 0 {
			archiveKey = key + "#" + branch.SourceEventIDs[0]
		}
		fs.state.Archived[archiveKey] = ArchivedEntry{Belief: branch, SupersededBy: resolvedBy}
	}
}

func (fs *foldState) applyRetraction(e *events.Event) {
	var p retractionPayload
	if err := decode(e.Payload, &p); err != nil {
		return
	}
	key := subjectPredicateKey(p.TargetSubject, p.TargetPredicate)
	s := fs.state

	if b, ok := s.Canonical[key]; ok {
		s.Archived[key] = ArchivedEntry{Belief: b, RetractedBy: e.EventID}
		delete(s.Canonical, key)
		return
	}
	if b, ok := s.Local[key]; ok {
		s.Archived[key] = ArchivedEntry{Belief: b, RetractedBy: e.EventID}
		delete(s.Local, key)
		return
	}
	if c, ok := s.Contested[key]; ok {
		for i, branch := range c.Branches {
			archiveKey := key
			if i > 0 && len(branch.SourceEventIDs) > 0 {
				archiveKey = key + "#" + branch.SourceEventIDs[0]
			}
			s.Archived[archiveKey] = ArchivedEntry{Belief: branch, RetractedBy: e.EventID}
		}
		delete(s.Contested, key)
	}
}

func valuesEqual(a, b interface{}) bool {
	ab, errA := canon.Marshal(a)
	bb, errB := canon.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

func decode(payload interface{}, out interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
