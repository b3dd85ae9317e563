// Package reducer implements the pure fold from an ordered event
// sequence to a four-namespace belief state, and the deterministic
// state hash over it.
package reducer

import (
	"sort"

	"github.com/ParichayaHQ/vault/internal/canon"
)

// Belief is one namespace entry: a value with its confidence and the
// event IDs that support it.
type Belief struct {
	Value          interface{} `json:"value"`
	Confidence     float64     `json:"confidence"`
	SourceEventIDs []string    `json:"source_event_ids"`
	LastUpdateUTC  string      `json:"last_update_utc"`
}

// ContestedEntry holds the competing branches for a subject:predicate
// key that multiple high-confidence sources disagree on.
type ContestedEntry struct {
	Branches []Belief `json:"branches"`
}

// ArchivedEntry is a superseded or retracted belief, kept with
// provenance pointing at whatever replaced it.
type ArchivedEntry struct {
	Belief
	SupersededBy string `json:"superseded_by,omitempty"`
	RetractedBy  string `json:"retracted_by,omitempty"`
}

// Metadata carries the fields of State outside the four namespaces.
type Metadata struct {
	StateHash     string `json:"state_hash"`
	EventsApplied int    `json:"events_applied"`
	IgnoredEvents int    `json:"ignored_events"`
}

// State is the full reduced belief state.
type State struct {
	Canonical map[string]Belief         `json:"canonical"`
	Local     map[string]Belief         `json:"local"`
	Contested map[string]ContestedEntry `json:"contested"`
	Archived  map[string]ArchivedEntry  `json:"archived"`
	Metadata  Metadata                  `json:"metadata"`
}

func newState() *State {
	return &State{
		Canonical: make(map[string]Belief),
		Local:     make(map[string]Belief),
		Contested: make(map[string]ContestedEntry),
		Archived:  make(map[string]ArchivedEntry),
	}
}

// sortedEvidence returns a sorted copy of event IDs, for the state
// hash's canonical ordering requirement.
func sortedEvidence(ids []string) []string {
	out := append([]string{}, ids...)
	sort.Strings(out)
	return out
}

// computeStateHash hashes the canonical bytes of state's namespaces
// with evidence lists sorted, per the state-hash contract. It does
// not itself sort namespace keys — canon.Marshal already sorts all
// object keys, which covers "namespace keys sorted" and "entries
// within each namespace sorted by subject:predicate" simultaneously.
func computeStateHash(s *State) (string, error) {
	normalized := struct {
		Canonical map[string]Belief         `json:"canonical"`
		Local     map[string]Belief         `json:"local"`
		Contested map[string]ContestedEntry `json:"contested"`
		Archived  map[string]ArchivedEntry  `json:"archived"`
	}{
		Canonical: sortBeliefEvidence(s.Canonical),
		Local:     sortBeliefEvidence(s.Local),
		Contested: sortContestedEvidence(s.Contested),
		Archived:  sortArchivedEvidence(s.Archived),
	}
	return canon.Hash(normalized)
}

func sortBeliefEvidence(m map[string]Belief) map[string]Belief {
	out := make(map[string]Belief, len(m))
	for k, v := range m {
		v.SourceEventIDs = sortedEvidence(v.SourceEventIDs)
		out[k] = v
	}
	return out
}

func sortContestedEvidence(m map[string]ContestedEntry) map[string]ContestedEntry {
	out := make(map[string]ContestedEntry, len(m))
	for k, v := range m {
		branches := make([]Belief, len(v.Branches))
		copy(branches, v.Branches)
		for i := range branches {
			branches[i].SourceEventIDs = sortedEvidence(branches[i].SourceEventIDs)
		}
		sort.Slice(branches, func(i, j int) bool {
			return branchKey(branches[i]) < branchKey(branches[j])
		})
		out[k] = ContestedEntry{Branches: branches}
	}
	return out
}

func branchKey(b Belief) string {
	if len(b.SourceEventIDs) == 0 {
		return ""
	}
	ids := sortedEvidence(b.SourceEventIDs)
	return ids[0]
}

func sortArchivedEvidence(m map[string]ArchivedEntry) map[string]ArchivedEntry {
	out := make(map[string]ArchivedEntry, len(m))
	for k, v := range m {
		v.SourceEventIDs = sortedEvidence(v.SourceEventIDs)
		out[k] = v
	}
	return out
}

func subjectPredicateKey(subject, predicate string) string {
	return subject + ":" + predicate
}
