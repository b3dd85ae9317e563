package vault

import (
	"bytes"
	"os"

	"github.com/ParichayaHQ/vault/internal/canon"
	"github.com/ParichayaHQ/vault/internal/eventlog"
	"github.com/ParichayaHQ/vault/internal/events"
	"github.com/ParichayaHQ/vault/internal/keyregistry"
	"github.com/ParichayaHQ/vault/internal/vaulterr"
)

// MergeReport summarizes a union merge: how many events each side
// contributed, how many survived de-duplication by event_id, and any
// chain issues (forks, breaks) the merged union_merge that run uncovers.
type MergeReport struct {
	ChainIssues  []eventlog.ChainIssue
	EventsFromA  int
	EventsFromB  int
	EventsMerged int
}

// OK reports whether the merged chain verified clean.
func (r MergeReport) OK() bool { return len(r.ChainIssues) == 0 }

// UnionMerge combines two vaults' event logs by event_id and writes
// the result to outPath. The merged vault carries events and identity
// state but not a fresh seal — UnionMerge has no signing key to
// produce one; callers reseal it with their next Append or Rotate.
func UnionMerge(vaultPathA, vaultPathB, outPath string) (MergeReport, error) {
	logA, err := openLog(vaultPathA)
	if err != nil {
		return MergeReport{}, err
	}
	logB, err := openLog(vaultPathB)
	if err != nil {
		return MergeReport{}, err
	}

	combined := mergeRegistries(rebuildRegistry(logA), rebuildRegistry(logB))
	merged, report := logA.UnionMerge(logB, combined)

	if err := ensureLayout(outPath); err != nil {
		return MergeReport{}, vaulterr.WithPath(vaulterr.KindIoError, "vault.union_merge", outPath, err)
	}
	if err := writeEventsFile(outPath, merged.All()); err != nil {
		return MergeReport{}, err
	}

	if payload, err := pickGenesis(vaultPathA, vaultPathB); err == nil {
		if err := writeGenesisPayload(outPath, payload); err != nil {
			return MergeReport{}, err
		}
	}
	if err := writeKeysSnapshot(outPath, rebuildRegistry(merged)); err != nil {
		return MergeReport{}, err
	}

	return MergeReport{
		ChainIssues:  report.Issues,
		EventsFromA:  len(logA.All()),
		EventsFromB:  len(logB.All()),
		EventsMerged: len(merged.All()),
	}, nil
}

func mergeRegistries(a, b *keyregistry.Registry) *keyregistry.Registry {
	snapshot := a.Snapshot()
	for id, rec := range b.Snapshot() {
		if _, exists := snapshot[id]; !exists {
			snapshot[id] = rec
		}
	}
	return keyregistry.LoadSnapshot(snapshot)
}

func pickGenesis(vaultPathA, vaultPathB string) (events.GenesisPayload, error) {
	if payload, err := readGenesisPayload(vaultPathA); err == nil {
		return payload, nil
	}
	return readGenesisPayload(vaultPathB)
}

func writeEventsFile(root string, evs []*events.Event) error {
	var buf bytes.Buffer
	for _, e := range evs {
		line, err := canon.Marshal(e)
		if err != nil {
			return vaulterr.WithEvent(vaulterr.KindCanonicalization, "vault.union_merge", e.EventID, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	if err := os.WriteFile(eventsPath(root), buf.Bytes(), 0o644); err != nil {
		return vaulterr.WithPath(vaulterr.KindIoError, "vault.union_merge", eventsPath(root), err)
	}
	return nil
}
