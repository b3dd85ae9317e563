package vault

import (
	"encoding/json"
	"os"

	"github.com/ParichayaHQ/vault/internal/eventlog"
	"github.com/ParichayaHQ/vault/internal/events"
	"github.com/ParichayaHQ/vault/internal/keyregistry"
	"github.com/ParichayaHQ/vault/internal/vaulterr"
)

// rebuildRegistry replays a log's events through the key registry in
// append order, so Append and Verify always check signatures against
// the log's own history rather than a possibly stale keys.json.
func rebuildRegistry(log *eventlog.Log) *keyregistry.Registry {
	r := keyregistry.New()
	for _, e := range log.All() {
		_ = r.ApplyEvent(e)
	}
	return r
}

// writeKeysSnapshot persists the registry to identity/keys.json, a
// convenience mirror of what rebuildRegistry would recompute from the
// log — useful for external tooling that wants the current key state
// without replaying the whole chain.
func writeKeysSnapshot(root string, r *keyregistry.Registry) error {
	snapshot := r.Snapshot()
	b, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return vaulterr.New(vaulterr.KindIoError, "vault.write_keys_snapshot", err)
	}
	if err := os.WriteFile(keysPath(root), b, 0o644); err != nil {
		return vaulterr.WithPath(vaulterr.KindIoError, "vault.write_keys_snapshot", keysPath(root), err)
	}
	return nil
}

func readGenesisPayload(root string) (events.GenesisPayload, error) {
	var payload events.GenesisPayload
	b, err := os.ReadFile(genesisPath(root))
	if err != nil {
		return payload, vaulterr.WithPath(vaulterr.KindIoError, "vault.read_genesis", genesisPath(root), err)
	}
	if err := json.Unmarshal(b, &payload); err != nil {
		return payload, vaulterr.New(vaulterr.KindIoError, "vault.read_genesis", err)
	}
	return payload, nil
}

func writeGenesisPayload(root string, payload events.GenesisPayload) error {
	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return vaulterr.New(vaulterr.KindIoError, "vault.write_genesis", err)
	}
	if err := os.WriteFile(genesisPath(root), b, 0o644); err != nil {
		return vaulterr.WithPath(vaulterr.KindIoError, "vault.write_genesis", genesisPath(root), err)
	}
	return nil
}
