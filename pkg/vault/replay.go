package vault

import (
	"github.com/ParichayaHQ/vault/internal/events"
	"github.com/ParichayaHQ/vault/internal/reducer"
	"github.com/ParichayaHQ/vault/internal/vaulterr"
)

// Replay folds the vault's event log into a belief state. If
// upToEventID is non-empty, only events up to and including it (in
// the log's own append order) are folded.
func Replay(vaultPath string, upToEventID string) (reducer.State, error) {
	log, err := openLog(vaultPath)
	if err != nil {
		return reducer.State{}, err
	}

	evs := log.All()
	if upToEventID != "" {
		evs, err = truncateAt(evs, upToEventID)
		if err != nil {
			return reducer.State{}, err
		}
	}

	state, err := reducer.Reduce(evs)
	if err != nil {
		return reducer.State{}, err
	}
	return *state, nil
}

func truncateAt(evs []*events.Event, eventID string) ([]*events.Event, error) {
	for i, e := range evs {
		if e.EventID == eventID {
			return evs[:i+1], nil
		}
	}
	return nil, vaulterr.WithEvent(vaulterr.KindIoError, "vault.replay", eventID, errEventNotFound)
}
