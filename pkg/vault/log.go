package vault

import "github.com/ParichayaHQ/vault/internal/eventlog"

func openLog(root string) (*eventlog.Log, error) {
	return eventlog.Open(eventsPath(root), lockPath(root))
}
