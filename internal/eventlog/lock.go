package eventlog

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/ParichayaHQ/vault/internal/vaulterr"
)

// fileLock is an OS-level exclusive advisory lock on a sentinel file
// inside the vault, enforcing the single-writer policy: conflicting
// writers fail fast with VaultLocked instead of blocking.
type fileLock struct {
	f *os.File
}

func acquireLock(path string) (*fileLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, vaulterr.WithPath(vaulterr.KindIoError, "eventlog.lock", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, vaulterr.WithPath(vaulterr.KindVaultLocked, "eventlog.lock", path, err)
	}
	return &fileLock{f: f}, nil
}

func (l *fileLock) release() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	return l.f.Close()
}
