package vault

import (
	"testing"

	"github.com/ParichayaHQ/vault/internal/crypto"
)

func newTestKeyPair(t *testing.T) (*crypto.Ed25519KeyPair, error) {
	t.Helper()
	return crypto.NewEd25519KeyPair()
}
