package vault

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ParichayaHQ/vault/internal/vaulterr"
)

// Policy is the operator-authored hint consumed by Init. It lives at
// policies/vault.yaml, a file the core otherwise treats as opaque
// (merely hashed into the manifest like any other tracked file) — its
// content only ever informs Init's own defaults, never authoritative
// replay state.
type Policy struct {
	ActorLabel    string `yaml:"actor_label"`
	RequireQuorum bool   `yaml:"require_quorum"`
}

// loadPolicy reads policies/vault.yaml if present. A missing file is
// not an error — it just means no hint was given.
func loadPolicy(root string) (*Policy, error) {
	b, err := os.ReadFile(policyPath(root))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, vaulterr.WithPath(vaulterr.KindIoError, "vault.load_policy", policyPath(root), err)
	}
	var p Policy
	if err := yaml.Unmarshal(b, &p); err != nil {
		return nil, vaulterr.WithPath(vaulterr.KindIoError, "vault.load_policy", policyPath(root), err)
	}
	return &p, nil
}
