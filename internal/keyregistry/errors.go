package keyregistry

import "errors"

var (
	errAlreadyKnown       = errors.New("key already present in registry")
	errSignerNotActive    = errors.New("signer is not an active key")
	errSelfRevocation     = errors.New("a key may not revoke itself")
	errSelfPromotion      = errors.New("a key may not promote itself")
	errTargetNotActive    = errors.New("revocation target is not an active key")
	errTargetAlreadyKnown = errors.New("promotion target is already registered")
)
