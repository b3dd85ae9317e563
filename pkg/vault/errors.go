package vault

import "errors"

var (
	errAlreadyInitialized = errors.New("vault already initialized")
	errSelfTestFailed     = errors.New("self-test verify failed immediately after init")
	errEventNotFound      = errors.New("event_id not found in this vault's log")
)
