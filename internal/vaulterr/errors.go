// Package vaulterr defines the stable error taxonomy shared by every
// vault component, mirroring the way the teacher's store package wraps
// a small set of sentinel errors in one context-carrying type instead
// of growing a bespoke error type per package.
package vaulterr

import (
	"errors"
	"fmt"
)

// Kind is one of the stable error kinds external collaborators branch on.
type Kind string

const (
	KindCanonicalization     Kind = "CanonicalizationError"
	KindSignatureInvalid     Kind = "SignatureInvalid"
	KindKeyNotAuthorized     Kind = "KeyNotAuthorized"
	KindChainBroken          Kind = "ChainBroken"
	KindForkDetected         Kind = "ForkDetected"
	KindDuplicateEventID     Kind = "DuplicateEventId"
	KindRotationRuleViolation Kind = "RotationRuleViolation"
	KindMerkleRootMismatch   Kind = "MerkleRootMismatch"
	KindFileHashMismatch     Kind = "FileHashMismatch"
	KindFileMissing          Kind = "FileMissing"
	KindUntrackedFile        Kind = "UntrackedFile"
	KindPathEscape           Kind = "PathEscape"
	KindSymlinkRejected      Kind = "SymlinkRejected"
	KindVaultLocked          Kind = "VaultLocked"
	KindIoError              Kind = "IoError"
	KindManifestSignatureInvalid Kind = "ManifestSignatureInvalid"
)

// Error wraps a Kind with actionable context: the offending event ID,
// file path, or key ID, and the underlying cause if any.
type Error struct {
	Kind    Kind
	Op      string
	EventID string
	Path    string
	KeyID   string
	Actor   string
	Err     error
}

func (e *Error) Error() string {
	ctx := ""
	switch {
	case e.EventID != "":
		ctx = fmt.Sprintf(" (event: %s)", e.EventID)
	case e.Path != "":
		ctx = fmt.Sprintf(" (path: %s)", e.Path)
	case e.KeyID != "":
		ctx = fmt.Sprintf(" (key: %s)", e.KeyID)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v%s", e.Op, e.Kind, e.Err, ctx)
	}
	return fmt.Sprintf("%s: %s%s", e.Op, e.Kind, ctx)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of the first *Error in err's chain, and
// false if there is none.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func WithEvent(kind Kind, op, eventID string, err error) *Error {
	return &Error{Kind: kind, Op: op, EventID: eventID, Err: err}
}

func WithPath(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

func WithKey(kind Kind, op, keyID string, err error) *Error {
	return &Error{Kind: kind, Op: op, KeyID: keyID, Err: err}
}

// Is reports whether err is a vaulterr.Error of the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
