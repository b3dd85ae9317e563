package events

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ParichayaHQ/vault/internal/crypto"
)

var (
	keyIDRegex      = regexp.MustCompile(`^bp1_[0-9a-f]{16}$`)
	eventIDRegex    = regexp.MustCompile(`^evt_[0-9a-f]{24}$`)
	customTypeRegex = regexp.MustCompile(`^[a-z0-9]+(\.[a-z0-9-]+)+$`)

	validate *validator.Validate
)

func init() {
	validate = validator.New()
	validate.RegisterValidation("keyid", validateKeyID)
	validate.RegisterValidation("eventid", validateEventIDFormat)
	validate.RegisterValidation("eventtype", validateEventTypeField)
}

func validateKeyID(fl validator.FieldLevel) bool {
	return IsValidKeyID(fl.Field().String())
}

func validateEventIDFormat(fl validator.FieldLevel) bool {
	return IsValidEventIDFormat(fl.Field().String())
}

func validateEventTypeField(fl validator.FieldLevel) bool {
	return IsValidEventType(EventType(fl.Field().String()))
}

// IsValidKeyID reports whether id has the canonical key-ID shape.
func IsValidKeyID(id string) bool {
	return keyIDRegex.MatchString(id)
}

// IsValidEventIDFormat reports whether id has the canonical event-ID shape.
// It does not verify the ID actually matches any event's content.
func IsValidEventIDFormat(id string) bool {
	return eventIDRegex.MatchString(id)
}

// IsValidEventType reports whether typ is either one of the known
// vocabulary entries or a well-formed reverse-domain custom tag.
func IsValidEventType(typ EventType) bool {
	if IsKnownType(typ) {
		return true
	}
	return customTypeRegex.MatchString(string(typ))
}

// ValidateStructure runs struct-tag validation plus the shape checks
// that depend on more than one field.
func ValidateStructure(e *Event) error {
	if e == nil {
		return ErrInvalidEventStructure
	}
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEventStructure, err)
	}
	if _, err := time.Parse(time.RFC3339Nano, e.TimestampUTC); err != nil {
		if _, err2 := time.Parse(time.RFC3339, e.TimestampUTC); err2 != nil {
			return fmt.Errorf("%w: timestamp_utc is not ISO-8601: %v", ErrInvalidEventStructure, err)
		}
	}
	return nil
}

// ValidateEventID recomputes the event's event_id from its content
// and confirms it matches the EventID field actually set.
func ValidateEventID(e *Event) error {
	want, err := e.DeriveEventID()
	if err != nil {
		return err
	}
	if e.EventID != want {
		return ErrInvalidEventID
	}
	return nil
}

// VerifySignature checks that e.Signature verifies over e's signing
// digest under publicKey. It assumes e.EventID is already populated.
func VerifySignature(e *Event, publicKey []byte, verifier *crypto.Ed25519Verifier) (bool, error) {
	digest, err := e.SigningDigest()
	if err != nil {
		return false, err
	}
	sig, err := base64.StdEncoding.DecodeString(e.Signature)
	if err != nil {
		return false, fmt.Errorf("%w: malformed signature base64: %v", ErrInvalidEventStructure, err)
	}
	return verifier.Verify(ed25519.PublicKey(publicKey), digest, sig), nil
}
