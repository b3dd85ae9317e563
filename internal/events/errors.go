package events

import "errors"

var (
	// ErrInvalidEventStructure indicates the event structure is malformed
	ErrInvalidEventStructure = errors.New("invalid event structure")

	// ErrMissingRequiredField indicates a required field is missing
	ErrMissingRequiredField = errors.New("missing required field")

	// ErrInvalidEventID indicates event_id does not match its own content
	ErrInvalidEventID = errors.New("event_id does not match canonical content")

	// ErrInvalidCustomType indicates a custom event type tag is malformed
	ErrInvalidCustomType = errors.New("custom event type must be a reverse-domain tag")
)
