package evallog

import (
	"errors"
	"strconv"
)

// Sentinel errors for sample decoding.
var (
	// ErrMissingField indicates a required top-level field is absent.
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidMessage indicates a structurally invalid element of the messages array.
	ErrInvalidMessage = errors.New("invalid message")
	// ErrInvalidUTF8 indicates message text that is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("message text is not valid UTF-8")
	// ErrUnknownRole indicates a role token outside system/user/assistant/tool.
	ErrUnknownRole = errors.New("unknown role")
	// ErrMalformedSample indicates the record is not a JSON object of the expected shape.
	ErrMalformedSample = errors.New("malformed sample record")
	// ErrEpochOverflow indicates epoch digits in an entry name exceed the epoch range.
	ErrEpochOverflow = errors.New("epoch out of range")
)

// MissingFieldError names the required field that was absent from a sample.
type MissingFieldError struct {
	Field string
}

// Error implements error.
func (e *MissingFieldError) Error() string {
	return ErrMissingField.Error() + " " + strconv.Quote(e.Field)
}

// Is reports ErrMissingField as the error's category.
func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}
