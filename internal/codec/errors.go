package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrEncodeProperty is returned when a field value cannot be encoded.
	ErrEncodeProperty = errors.New("codec: failed to encode property")

	// ErrDecodeProperty is returned by a strict codec when a column value
	// cannot be decoded into its field.
	ErrDecodeProperty = errors.New("codec: failed to decode property")

	errNoValue = errors.New("no exact storage value")
)

// EncodeError names the record type and property that failed to encode.
// It matches ErrEncodeProperty and the underlying cause with errors.Is.
type EncodeError struct {
	Type     string
	Property string
	Err      error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("%v %s.%s: %v", ErrEncodeProperty, e.Type, e.Property, e.Err)
}

func (e *EncodeError) Unwrap() []error {
	return []error{ErrEncodeProperty, e.Err}
}

// DecodeError names the record type and property that failed to decode.
// It matches ErrDecodeProperty and the underlying cause with errors.Is.
type DecodeError struct {
	Type     string
	Property string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v %s.%s: %v", ErrDecodeProperty, e.Type, e.Property, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrDecodeProperty, e.Err}
}
