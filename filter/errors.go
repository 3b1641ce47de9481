package filter

import "errors"

var (
	// ErrUnknownKey is returned when a key names neither a column nor a
	// property of the record type.
	ErrUnknownKey = errors.New("filter: unknown key")

	// ErrInvalidTerm is returned for a term that cannot be compiled, such
	// as a negative limit or an unkeyed range with no preceding key.
	ErrInvalidTerm = errors.New("filter: invalid term")
)
