package typeinfo

import "errors"

var (
	// ErrTypeIntrospection is returned when a type cannot be described:
	// it is not a struct, has no persistable fields, or has a field of an
	// unsupported kind.
	ErrTypeIntrospection = errors.New("typeinfo: failed to get type info")

	// ErrInvalidTag is returned for a malformed orm struct tag.
	ErrInvalidTag = errors.New("typeinfo: invalid struct tag")
)
