package orm

import (
	"errors"

	"github.com/nerrad567/graystore/internal/codec"
	"github.com/nerrad567/graystore/internal/typeinfo"
)

// Errors returned by the orm package. Check them with errors.Is.
var (
	// ErrConnectionUnavailable is returned when a database file cannot be
	// opened or its key cannot be obtained. It is not retried.
	ErrConnectionUnavailable = errors.New("orm: database connection unavailable")

	// ErrNoPrimaryKey is returned by operations that address records by
	// primary key when the record type declares none.
	ErrNoPrimaryKey = errors.New("orm: record type has no primary key")

	// ErrUnknownDatabase is returned when inspecting a database file that
	// does not exist.
	ErrUnknownDatabase = errors.New("orm: unknown database")

	// ErrClosed is returned once the Manager has been closed.
	ErrClosed = errors.New("orm: manager closed")

	// ErrTypeIntrospection is returned for record types that cannot be
	// described.
	ErrTypeIntrospection = typeinfo.ErrTypeIntrospection

	// ErrEncodeProperty is returned when a field cannot be encoded.
	ErrEncodeProperty = codec.ErrEncodeProperty

	// ErrDecodeProperty is returned by strict managers when a column cannot
	// be decoded.
	ErrDecodeProperty = codec.ErrDecodeProperty
)

// EncodeError names the type and property that failed to encode.
type EncodeError = codec.EncodeError

// DecodeError names the type and property that failed to decode.
type DecodeError = codec.DecodeError
