package database

import "errors"

var (
	// ErrInvalidIdentifier is returned for table or column names that are
	// not plain identifiers.
	ErrInvalidIdentifier = errors.New("database: invalid identifier")

	// ErrNoColumns is returned when creating or altering a table with an
	// empty column list.
	ErrNoColumns = errors.New("database: no columns")
)
