// Package storage defines the canonical storage-value model.
//
// Every record field that reaches the database is normalised into one of four
// storage classes understood natively by SQLite: INTEGER, REAL, TEXT and BLOB.
// Value is a closed sum type over those classes; conversions between Go values
// and storage values either succeed exactly or report that no value could be
// produced.
//
// Coercion rules:
//
//	bool                         Integer 0/1 (any non-zero integer reads back as true)
//	int, int64                   Integer
//	int8..int32, uint8..uint32   Integer, range-checked on decode
//	uint, uint64                 Text (decimal string)
//	float32, float64             Real, float32 decode must be exact
//	decimal.Decimal, big.Int     Text
//	json.Number                  Text
//	string                       Text
//	[]byte                       Blob
//	uuid.UUID, [16]byte          Blob of exactly 16 bytes
//	time.Time                    Text "2006-01-02 15:04:05.000" in UTC
//
// Timestamps keep millisecond precision; anything finer is dropped.
package storage
