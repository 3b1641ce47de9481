package storage

import (
	"encoding/hex"
	"math"
	"strconv"
	"strings"
)

// Class is one of the four database-native storage classes.
type Class int

const (
	ClassInteger Class = iota + 1
	ClassReal
	ClassText
	ClassBlob
)

// String returns the SQL type name of the class.
func (c Class) String() string {
	switch c {
	case ClassInteger:
		return "INTEGER"
	case ClassReal:
		return "REAL"
	case ClassText:
		return "TEXT"
	case ClassBlob:
		return "BLOB"
	default:
		return "UNKNOWN"
	}
}

// Value is a database-native storage value.
//
// The set of implementations is closed: Integer, Real, Text and Blob.
type Value interface {
	// Class reports the storage class of the value.
	Class() Class

	// Native returns the value as the Go type the SQL driver binds directly.
	Native() any

	// Literal renders the value as an SQL literal. It is used for column
	// DEFAULT clauses only; queries always bind values as parameters.
	Literal() string

	value()
}

// Integer is a signed 64-bit integer storage value.
type Integer int64

// Real is a 64-bit floating point storage value.
type Real float64

// Text is a UTF-8 text storage value.
type Text string

// Blob is a raw byte storage value.
type Blob []byte

func (Integer) Class() Class { return ClassInteger }
func (Real) Class() Class    { return ClassReal }
func (Text) Class() Class    { return ClassText }
func (Blob) Class() Class    { return ClassBlob }

func (v Integer) Native() any { return int64(v) }
func (v Real) Native() any    { return float64(v) }
func (v Text) Native() any    { return string(v) }
func (v Blob) Native() any    { return []byte(v) }

func (v Integer) Literal() string { return strconv.FormatInt(int64(v), 10) }

func (v Real) Literal() string {
	f := float64(v)
	switch {
	case math.IsNaN(f):
		return "NULL"
	case math.IsInf(f, 1):
		return "9e999"
	case math.IsInf(f, -1):
		return "-9e999"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEn") {
		// Keep REAL affinity for integral values.
		s += ".0"
	}
	return s
}

func (v Text) Literal() string {
	return "'" + strings.ReplaceAll(string(v), "'", "''") + "'"
}

func (v Blob) Literal() string {
	return "X'" + strings.ToUpper(hex.EncodeToString(v)) + "'"
}

func (Integer) value() {}
func (Real) value()    {}
func (Text) value()    {}
func (Blob) value()    {}

// FromNative converts a value returned by the SQL driver into a storage
// value. It reports false for NULL and for types the driver never produces.
func FromNative(v any) (Value, bool) {
	switch n := v.(type) {
	case int64:
		return Integer(n), true
	case int:
		return Integer(int64(n)), true
	case int32:
		return Integer(int64(n)), true
	case bool:
		if n {
			return Integer(1), true
		}
		return Integer(0), true
	case float64:
		return Real(n), true
	case float32:
		return Real(float64(n)), true
	case string:
		return Text(n), true
	case []byte:
		return Blob(n), true
	case Value:
		return n, true
	default:
		if t, ok := asTime(v); ok {
			return Text(FormatTime(t)), true
		}
		return nil, false
	}
}

// TextOf returns the textual content of a Text value. Blob content is
// accepted as well since some drivers hand TEXT columns back as bytes.
func TextOf(v Value) (string, bool) {
	switch s := v.(type) {
	case Text:
		return string(s), true
	case Blob:
		return string(s), true
	default:
		return "", false
	}
}

// BlobOf returns the content of a Blob value, or the bytes of a Text value.
func BlobOf(v Value) ([]byte, bool) {
	switch b := v.(type) {
	case Blob:
		return []byte(b), true
	case Text:
		return []byte(b), true
	default:
		return nil, false
	}
}
