package storage

import (
	"encoding/json"
	"math"
	"math/big"
	"reflect"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TimeLayout is the text layout used for timestamps.
const TimeLayout = "2006-01-02 15:04:05.000"

var (
	timeType    = reflect.TypeFor[time.Time]()
	uuidType    = reflect.TypeFor[uuid.UUID]()
	decimalType = reflect.TypeFor[decimal.Decimal]()
	bigIntType  = reflect.TypeFor[big.Int]()
	numberType  = reflect.TypeFor[json.Number]()
)

// basicTypes maps each primitive kind to its predeclared type.
var basicTypes = map[reflect.Kind]reflect.Type{
	reflect.Bool:    reflect.TypeFor[bool](),
	reflect.Int:     reflect.TypeFor[int](),
	reflect.Int8:    reflect.TypeFor[int8](),
	reflect.Int16:   reflect.TypeFor[int16](),
	reflect.Int32:   reflect.TypeFor[int32](),
	reflect.Int64:   reflect.TypeFor[int64](),
	reflect.Uint:    reflect.TypeFor[uint](),
	reflect.Uint8:   reflect.TypeFor[uint8](),
	reflect.Uint16:  reflect.TypeFor[uint16](),
	reflect.Uint32:  reflect.TypeFor[uint32](),
	reflect.Uint64:  reflect.TypeFor[uint64](),
	reflect.Float32: reflect.TypeFor[float32](),
	reflect.Float64: reflect.TypeFor[float64](),
	reflect.String:  reflect.TypeFor[string](),
}

// FormatTime renders t in TimeLayout after converting it to UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a TimeLayout timestamp as UTC.
func ParseTime(s string) (time.Time, bool) {
	t, err := time.ParseInLocation(TimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func asTime(v any) (time.Time, bool) {
	t, ok := v.(time.Time)
	return t, ok
}

// IsScalar reports whether t maps directly to a storage class: the
// predeclared primitive types, []byte, [16]byte and the well-known
// value types (time.Time, uuid.UUID, decimal.Decimal, big.Int,
// json.Number). Named types defined on top of a primitive are not scalars.
func IsScalar(t reflect.Type) bool {
	switch t {
	case timeType, uuidType, decimalType, bigIntType, numberType:
		return true
	}
	if t.PkgPath() != "" {
		return false
	}
	if basicTypes[t.Kind()] == t {
		return true
	}
	return isByteSlice(t) || isByteArray16(t)
}

// Underlying returns the predeclared type for a named primitive type, or
// nil when t is not backed by a primitive kind.
func Underlying(t reflect.Type) reflect.Type {
	return basicTypes[t.Kind()]
}

// ClassOf reports the storage class used for values of type t.
func ClassOf(t reflect.Type) (Class, bool) {
	switch t {
	case timeType, decimalType, bigIntType, numberType:
		return ClassText, true
	case uuidType:
		return ClassBlob, true
	}
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return ClassInteger, true
	case reflect.Uint, reflect.Uint64:
		return ClassText, true
	case reflect.Float32, reflect.Float64:
		return ClassReal, true
	case reflect.String:
		return ClassText, true
	case reflect.Slice:
		if isByteSlice(t) {
			return ClassBlob, true
		}
	case reflect.Array:
		if isByteArray16(t) {
			return ClassBlob, true
		}
	}
	return 0, false
}

// Encode converts a Go value into its storage value. It reports false when
// the type has no storage class or the value cannot be represented exactly.
func Encode(v reflect.Value) (Value, bool) {
	switch v.Type() {
	case timeType:
		return Text(FormatTime(v.Interface().(time.Time))), true
	case uuidType:
		id := v.Interface().(uuid.UUID)
		return Blob(append([]byte(nil), id[:]...)), true
	case decimalType:
		return Text(v.Interface().(decimal.Decimal).String()), true
	case bigIntType:
		n := v.Interface().(big.Int)
		return Text(n.String()), true
	case numberType:
		n := json.Number(v.String())
		if !validNumber(n) {
			return nil, false
		}
		return Text(n), true
	}

	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			return Integer(1), true
		}
		return Integer(0), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Integer(v.Int()), true
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return Integer(int64(v.Uint())), true
	case reflect.Uint, reflect.Uint64:
		return Text(strconv.FormatUint(v.Uint(), 10)), true
	case reflect.Float32, reflect.Float64:
		return Real(v.Float()), true
	case reflect.String:
		return Text(v.String()), true
	case reflect.Slice:
		if isByteSlice(v.Type()) {
			if v.IsNil() {
				return Blob(nil), true
			}
			return Blob(append([]byte{}, v.Bytes()...)), true
		}
	case reflect.Array:
		if isByteArray16(v.Type()) {
			b := make([]byte, 16)
			reflect.Copy(reflect.ValueOf(b), v)
			return Blob(b), true
		}
	}
	return nil, false
}

// Decode converts a storage value into a new value of type t. It reports
// false when the storage class does not fit t or the conversion would lose
// information.
func Decode(sv Value, t reflect.Type) (reflect.Value, bool) {
	out := reflect.New(t).Elem()

	switch t {
	case timeType:
		s, ok := TextOf(sv)
		if !ok {
			return out, false
		}
		ts, ok := ParseTime(s)
		if !ok {
			return out, false
		}
		out.Set(reflect.ValueOf(ts))
		return out, true
	case uuidType:
		b, ok := BlobOf(sv)
		if !ok || len(b) != 16 {
			return out, false
		}
		var id uuid.UUID
		copy(id[:], b)
		out.Set(reflect.ValueOf(id))
		return out, true
	case decimalType:
		d, ok := decodeDecimal(sv)
		if !ok {
			return out, false
		}
		out.Set(reflect.ValueOf(d))
		return out, true
	case bigIntType:
		n, ok := decodeBigInt(sv)
		if !ok {
			return out, false
		}
		out.Set(reflect.ValueOf(n).Elem())
		return out, true
	case numberType:
		n, ok := decodeNumber(sv)
		if !ok {
			return out, false
		}
		out.SetString(string(n))
		return out, true
	}

	switch t.Kind() {
	case reflect.Bool:
		i, ok := sv.(Integer)
		if !ok {
			return out, false
		}
		out.SetBool(i != 0)
		return out, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, ok := sv.(Integer)
		if !ok || out.OverflowInt(int64(i)) {
			return out, false
		}
		out.SetInt(int64(i))
		return out, true
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		i, ok := sv.(Integer)
		if !ok || i < 0 || out.OverflowUint(uint64(i)) {
			return out, false
		}
		out.SetUint(uint64(i))
		return out, true
	case reflect.Uint, reflect.Uint64:
		u, ok := decodeUnsigned(sv)
		if !ok || out.OverflowUint(u) {
			return out, false
		}
		out.SetUint(u)
		return out, true
	case reflect.Float32:
		f, ok := decodeFloat(sv)
		if !ok {
			return out, false
		}
		if narrow := float32(f); float64(narrow) != f && !math.IsNaN(f) {
			return out, false
		}
		out.SetFloat(f)
		return out, true
	case reflect.Float64:
		f, ok := decodeFloat(sv)
		if !ok {
			return out, false
		}
		out.SetFloat(f)
		return out, true
	case reflect.String:
		s, ok := TextOf(sv)
		if !ok {
			return out, false
		}
		out.SetString(s)
		return out, true
	case reflect.Slice:
		if !isByteSlice(t) {
			return out, false
		}
		b, ok := BlobOf(sv)
		if !ok {
			return out, false
		}
		out.SetBytes(append([]byte{}, b...))
		return out, true
	case reflect.Array:
		if !isByteArray16(t) {
			return out, false
		}
		b, ok := BlobOf(sv)
		if !ok || len(b) != 16 {
			return out, false
		}
		reflect.Copy(out, reflect.ValueOf(b))
		return out, true
	}
	return out, false
}

func decodeUnsigned(sv Value) (uint64, bool) {
	switch v := sv.(type) {
	case Integer:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	default:
		s, ok := TextOf(sv)
		if !ok {
			return 0, false
		}
		u, err := strconv.ParseUint(s, 10, 64)
		return u, err == nil
	}
}

// decodeFloat accepts Real values, and Integer values that convert to
// float64 without rounding.
func decodeFloat(sv Value) (float64, bool) {
	switch v := sv.(type) {
	case Real:
		return float64(v), true
	case Integer:
		f := float64(v)
		if f >= math.MaxInt64 || int64(f) != int64(v) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func decodeDecimal(sv Value) (decimal.Decimal, bool) {
	switch v := sv.(type) {
	case Integer:
		return decimal.NewFromInt(int64(v)), true
	case Real:
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat(f), true
	default:
		s, ok := TextOf(sv)
		if !ok {
			return decimal.Decimal{}, false
		}
		d, err := decimal.NewFromString(s)
		return d, err == nil
	}
}

func decodeBigInt(sv Value) (*big.Int, bool) {
	switch v := sv.(type) {
	case Integer:
		return big.NewInt(int64(v)), true
	case Real:
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			return nil, false
		}
		n, _ := big.NewFloat(f).Int(nil)
		return n, true
	default:
		s, ok := TextOf(sv)
		if !ok {
			return nil, false
		}
		return new(big.Int).SetString(s, 10)
	}
}

func decodeNumber(sv Value) (json.Number, bool) {
	switch v := sv.(type) {
	case Integer:
		return json.Number(strconv.FormatInt(int64(v), 10)), true
	case Real:
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "", false
		}
		return json.Number(strconv.FormatFloat(f, 'g', -1, 64)), true
	default:
		s, ok := TextOf(sv)
		if !ok || !validNumber(json.Number(s)) {
			return "", false
		}
		return json.Number(s), true
	}
}

// numberPattern is the JSON number grammar.
var numberPattern = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)

func validNumber(n json.Number) bool {
	return numberPattern.MatchString(string(n))
}

func isByteSlice(t reflect.Type) bool {
	return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8
}

func isByteArray16(t reflect.Type) bool {
	return t.Kind() == reflect.Array && t.Len() == 16 && t.Elem().Kind() == reflect.Uint8
}
