package typeinfo

import (
	"encoding"
	"fmt"
	"reflect"
	"strings"

	"github.com/nerrad567/graystore/internal/storage"
)

// MaxTupleLen is the longest fixed-size array stored as a tuple. Longer
// arrays are treated as collections.
const MaxTupleLen = 16

// TagName is the struct tag key holding field options.
const TagName = "orm"

// Kind classifies how a field is persisted.
type Kind int

const (
	KindPrimitive Kind = iota + 1
	KindEnum
	KindMarshaler
	KindTuple
	KindCollection
	KindComposite
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindEnum:
		return "enum"
	case KindMarshaler:
		return "marshaler"
	case KindTuple:
		return "tuple"
	case KindCollection:
		return "collection"
	case KindComposite:
		return "composite"
	default:
		return "unknown"
	}
}

// Field describes one persisted field of a record type.
type Field struct {
	// Name is the Go field name.
	Name string

	// Column is the column name from the struct tag, or Name.
	Column string

	// PrimaryKey is set by the "pk" tag option.
	PrimaryKey bool

	// Index is the field index path for reflect.Value.FieldByIndex.
	Index []int

	// Type is the declared field type. Elem is Type without the pointer
	// for optional fields.
	Type reflect.Type
	Elem reflect.Type

	Kind     Kind
	Optional bool
	Class    storage.Class

	Size  uintptr
	Align int
}

var (
	textMarshalerType   = reflect.TypeFor[encoding.TextMarshaler]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

// classify fills Kind, Optional, Elem and Class for a field of type t.
// Element types of arrays, slices and maps are checked for unsupported
// kinds; struct fields of nested composites are not described until needed.
func classify(t reflect.Type) (Field, error) {
	f := Field{Type: t, Elem: t, Size: t.Size(), Align: t.Align()}
	if t.Kind() == reflect.Pointer {
		f.Optional = true
		f.Elem = t.Elem()
		if f.Elem.Kind() == reflect.Pointer {
			return f, fmt.Errorf("%w: nested pointer %s", ErrTypeIntrospection, t)
		}
	}
	e := f.Elem

	switch {
	case storage.IsScalar(e):
		f.Kind = KindPrimitive
	case storage.Underlying(e) != nil:
		f.Kind = KindEnum
	case isMarshaler(e):
		f.Kind = KindMarshaler
		f.Class = storage.ClassText
		return f, nil
	}
	if f.Kind != 0 {
		class, ok := storage.ClassOf(e)
		if !ok {
			return f, fmt.Errorf("%w: no storage class for %s", ErrTypeIntrospection, e)
		}
		f.Class = class
		return f, nil
	}

	switch e.Kind() {
	case reflect.Array:
		if err := checkElem(e.Elem()); err != nil {
			return f, err
		}
		if e.Len() > 0 && e.Len() <= MaxTupleLen {
			f.Kind = KindTuple
		} else {
			f.Kind = KindCollection
		}
	case reflect.Slice:
		if err := checkElem(e.Elem()); err != nil {
			return f, err
		}
		f.Kind = KindCollection
	case reflect.Map:
		if err := checkElem(e.Key()); err != nil {
			return f, err
		}
		if err := checkElem(e.Elem()); err != nil {
			return f, err
		}
		f.Kind = KindCollection
	case reflect.Struct:
		f.Kind = KindComposite
	default:
		return f, fmt.Errorf("%w: unsupported kind %s", ErrTypeIntrospection, e.Kind())
	}
	f.Class = storage.ClassText
	return f, nil
}

func checkElem(t reflect.Type) error {
	_, err := classify(t)
	return err
}

func isMarshaler(t reflect.Type) bool {
	ptr := reflect.PointerTo(t)
	marshals := t.Implements(textMarshalerType) || ptr.Implements(textMarshalerType)
	return marshals && ptr.Implements(textUnmarshalerType)
}

type tag struct {
	column string
	pk     bool
	skip   bool
}

func parseTag(s string) (tag, error) {
	var tg tag
	if s == "" {
		return tg, nil
	}
	if s == "-" {
		tg.skip = true
		return tg, nil
	}
	parts := strings.Split(s, ",")
	tg.column = strings.TrimSpace(parts[0])
	for _, opt := range parts[1:] {
		switch strings.TrimSpace(opt) {
		case "pk":
			tg.pk = true
		case "":
		default:
			return tg, fmt.Errorf("%w: unknown option %q", ErrInvalidTag, opt)
		}
	}
	return tg, nil
}
