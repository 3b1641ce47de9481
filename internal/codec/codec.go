package codec

import (
	"encoding"
	"fmt"
	"reflect"

	json "github.com/goccy/go-json"

	"github.com/nerrad567/graystore/internal/naming"
	"github.com/nerrad567/graystore/internal/storage"
	"github.com/nerrad567/graystore/internal/typeinfo"
)

// Row maps column names to storage values.
type Row map[string]storage.Value

// Codec encodes and decodes records described by a typeinfo.Cache.
type Codec struct {
	types  *typeinfo.Cache
	strict bool
}

// New creates a codec. A strict codec fails on undecodable column content
// instead of leaving the field at its zero value.
func New(types *typeinfo.Cache, strict bool) *Codec {
	return &Codec{types: types, strict: strict}
}

// Encode converts record into a row. record must be a struct value of the
// type fields were described from; typeName is used in errors.
func (c *Codec) Encode(typeName string, fields []typeinfo.Field, m *naming.Mapping, record reflect.Value) (Row, error) {
	row := make(Row, len(fields))
	for _, f := range fields {
		col, ok := m.Column(f.Name)
		if !ok {
			continue
		}
		fv, ok := fieldForGet(record, f.Index)
		if !ok {
			continue
		}
		if f.Optional {
			if fv.IsNil() {
				continue
			}
			fv = fv.Elem()
		}
		sv, err := c.EncodeValue(f, fv)
		if err != nil {
			return nil, &EncodeError{Type: typeName, Property: f.Name, Err: err}
		}
		row[col] = sv
	}
	return row, nil
}

// EncodeValue converts a single value of type f.Elem.
func (c *Codec) EncodeValue(f typeinfo.Field, v reflect.Value) (storage.Value, error) {
	switch f.Kind {
	case typeinfo.KindPrimitive:
		if sv, ok := storage.Encode(v); ok {
			return sv, nil
		}
		return nil, fmt.Errorf("%s: %w", v.Type(), errNoValue)
	case typeinfo.KindEnum:
		if sv, ok := storage.Encode(v.Convert(storage.Underlying(v.Type()))); ok {
			return sv, nil
		}
		return nil, fmt.Errorf("%s: %w", v.Type(), errNoValue)
	case typeinfo.KindMarshaler:
		text, err := marshalText(v)
		if err != nil {
			return nil, err
		}
		return storage.Text(text), nil
	case typeinfo.KindTuple:
		return c.encodeTuple(f, v)
	case typeinfo.KindCollection, typeinfo.KindComposite:
		b, err := json.Marshal(v.Interface())
		if err != nil {
			return nil, fmt.Errorf("marshalling %s: %w", v.Type(), err)
		}
		return storage.Text(b), nil
	default:
		return nil, fmt.Errorf("%w: %s", typeinfo.ErrTypeIntrospection, f.Kind)
	}
}

// Zero returns the storage value of the zero value of f. Optional fields
// and zero values that do not encode report false.
func (c *Codec) Zero(f typeinfo.Field) (storage.Value, bool) {
	if f.Optional {
		return nil, false
	}
	sv, err := c.EncodeValue(f, reflect.New(f.Elem).Elem())
	if err != nil {
		return nil, false
	}
	return sv, true
}

func (c *Codec) encodeTuple(f typeinfo.Field, v reflect.Value) (storage.Value, error) {
	elem, err := c.types.Element(f)
	if err != nil {
		return nil, err
	}
	items := make([]any, v.Len())
	for i := range items {
		ev := v.Index(i)
		if elem.Optional {
			if ev.IsNil() {
				continue
			}
			ev = ev.Elem()
		}
		sv, err := c.EncodeValue(elem, ev)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		items[i] = tupleItem(elem, sv)
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", v.Type(), err)
	}
	return storage.Text(b), nil
}

// tupleItem embeds JSON-encoded elements verbatim and scalars as their
// native value.
func tupleItem(elem typeinfo.Field, sv storage.Value) any {
	switch elem.Kind {
	case typeinfo.KindTuple, typeinfo.KindCollection, typeinfo.KindComposite:
		if s, ok := sv.(storage.Text); ok {
			return json.RawMessage(s)
		}
	}
	return sv.Native()
}

func marshalText(v reflect.Value) ([]byte, error) {
	p := reflect.New(v.Type())
	p.Elem().Set(v)
	m, ok := p.Interface().(encoding.TextMarshaler)
	if !ok {
		return nil, fmt.Errorf("%s does not implement encoding.TextMarshaler", v.Type())
	}
	text, err := m.MarshalText()
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", v.Type(), err)
	}
	return text, nil
}

// fieldForGet follows index through embedded pointers. A nil embedded
// pointer means the field is absent.
func fieldForGet(v reflect.Value, index []int) (reflect.Value, bool) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, true
}
