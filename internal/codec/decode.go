package codec

import (
	"encoding"
	"errors"
	"fmt"
	"reflect"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/nerrad567/graystore/internal/naming"
	"github.com/nerrad567/graystore/internal/storage"
	"github.com/nerrad567/graystore/internal/typeinfo"
)

var errUnsupportedNative = errors.New("unsupported column value")

// Decode populates target, an addressable struct value, from row. Columns
// without a mapped field are ignored.
func (c *Codec) Decode(typeName string, fields []typeinfo.Field, m *naming.Mapping, row map[string]any, target reflect.Value) error {
	for _, f := range fields {
		col, ok := m.Column(f.Name)
		if !ok {
			continue
		}
		raw, ok := row[col]
		if !ok || raw == nil {
			continue
		}

		sv, ok := storage.FromNative(raw)
		if !ok {
			if c.strict {
				return &DecodeError{Type: typeName, Property: f.Name, Err: fmt.Errorf("%w: %T", errUnsupportedNative, raw)}
			}
			continue
		}

		v, err := c.DecodeValue(f, sv)
		if err != nil {
			if c.strict {
				return &DecodeError{Type: typeName, Property: f.Name, Err: err}
			}
			continue
		}

		fv, ok := fieldForSet(target, f.Index)
		if !ok {
			continue
		}
		setField(fv, f, v)
	}
	return nil
}

// DecodeValue converts a storage value into a value of type f.Elem.
func (c *Codec) DecodeValue(f typeinfo.Field, sv storage.Value) (reflect.Value, error) {
	switch f.Kind {
	case typeinfo.KindPrimitive:
		if v, ok := storage.Decode(sv, f.Elem); ok {
			return v, nil
		}
	case typeinfo.KindEnum:
		if v, ok := storage.Decode(sv, storage.Underlying(f.Elem)); ok {
			return v.Convert(f.Elem), nil
		}
	case typeinfo.KindMarshaler:
		text, ok := storage.TextOf(sv)
		if !ok {
			break
		}
		p := reflect.New(f.Elem)
		if err := p.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(text)); err != nil {
			return reflect.Value{}, fmt.Errorf("unmarshalling %s: %w", f.Elem, err)
		}
		return p.Elem(), nil
	case typeinfo.KindTuple:
		text, ok := storage.TextOf(sv)
		if !ok {
			break
		}
		return c.decodeTuple(f, []byte(text))
	case typeinfo.KindCollection, typeinfo.KindComposite:
		text, ok := storage.TextOf(sv)
		if !ok {
			break
		}
		p := reflect.New(f.Elem)
		if err := json.Unmarshal([]byte(text), p.Interface()); err != nil {
			return reflect.Value{}, fmt.Errorf("unmarshalling %s: %w", f.Elem, err)
		}
		return p.Elem(), nil
	}
	return reflect.Value{}, fmt.Errorf("%s from %s: %w", f.Elem, sv.Class(), errNoValue)
}

func (c *Codec) decodeTuple(f typeinfo.Field, text []byte) (reflect.Value, error) {
	elem, err := c.types.Element(f)
	if err != nil {
		return reflect.Value{}, err
	}
	var items []json.RawMessage
	if err := json.Unmarshal(text, &items); err != nil {
		return reflect.Value{}, fmt.Errorf("unmarshalling %s: %w", f.Elem, err)
	}

	out := reflect.New(f.Elem).Elem()
	for i := 0; i < len(items) && i < out.Len(); i++ {
		if string(items[i]) == "null" {
			continue
		}
		sv, err := itemValue(elem, items[i])
		if err != nil {
			return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
		}
		v, err := c.DecodeValue(elem, sv)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
		}
		setField(out.Index(i), elem, v)
	}
	return out, nil
}

// itemValue turns one JSON tuple element back into the storage value it
// was encoded from.
func itemValue(elem typeinfo.Field, raw json.RawMessage) (storage.Value, error) {
	switch elem.Kind {
	case typeinfo.KindTuple, typeinfo.KindCollection, typeinfo.KindComposite:
		return storage.Text(raw), nil
	}
	switch elem.Class {
	case storage.ClassInteger:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, err
		}
		i, err := strconv.ParseInt(string(n), 10, 64)
		if err != nil {
			return nil, err
		}
		return storage.Integer(i), nil
	case storage.ClassReal:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, err
		}
		return storage.Real(f), nil
	case storage.ClassBlob:
		var b []byte
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return storage.Blob(b), nil
	default:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return storage.Text(s), nil
	}
}

func setField(fv reflect.Value, f typeinfo.Field, v reflect.Value) {
	if f.Optional {
		p := reflect.New(f.Elem)
		p.Elem().Set(v)
		fv.Set(p)
		return
	}
	fv.Set(v)
}

// fieldForSet follows index, allocating nil embedded pointers on the way.
// It reports false when the field cannot be set.
func fieldForSet(v reflect.Value, index []int) (reflect.Value, bool) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				if !v.CanSet() {
					return reflect.Value{}, false
				}
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, v.CanSet()
}
