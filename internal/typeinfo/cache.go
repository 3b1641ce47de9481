package typeinfo

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
)

// Cache memoizes type descriptions. It is safe for concurrent use.
type Cache struct {
	mu       sync.RWMutex
	types    map[reflect.Type][]Field
	elements map[reflect.Type]Field
}

// NewCache creates an empty description cache.
func NewCache() *Cache {
	return &Cache{
		types:    make(map[reflect.Type][]Field),
		elements: make(map[reflect.Type]Field),
	}
}

// Describe returns the persisted fields of struct type t in declaration
// order. The returned slice is shared and must not be modified.
func (c *Cache) Describe(t reflect.Type) ([]Field, error) {
	c.mu.RLock()
	fields, ok := c.types[t]
	c.mu.RUnlock()
	if ok {
		return fields, nil
	}

	fields, err := describe(t)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.types[t]; ok {
		return cached, nil
	}
	c.types[t] = fields
	return fields, nil
}

// Element returns the descriptor of the element type of a tuple or
// collection field. Element descriptors are computed on first use.
func (c *Cache) Element(f Field) (Field, error) {
	if f.Kind != KindTuple && f.Kind != KindCollection {
		return Field{}, fmt.Errorf("%w: %s field %s has no element", ErrTypeIntrospection, f.Kind, f.Name)
	}
	et := f.Elem.Elem()

	c.mu.RLock()
	elem, ok := c.elements[et]
	c.mu.RUnlock()
	if !ok {
		var err error
		elem, err = classify(et)
		if err != nil {
			return Field{}, fmt.Errorf("element of %s: %w", f.Name, err)
		}
		c.mu.Lock()
		c.elements[et] = elem
		c.mu.Unlock()
	}

	elem.Name = f.Name + "[]"
	elem.Column = f.Column
	return elem, nil
}

// Forget drops the cached description of t.
func (c *Cache) Forget(t reflect.Type) {
	c.mu.Lock()
	delete(c.types, t)
	c.mu.Unlock()
}

// Len returns the number of described types.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.types)
}

func describe(t reflect.Type) ([]Field, error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s is not a struct", ErrTypeIntrospection, t)
	}

	var (
		fields []Field
		opaque [][]int
	)
	for _, sf := range reflect.VisibleFields(t) {
		if !sf.IsExported() || underAny(sf.Index, opaque) {
			continue
		}
		tg, err := parseTag(sf.Tag.Get(TagName))
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %w", ErrTypeIntrospection, t.Name(), sf.Name, err)
		}
		if tg.skip {
			continue
		}

		f, err := classify(sf.Type)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", t.Name(), sf.Name, err)
		}
		if sf.Anonymous {
			if f.Kind == KindComposite && tg.column == "" {
				// Flattened: the promoted fields follow in VisibleFields.
				continue
			}
			opaque = append(opaque, sf.Index)
		}
		f.Name = sf.Name
		f.Column = tg.column
		if f.Column == "" {
			f.Column = sf.Name
		}
		f.PrimaryKey = tg.pk
		f.Index = sf.Index
		fields = append(fields, f)
	}

	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s has no persistable fields", ErrTypeIntrospection, t)
	}
	return fields, nil
}

// underAny reports whether index lies inside one of the prefixes.
func underAny(index []int, prefixes [][]int) bool {
	for _, p := range prefixes {
		if len(index) > len(p) && slices.Equal(index[:len(p)], p) {
			return true
		}
	}
	return false
}
