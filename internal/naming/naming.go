// Package naming maps record property names to table column names.
package naming

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/nerrad567/graystore/internal/typeinfo"
)

// RowIDColumn is the synthesised primary key of tables whose record type
// declares none.
const RowIDColumn = "orm_rowid"

// ErrDuplicateColumn is returned when two fields map to the same column.
var ErrDuplicateColumn = errors.New("naming: duplicate column")

// reserved property names belong to the table definition, not the record.
var reserved = map[string]bool{
	"TableName":     true,
	"SchemaVersion": true,
	"DatabaseName":  true,
	"PrimaryKey":    true,
}

// Mapping is the bidirectional property/column mapping of one record type.
type Mapping struct {
	toColumn   map[string]string
	toProperty map[string]string
	columns    []string
}

// Build derives the mapping from a record's field descriptors.
func Build(fields []typeinfo.Field) (*Mapping, error) {
	m := &Mapping{
		toColumn:   make(map[string]string, len(fields)),
		toProperty: make(map[string]string, len(fields)),
	}
	for _, f := range fields {
		if reserved[f.Name] {
			continue
		}
		if f.Column == RowIDColumn {
			return nil, fmt.Errorf("%w: %q is reserved", ErrDuplicateColumn, f.Column)
		}
		if prev, ok := m.toProperty[f.Column]; ok {
			return nil, fmt.Errorf("%w: %q used by %s and %s", ErrDuplicateColumn, f.Column, prev, f.Name)
		}
		m.toColumn[f.Name] = f.Column
		m.toProperty[f.Column] = f.Name
		m.columns = append(m.columns, f.Column)
	}
	return m, nil
}

// Column returns the column of a property.
func (m *Mapping) Column(property string) (string, bool) {
	c, ok := m.toColumn[property]
	return c, ok
}

// Property returns the property stored in a column.
func (m *Mapping) Property(column string) (string, bool) {
	p, ok := m.toProperty[column]
	return p, ok
}

// Resolve accepts either a column or a property name and returns the
// column. Column names win when both match.
func (m *Mapping) Resolve(key string) (string, bool) {
	if _, ok := m.toProperty[key]; ok {
		return key, true
	}
	return m.Column(key)
}

// Columns returns the mapped columns in field order.
func (m *Mapping) Columns() []string {
	return append([]string(nil), m.columns...)
}

type entry struct {
	typ     reflect.Type
	mapping *Mapping
}

// Cache holds one mapping per table. A table claimed by a different record
// type gets its mapping rebuilt.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewCache creates an empty mapping cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]entry)}
}

// Get returns the mapping of table for record type t, building it from
// fields on a miss.
func (c *Cache) Get(table string, t reflect.Type, fields []typeinfo.Field) (*Mapping, error) {
	c.mu.RLock()
	e, ok := c.entries[table]
	c.mu.RUnlock()
	if ok && e.typ == t {
		return e.mapping, nil
	}

	m, err := Build(fields)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", table, err)
	}

	c.mu.Lock()
	c.entries[table] = entry{typ: t, mapping: m}
	c.mu.Unlock()
	return m, nil
}

// Forget drops the mapping of table.
func (c *Cache) Forget(table string) {
	c.mu.Lock()
	delete(c.entries, table)
	c.mu.Unlock()
}
