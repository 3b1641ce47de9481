package orm

import (
	"fmt"
	"reflect"

	"github.com/nerrad567/graystore/internal/infrastructure/database"
	"github.com/nerrad567/graystore/internal/naming"
	"github.com/nerrad567/graystore/internal/schema"
	"github.com/nerrad567/graystore/internal/typeinfo"
)

// DefaultDatabase is the database file used by record types that do not
// implement DatabaseNamer.
const DefaultDatabase = "orm_default.sqlite"

// TableNamer overrides the default table name "orm_<Type>_t".
type TableNamer interface {
	TableName() string
}

// SchemaVersioner declares the schema version of a record type. Raising it
// makes the next Manager add the columns introduced since the persisted
// version.
type SchemaVersioner interface {
	SchemaVersion() float64
}

// DatabaseNamer places a record type in a database file other than the
// default one. Relative names are resolved against Config.Dir.
type DatabaseNamer interface {
	DatabaseName() string
}

// Normalizer is implemented by records that fix up their own state after
// being decoded and before being encoded. Normalize must be idempotent.
type Normalizer interface {
	Normalize()
}

// table is everything the Manager knows about one record type.
type table struct {
	typ      reflect.Type
	typeName string
	name     string
	database string
	version  float64
	fields   []typeinfo.Field
	mapping  *naming.Mapping
	pk       *typeinfo.Field
}

func (m *Manager) describe(t reflect.Type) (*table, error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: record type %s is not a struct", ErrTypeIntrospection, t)
	}
	fields, err := m.types.Describe(t)
	if err != nil {
		return nil, err
	}

	tbl := &table{
		typ:      t,
		typeName: t.Name(),
		name:     "orm_" + t.Name() + "_t",
		database: m.cfg.DefaultDatabase,
		fields:   fields,
	}

	// The pointer's method set covers value and pointer receivers.
	zero := reflect.New(t).Interface()
	if n, ok := zero.(TableNamer); ok {
		tbl.name = n.TableName()
	}
	if v, ok := zero.(SchemaVersioner); ok {
		tbl.version = v.SchemaVersion()
	}
	if d, ok := zero.(DatabaseNamer); ok {
		tbl.database = d.DatabaseName()
	}

	if err := database.ValidateIdent(tbl.name); err != nil {
		return nil, fmt.Errorf("%w: table name of %s: %w", ErrTypeIntrospection, t, err)
	}
	if schema.Reserved(tbl.name) {
		return nil, fmt.Errorf("%w: table name %q of %s is reserved", ErrTypeIntrospection, tbl.name, t)
	}
	if tbl.database == "" {
		return nil, fmt.Errorf("%w: empty database name for %s", ErrTypeIntrospection, t)
	}

	for i := range fields {
		f := &fields[i]
		if !f.PrimaryKey {
			continue
		}
		if tbl.pk != nil {
			return nil, fmt.Errorf("%w: %s declares primary keys %s and %s", ErrTypeIntrospection, t, tbl.pk.Name, f.Name)
		}
		if f.Optional {
			return nil, fmt.Errorf("%w: primary key %s.%s must not be a pointer", ErrTypeIntrospection, t, f.Name)
		}
		tbl.pk = f
	}

	mp, err := m.names.Get(tbl.name, t, fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTypeIntrospection, err)
	}
	tbl.mapping = mp
	return tbl, nil
}

func normalize[T any](rec *T) {
	if n, ok := any(rec).(Normalizer); ok {
		n.Normalize()
	}
}
