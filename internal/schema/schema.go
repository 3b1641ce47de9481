// Package schema tracks the persisted shape of managed tables and performs
// additive migrations.
//
// Each database file carries the meta-table orm_table_schema_t with one row
// per managed table: its name, a non-decreasing schema version and the JSON
// array of known columns. When a record type declares a higher version than
// the persisted one, the columns it adds are appended with ALTER TABLE.
// Removing or retyping columns is not supported.
package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/nerrad567/graystore/internal/infrastructure/database"
	"github.com/nerrad567/graystore/internal/naming"
	"github.com/nerrad567/graystore/internal/storage"
)

// MetaTable is the reserved table holding table schemas.
const MetaTable = "orm_table_schema_t"

// Reserved reports whether a table name belongs to the store or to SQLite
// itself and must not back a record type. SQLite compares names without
// regard to case.
func Reserved(table string) bool {
	return strings.EqualFold(table, MetaTable) ||
		strings.EqualFold(table, database.MigrationsTable) ||
		len(table) >= 7 && strings.EqualFold(table[:7], "sqlite_")
}

// TableSchema is the persisted shape of one table.
type TableSchema struct {
	Name    string   `json:"name"`
	Version float64  `json:"version"`
	Columns []string `json:"columns"`
}

// Column is a column a record type declares.
type Column struct {
	Name  string
	Class storage.Class

	// Default is the value existing rows receive when the column is added.
	// Nil means NULL.
	Default storage.Value

	PrimaryKey bool
}

// Definition is the table shape a record type declares.
type Definition struct {
	Table   string
	Version float64
	Columns []Column
}

// ColumnNames returns the declared column names in order.
func (d Definition) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

func (d Definition) hasPrimaryKey() bool {
	return slices.ContainsFunc(d.Columns, func(c Column) bool { return c.PrimaryKey })
}

// Outcome reports what Ensure did.
type Outcome int

const (
	Current Outcome = iota
	Created
	Migrated
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Migrated:
		return "migrated"
	default:
		return "current"
	}
}

// Registry caches the table schemas of one database file.
type Registry struct {
	mu     sync.RWMutex
	tables map[string]TableSchema
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tables: make(map[string]TableSchema)}
}

// Lookup returns the schema of table, reading the meta-table on a cache miss.
func (r *Registry) Lookup(ctx context.Context, q database.Querier, table string) (TableSchema, bool, error) {
	r.mu.RLock()
	s, ok := r.tables[table]
	r.mu.RUnlock()
	if ok {
		return s, true, nil
	}

	var (
		version float64
		raw     string
	)
	err := q.QueryRowContext(ctx,
		"SELECT version, columns FROM "+MetaTable+" WHERE name = ?", table,
	).Scan(&version, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return TableSchema{}, false, nil
	}
	if err != nil {
		return TableSchema{}, false, fmt.Errorf("reading schema of %s: %w", table, err)
	}

	s = TableSchema{Name: table, Version: version}
	if err := json.Unmarshal([]byte(raw), &s.Columns); err != nil {
		return TableSchema{}, false, fmt.Errorf("decoding columns of %s: %w", table, err)
	}
	r.Remember(s)
	return s, true, nil
}

// List returns every schema stored in the meta-table, ordered by name.
func (r *Registry) List(ctx context.Context, q database.Querier) ([]TableSchema, error) {
	rows, err := database.FetchRows(ctx, q, "SELECT name, version, columns FROM "+MetaTable+" ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing schemas: %w", err)
	}
	out := make([]TableSchema, 0, len(rows))
	for _, row := range rows {
		s := TableSchema{}
		s.Name, _ = row["name"].(string)
		s.Version, _ = row["version"].(float64)
		raw, _ := row["columns"].(string)
		if err := json.Unmarshal([]byte(raw), &s.Columns); err != nil {
			return nil, fmt.Errorf("decoding columns of %s: %w", s.Name, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// Ensure brings the table in line with def inside the caller's write
// transaction and returns the resulting schema. The cache is not updated;
// call Remember once the transaction has committed.
//
//   - table unknown: created with every declared column
//   - declared version not above the persisted one: nothing to do
//   - declared version above: missing columns are added and the schema row
//     is bumped to the new version and full column set
func (r *Registry) Ensure(ctx context.Context, tx database.Querier, def Definition) (TableSchema, Outcome, error) {
	existing, ok, err := r.Lookup(ctx, tx, def.Table)
	if err != nil {
		return TableSchema{}, Current, err
	}

	next := TableSchema{Name: def.Table, Version: def.Version, Columns: def.ColumnNames()}

	if !ok {
		cols := columnDefs(def.Columns)
		if !def.hasPrimaryKey() {
			rowid := database.ColumnDef{
				Name:          naming.RowIDColumn,
				Type:          storage.ClassInteger.String(),
				PrimaryKey:    true,
				AutoIncrement: true,
			}
			cols = append([]database.ColumnDef{rowid}, cols...)
		}
		if err := database.CreateTable(ctx, tx, def.Table, cols); err != nil {
			return TableSchema{}, Current, err
		}
		if err := store(ctx, tx, next); err != nil {
			return TableSchema{}, Current, err
		}
		return next, Created, nil
	}

	if def.Version <= existing.Version {
		return existing, Current, nil
	}

	var added []Column
	for _, c := range def.Columns {
		if !slices.Contains(existing.Columns, c.Name) {
			added = append(added, c)
		}
	}
	if len(added) > 0 {
		if err := database.AddColumns(ctx, tx, def.Table, columnDefs(added)); err != nil {
			return TableSchema{}, Current, err
		}
	}

	// Columns dropped from the record type stay in the table.
	for _, c := range existing.Columns {
		if !slices.Contains(next.Columns, c) {
			next.Columns = append(next.Columns, c)
		}
	}
	if err := store(ctx, tx, next); err != nil {
		return TableSchema{}, Current, err
	}
	return next, Migrated, nil
}

// Remember caches s.
func (r *Registry) Remember(s TableSchema) {
	r.mu.Lock()
	r.tables[s.Name] = s
	r.mu.Unlock()
}

// Forget drops the cached schema of table.
func (r *Registry) Forget(table string) {
	r.mu.Lock()
	delete(r.tables, table)
	r.mu.Unlock()
}

// Remove deletes the schema row of table. Call Forget after the
// transaction has committed.
func (r *Registry) Remove(ctx context.Context, tx database.Querier, table string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+MetaTable+" WHERE name = ?", table); err != nil {
		return fmt.Errorf("removing schema of %s: %w", table, err)
	}
	return nil
}

func store(ctx context.Context, tx database.Querier, s TableSchema) error {
	cols, err := json.Marshal(s.Columns)
	if err != nil {
		return fmt.Errorf("encoding columns of %s: %w", s.Name, err)
	}
	_, err = tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO "+MetaTable+" (name, version, columns) VALUES (?, ?, ?)",
		s.Name, s.Version, string(cols),
	)
	if err != nil {
		return fmt.Errorf("storing schema of %s: %w", s.Name, err)
	}
	return nil
}

func columnDefs(cols []Column) []database.ColumnDef {
	defs := make([]database.ColumnDef, len(cols))
	for i, c := range cols {
		defs[i] = database.ColumnDef{
			Name:       c.Name,
			Type:       c.Class.String(),
			PrimaryKey: c.PrimaryKey,
		}
		if c.Default != nil && !c.PrimaryKey {
			defs[i].Default = c.Default.Literal()
		}
	}
	return defs
}
