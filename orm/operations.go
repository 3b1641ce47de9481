package orm

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/nerrad567/graystore/filter"
	"github.com/nerrad567/graystore/internal/codec"
	"github.com/nerrad567/graystore/internal/infrastructure/database"
	"github.com/nerrad567/graystore/internal/metrics"
)

// Operation names used in logs, metrics and change notifications.
const (
	OpPush    = "push"
	OpFetch   = "fetch"
	OpCount   = "count"
	OpDelete  = "delete"
	OpDeletes = "deletes"
	OpClear   = "clear"
	OpDrop    = "drop"
)

// deleteChunk bounds the number of keys bound to one DELETE statement.
const deleteChunk = 500

// prepare describes the record type, opens its database and ensures its
// table.
func (m *Manager) prepare(ctx context.Context, t reflect.Type) (*table, *conn, error) {
	tbl, err := m.describe(t)
	if err != nil {
		return nil, nil, err
	}
	c, err := m.conn(ctx, tbl.database)
	if err != nil {
		return nil, nil, err
	}
	if err := m.ensure(ctx, tbl, c); err != nil {
		return nil, nil, err
	}
	return tbl, c, nil
}

// Push inserts records, replacing rows with the same primary key. All
// records are written in one transaction: either all are stored or none.
func Push[T any](ctx context.Context, m *Manager, records ...T) (err error) {
	start := time.Now()
	tbl, c, err := m.prepare(ctx, reflect.TypeFor[T]())
	if err != nil {
		return err
	}
	defer func() { m.observe(OpPush, tbl, int64(len(records)), err, start) }()

	if len(records) == 0 {
		return nil
	}

	rows := make([]codec.Row, len(records))
	for i := range records {
		rec := records[i]
		normalize(&rec)
		row, err := m.codec.Encode(tbl.typeName, tbl.fields, tbl.mapping, reflect.ValueOf(rec))
		if err != nil {
			return fmt.Errorf("pushing %s: %w", tbl.typeName, err)
		}
		rows[i] = row
	}

	err = c.db.Write(ctx, func(tx *sql.Tx) error {
		for _, row := range rows {
			if err := insert(ctx, tx, tbl.name, row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("pushing %s: %w", tbl.typeName, err)
	}
	return nil
}

func insert(ctx context.Context, tx *sql.Tx, table string, row codec.Row) error {
	if len(row) == 0 {
		_, err := tx.ExecContext(ctx, "INSERT INTO "+database.QuoteIdent(table)+" DEFAULT VALUES")
		return err
	}

	cols := make([]string, 0, len(row))
	for col := range row {
		cols = append(cols, col)
	}
	slices.Sort(cols)

	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		quoted[i] = database.QuoteIdent(col)
		marks[i] = "?"
		args[i] = row[col].Native()
	}
	stmt := fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		database.QuoteIdent(table), strings.Join(quoted, ", "), strings.Join(marks, ", "))
	_, err := tx.ExecContext(ctx, stmt, args...)
	return err
}

// Fetch returns the records matching terms.
func Fetch[T any](ctx context.Context, m *Manager, terms ...filter.Term) (out []T, err error) {
	start := time.Now()
	tbl, c, err := m.prepare(ctx, reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	defer func() { m.observe(OpFetch, tbl, int64(len(out)), err, start) }()

	clause, err := filter.Compile(terms, filter.Options{Resolve: tbl.mapping.Resolve})
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", tbl.typeName, err)
	}

	var rows []map[string]any
	err = c.db.Read(ctx, func(tx *sql.Tx) error {
		var err error
		rows, err = database.FetchRows(ctx, tx, "SELECT * FROM "+database.QuoteIdent(tbl.name)+clause.SQL, clause.Args...)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", tbl.typeName, err)
	}

	records := make([]T, 0, len(rows))
	for _, row := range rows {
		var rec T
		if err := m.codec.Decode(tbl.typeName, tbl.fields, tbl.mapping, row, reflect.ValueOf(&rec).Elem()); err != nil {
			return nil, fmt.Errorf("fetching %s: %w", tbl.typeName, err)
		}
		normalize(&rec)
		records = append(records, rec)
	}
	return records, nil
}

// Count returns the number of records matching terms.
func Count[T any](ctx context.Context, m *Manager, terms ...filter.Term) (n int64, err error) {
	start := time.Now()
	tbl, c, err := m.prepare(ctx, reflect.TypeFor[T]())
	if err != nil {
		return 0, err
	}
	defer func() { m.observe(OpCount, tbl, 0, err, start) }()

	clause, err := filter.Compile(terms, filter.Options{Resolve: tbl.mapping.Resolve})
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", tbl.typeName, err)
	}
	err = c.db.Read(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+database.QuoteIdent(tbl.name)+clause.SQL, clause.Args...).Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", tbl.typeName, err)
	}
	return n, nil
}

// Delete removes the records matching terms and returns how many were
// removed.
func Delete[T any](ctx context.Context, m *Manager, terms ...filter.Term) (n int64, err error) {
	start := time.Now()
	tbl, c, err := m.prepare(ctx, reflect.TypeFor[T]())
	if err != nil {
		return 0, err
	}
	defer func() { m.observe(OpDelete, tbl, n, err, start) }()

	clause, err := filter.Compile(terms, filter.Options{Resolve: tbl.mapping.Resolve})
	if err != nil {
		return 0, fmt.Errorf("deleting %s: %w", tbl.typeName, err)
	}
	n, err = execCount(ctx, c, "DELETE FROM "+database.QuoteIdent(tbl.name)+clause.SQL, clause.Args...)
	if err != nil {
		return 0, fmt.Errorf("deleting %s: %w", tbl.typeName, err)
	}
	return n, nil
}

// Deletes removes records by primary key and returns how many rows were
// removed. The record type must declare a primary key.
func Deletes[T any](ctx context.Context, m *Manager, records ...T) (n int64, err error) {
	start := time.Now()
	tbl, err := m.describe(reflect.TypeFor[T]())
	if err != nil {
		return 0, err
	}
	if tbl.pk == nil {
		return 0, fmt.Errorf("%w: %s", ErrNoPrimaryKey, tbl.typeName)
	}
	tbl, c, err := m.prepare(ctx, tbl.typ)
	if err != nil {
		return 0, err
	}
	defer func() { m.observe(OpDeletes, tbl, n, err, start) }()

	pkCol, _ := tbl.mapping.Column(tbl.pk.Name)
	keys := make([]any, 0, len(records))
	for i := range records {
		rec := records[i]
		normalize(&rec)
		fv, ferr := reflect.ValueOf(rec).FieldByIndexErr(tbl.pk.Index)
		if ferr != nil {
			return 0, &EncodeError{Type: tbl.typeName, Property: tbl.pk.Name, Err: ferr}
		}
		sv, ferr := m.codec.EncodeValue(*tbl.pk, fv)
		if ferr != nil {
			return 0, &EncodeError{Type: tbl.typeName, Property: tbl.pk.Name, Err: ferr}
		}
		keys = append(keys, sv.Native())
	}

	err = c.db.Write(ctx, func(tx *sql.Tx) error {
		for chunk := range slices.Chunk(keys, deleteChunk) {
			marks := strings.TrimSuffix(strings.Repeat("?, ", len(chunk)), ", ")
			stmt := fmt.Sprintf("DELETE FROM %s WHERE %s IN (%s)",
				database.QuoteIdent(tbl.name), database.QuoteIdent(pkCol), marks)
			res, err := tx.ExecContext(ctx, stmt, chunk...)
			if err != nil {
				return err
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return err
			}
			n += affected
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("deleting %s by key: %w", tbl.typeName, err)
	}
	return n, nil
}

// Clear removes every record of the type and returns how many were removed.
func Clear[T any](ctx context.Context, m *Manager) (n int64, err error) {
	start := time.Now()
	tbl, c, err := m.prepare(ctx, reflect.TypeFor[T]())
	if err != nil {
		return 0, err
	}
	defer func() { m.observe(OpClear, tbl, n, err, start) }()

	n, err = execCount(ctx, c, "DELETE FROM "+database.QuoteIdent(tbl.name))
	if err != nil {
		return 0, fmt.Errorf("clearing %s: %w", tbl.typeName, err)
	}
	return n, nil
}

// Drop removes the table of the record type together with its schema and
// forgets everything cached about the type. The next operation on the type
// creates the table again.
func Drop[T any](ctx context.Context, m *Manager) (err error) {
	start := time.Now()
	tbl, err := m.describe(reflect.TypeFor[T]())
	if err != nil {
		return err
	}
	c, err := m.conn(ctx, tbl.database)
	if err != nil {
		return err
	}
	defer func() { m.observe(OpDrop, tbl, 0, err, start) }()

	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	err = c.db.Write(ctx, func(tx *sql.Tx) error {
		if err := database.DropTable(ctx, tx, tbl.name); err != nil {
			return err
		}
		return c.schemas.Remove(ctx, tx, tbl.name)
	})
	if err != nil {
		return fmt.Errorf("dropping %s: %w", tbl.typeName, err)
	}

	c.schemas.Forget(tbl.name)
	m.names.Forget(tbl.name)
	m.types.Forget(tbl.typ)
	m.unmarkTable(tbl)
	m.logger.Info("table dropped", "database", tbl.database, "table", tbl.name)
	return nil
}

func execCount(ctx context.Context, c *conn, stmt string, args ...any) (int64, error) {
	var n int64
	err := c.db.Write(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, stmt, args...)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}

// observe reports an operation to metrics, the recorder and, for
// successful writes, the notifier.
func (m *Manager) observe(op string, tbl *table, rows int64, err error, start time.Time) {
	metrics.ObserveOperation(op, tbl.name, rows, err, start)
	if m.recorder != nil {
		m.recorder.RecordOperation(tbl.database, tbl.name, op, rows, time.Since(start), err)
	}
	if err != nil {
		m.logger.Debug("operation failed", "op", op, "table", tbl.name, "error", err)
		return
	}
	if m.notifier == nil || op == OpFetch || op == OpCount {
		return
	}
	if nerr := m.notifier.PublishChange(tbl.database, tbl.name, op, rows); nerr != nil {
		m.logger.Warn("publishing change failed", "op", op, "table", tbl.name, "error", nerr)
	}
}
