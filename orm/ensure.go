package orm

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/nerrad567/graystore/internal/metrics"
	"github.com/nerrad567/graystore/internal/schema"
)

// tablePrefix identifies a table across the record types mapped to it.
func tablePrefix(tbl *table) string {
	return tbl.database + "\x00" + tbl.name + "\x00"
}

// ensureKey identifies one record type's view of a table. Types sharing a
// table at different schema versions are ensured separately.
func ensureKey(tbl *table) string {
	return tablePrefix(tbl) + tbl.typ.PkgPath() + "." + tbl.typ.Name()
}

func (m *Manager) isEnsured(key string) bool {
	m.ensureMu.RLock()
	defer m.ensureMu.RUnlock()
	return m.ensured[key]
}

func (m *Manager) markEnsured(key string) {
	m.ensureMu.Lock()
	defer m.ensureMu.Unlock()
	m.ensured[key] = true
}

// unmarkTable forgets every record type ensured against tbl's table.
func (m *Manager) unmarkTable(tbl *table) {
	prefix := tablePrefix(tbl)
	m.ensureMu.Lock()
	defer m.ensureMu.Unlock()
	for key := range m.ensured {
		if strings.HasPrefix(key, prefix) {
			delete(m.ensured, key)
		}
	}
}

// ensure creates or migrates the table of tbl once per Manager. Concurrent
// callers for the same table wait for a single run.
//
// It must not be called while a transaction on c is open: the pool has a
// single connection.
func (m *Manager) ensure(ctx context.Context, tbl *table, c *conn) error {
	key := ensureKey(tbl)
	if m.isEnsured(key) {
		return nil
	}

	_, err, _ := m.ensureGroup.Do(key, func() (any, error) {
		m.lifecycleMu.RLock()
		defer m.lifecycleMu.RUnlock()
		if m.isEnsured(key) {
			return nil, nil
		}

		def := m.definition(tbl)
		var (
			next    schema.TableSchema
			outcome schema.Outcome
		)
		err := c.db.Write(ctx, func(tx *sql.Tx) error {
			var err error
			next, outcome, err = c.schemas.Ensure(ctx, tx, def)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("ensuring table %s: %w", tbl.name, err)
		}
		c.schemas.Remember(next)

		if outcome != schema.Current {
			m.ensureRuns.Add(1)
			m.logger.Info("table "+outcome.String(),
				"database", tbl.database,
				"table", tbl.name,
				"version", next.Version,
				"columns", len(next.Columns),
			)
		}
		metrics.CountEnsure(tbl.name, outcome.String())
		m.markEnsured(key)
		return nil, nil
	})
	return err
}

// definition derives the declared table shape of tbl.
func (m *Manager) definition(tbl *table) schema.Definition {
	def := schema.Definition{Table: tbl.name, Version: tbl.version}
	for _, f := range tbl.fields {
		col, ok := tbl.mapping.Column(f.Name)
		if !ok {
			continue
		}
		c := schema.Column{Name: col, Class: f.Class, PrimaryKey: f.PrimaryKey}
		if !f.PrimaryKey {
			if sv, ok := m.codec.Zero(f); ok {
				c.Default = sv
			}
		}
		def.Columns = append(def.Columns, c)
	}
	return def
}
