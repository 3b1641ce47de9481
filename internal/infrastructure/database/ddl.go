package database

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

// Querier is implemented by *sql.DB, *sql.Tx and *DB.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ColumnDef describes one column for CreateTable and AddColumns.
type ColumnDef struct {
	Name string

	// Type is the declared SQL type (INTEGER, REAL, TEXT, BLOB).
	Type string

	// Default is an SQL literal used as the column DEFAULT. Empty means
	// no default (NULL).
	Default string

	PrimaryKey    bool
	AutoIncrement bool
}

var identPattern = regexp.MustCompile(`^[\p{L}_][\p{L}\p{N}_]*$`)

// ValidateIdent checks that name is usable as a table or column name.
func ValidateIdent(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}

// QuoteIdent quotes an identifier for use in SQL.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (c ColumnDef) sql() string {
	var b strings.Builder
	b.WriteString(QuoteIdent(c.Name))
	if c.Type != "" {
		b.WriteString(" ")
		b.WriteString(c.Type)
	}
	if c.PrimaryKey {
		b.WriteString(" PRIMARY KEY")
		if c.AutoIncrement {
			b.WriteString(" AUTOINCREMENT")
		}
	}
	if c.Default != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(c.Default)
	}
	return b.String()
}

func validateColumns(table string, cols []ColumnDef) error {
	if err := ValidateIdent(table); err != nil {
		return err
	}
	if len(cols) == 0 {
		return fmt.Errorf("%w: table %s", ErrNoColumns, table)
	}
	for _, c := range cols {
		if err := ValidateIdent(c.Name); err != nil {
			return err
		}
	}
	return nil
}

// CreateTable creates table with cols unless it already exists.
func CreateTable(ctx context.Context, q Querier, table string, cols []ColumnDef) error {
	if err := validateColumns(table, cols); err != nil {
		return err
	}
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = c.sql()
	}
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", QuoteIdent(table), strings.Join(defs, ", "))
	if _, err := q.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("creating table %s: %w", table, err)
	}
	return nil
}

// AddColumns appends cols to an existing table, one ALTER TABLE per column.
func AddColumns(ctx context.Context, q Querier, table string, cols []ColumnDef) error {
	if err := validateColumns(table, cols); err != nil {
		return err
	}
	for _, c := range cols {
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", QuoteIdent(table), c.sql())
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("adding column %s.%s: %w", table, c.Name, err)
		}
	}
	return nil
}

// DropTable drops table if it exists.
func DropTable(ctx context.Context, q Querier, table string) error {
	if err := ValidateIdent(table); err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, "DROP TABLE IF EXISTS "+QuoteIdent(table)); err != nil {
		return fmt.Errorf("dropping table %s: %w", table, err)
	}
	return nil
}

// TableColumns returns the column names of table in declaration order.
// A missing table has no columns.
func TableColumns(ctx context.Context, q Querier, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx, "SELECT name FROM pragma_table_info(?) ORDER BY cid", table)
	if err != nil {
		return nil, fmt.Errorf("querying columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning column name: %w", err)
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating columns: %w", err)
	}
	return cols, nil
}

// FetchRows runs query and returns every row as a column-name map of
// driver-native values (int64, float64, string, []byte or nil).
func FetchRows(ctx context.Context, q Querier, query string, args ...any) ([]map[string]any, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying rows: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return out, nil
}
