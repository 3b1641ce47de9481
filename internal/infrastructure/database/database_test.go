package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	return db
}

func TestOpen(t *testing.T) {
	t.Run("creates file and directory", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")
		db, err := Open(context.Background(), Config{Path: dbPath, BusyTimeout: 5})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != dbPath {
			t.Errorf("Path() = %q, want %q", db.Path(), dbPath)
		}
	})

	t.Run("applies key on connect", func(t *testing.T) {
		db, err := Open(context.Background(), Config{
			Path:        filepath.Join(t.TempDir(), "keyed.db"),
			BusyTimeout: 5,
			Key:         "it's-a-secret",
		})
		if err != nil {
			t.Fatalf("Open() with key error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		if err := db.HealthCheck(context.Background()); err != nil {
			t.Errorf("HealthCheck() error = %v", err)
		}
	})
}

func TestClose(t *testing.T) {
	db, err := Open(context.Background(), Config{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := db.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() after Close() should fail")
	}
}

func createItems(t *testing.T, db *DB) {
	t.Helper()
	err := CreateTable(context.Background(), db, "items", []ColumnDef{
		{Name: "id", Type: "INTEGER", PrimaryKey: true},
		{Name: "label", Type: "TEXT", Default: "''"},
	})
	if err != nil {
		t.Fatalf("CreateTable() error = %v", err)
	}
}

func countItems(t *testing.T, db *DB) int {
	t.Helper()
	var n int
	if err := db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM items").Scan(&n); err != nil {
		t.Fatalf("count error = %v", err)
	}
	return n
}

func TestWrite(t *testing.T) {
	ctx := context.Background()

	t.Run("commits on success", func(t *testing.T) {
		db := openTestDB(t)
		createItems(t, db)
		err := db.Write(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, "INSERT INTO items (id, label) VALUES (?, ?)", 1, "a")
			return err
		})
		if err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if n := countItems(t, db); n != 1 {
			t.Errorf("rows = %d, want 1", n)
		}
	})

	t.Run("rolls back and returns original error", func(t *testing.T) {
		db := openTestDB(t)
		createItems(t, db)
		boom := errors.New("boom")
		err := db.Write(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, "INSERT INTO items (id) VALUES (1)"); err != nil {
				return err
			}
			return boom
		})
		if err != boom {
			t.Fatalf("Write() error = %v, want %v", err, boom)
		}
		if n := countItems(t, db); n != 0 {
			t.Errorf("rows = %d, want 0 after rollback", n)
		}
	})

	t.Run("rolls back on panic", func(t *testing.T) {
		db := openTestDB(t)
		createItems(t, db)
		func() {
			defer func() {
				if recover() == nil {
					t.Error("panic should be re-raised")
				}
			}()
			_ = db.Write(ctx, func(tx *sql.Tx) error { //nolint:errcheck // Panics
				if _, err := tx.ExecContext(ctx, "INSERT INTO items (id) VALUES (1)"); err != nil {
					return err
				}
				panic("boom")
			})
		}()
		if n := countItems(t, db); n != 0 {
			t.Errorf("rows = %d, want 0 after panic", n)
		}
	})
}

func TestRead(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	createItems(t, db)
	if _, err := db.ExecContext(ctx, "INSERT INTO items (id, label) VALUES (1, 'x'), (2, 'y')"); err != nil {
		t.Fatalf("insert error = %v", err)
	}

	var rows []map[string]any
	err := db.Read(ctx, func(tx *sql.Tx) error {
		var err error
		rows, err = FetchRows(ctx, tx, "SELECT * FROM items ORDER BY id")
		return err
	})
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	want := []map[string]any{
		{"id": int64(1), "label": "x"},
		{"id": int64(2), "label": "y"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("FetchRows() = %v, want %v", rows, want)
	}
}

func TestDDL(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	createItems(t, db)

	err := AddColumns(ctx, db, "items", []ColumnDef{
		{Name: "score", Type: "REAL", Default: "0.0"},
		{Name: "note", Type: "TEXT"},
	})
	if err != nil {
		t.Fatalf("AddColumns() error = %v", err)
	}
	cols, err := TableColumns(ctx, db, "items")
	if err != nil {
		t.Fatalf("TableColumns() error = %v", err)
	}
	if want := []string{"id", "label", "score", "note"}; !reflect.DeepEqual(cols, want) {
		t.Errorf("TableColumns() = %v, want %v", cols, want)
	}

	if err := DropTable(ctx, db, "items"); err != nil {
		t.Fatalf("DropTable() error = %v", err)
	}
	cols, err = TableColumns(ctx, db, "items")
	if err != nil || len(cols) != 0 {
		t.Errorf("TableColumns() after drop = %v, %v", cols, err)
	}
}

func TestValidateIdent(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"orm_Item_t", false},
		{"_x1", false},
		{"Größe", false},
		{"", true},
		{"1abc", true},
		{"a b", true},
		{`x"; DROP TABLE y; --`, true},
	}
	for _, tt := range tests {
		err := ValidateIdent(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateIdent(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidIdentifier) {
			t.Errorf("ValidateIdent(%q) error = %v, want ErrInvalidIdentifier", tt.name, err)
		}
	}

	if err := CreateTable(context.Background(), nil, "bad name", []ColumnDef{{Name: "a"}}); !errors.Is(err, ErrInvalidIdentifier) {
		t.Errorf("CreateTable(bad name) error = %v", err)
	}
	if err := CreateTable(context.Background(), nil, "ok", nil); !errors.Is(err, ErrNoColumns) {
		t.Errorf("CreateTable(no columns) error = %v", err)
	}
}

func TestQuoteIdent(t *testing.T) {
	if got := QuoteIdent(`a"b`); got != `"a""b"` {
		t.Errorf("QuoteIdent() = %s", got)
	}
}
