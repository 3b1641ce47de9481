// Package database provides SQLite connectivity for graystore.
//
// This package manages:
//   - One connection pool per database file, keyed through the keystore
//   - Read-only and read-write transaction helpers
//   - DDL helpers used by the schema registry (create, alter, drop)
//   - Embedded SQL migrations for the reserved meta-table
//
// Security Considerations:
//   - All data statements use bound parameters; identifiers are validated
//     and quoted
//   - Database file permissions are set to 0600 (owner read/write only)
//   - When a key is configured it is applied with PRAGMA key on every new
//     connection (effective on SQLCipher builds of SQLite)
//
// Performance Characteristics:
//   - A single pooled connection serialises writers, matching SQLite's
//     single-writer model
//   - WAL mode and a busy timeout reduce lock contention with other processes
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
//	err = db.Write(ctx, func(tx *sql.Tx) error {
//	    _, err := tx.ExecContext(ctx, "DELETE FROM items")
//	    return err
//	})
package database
