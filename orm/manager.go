package orm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nerrad567/graystore/internal/codec"
	"github.com/nerrad567/graystore/internal/infrastructure/database"
	"github.com/nerrad567/graystore/internal/keystore"
	"github.com/nerrad567/graystore/internal/metrics"
	"github.com/nerrad567/graystore/internal/naming"
	"github.com/nerrad567/graystore/internal/schema"
	"github.com/nerrad567/graystore/internal/typeinfo"
	_ "github.com/nerrad567/graystore/migrations" // Meta-table migration
)

// Logger defines the logging interface used by the Manager.
// It is satisfied by *slog.Logger and the logging package's Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Notifier is told about committed writes.
type Notifier interface {
	PublishChange(database, table, op string, rows int64) error
}

// Recorder receives the outcome of every operation.
type Recorder interface {
	RecordOperation(database, table, op string, rows int64, d time.Duration, err error)
}

// TableSchema is the persisted shape of a managed table.
type TableSchema = schema.TableSchema

// Config configures a Manager.
type Config struct {
	// Dir is the directory relative database names are resolved against.
	Dir string

	// DefaultDatabase is the database file of record types that do not
	// implement DatabaseNamer. Defaults to DefaultDatabase.
	DefaultDatabase string

	// WALMode and BusyTimeout (seconds) configure every opened database.
	WALMode     bool
	BusyTimeout int

	// StrictDecode makes undecodable column content an error instead of
	// leaving the field at its zero value.
	StrictDecode bool
}

// conn is one open database file with its schema cache.
type conn struct {
	db      *database.DB
	schemas *schema.Registry
}

// Manager owns the connections and caches behind the record operations.
// It is safe for concurrent use. The Set* methods must be called before the
// first operation.
type Manager struct {
	cfg      Config
	keys     keystore.KeyStore
	logger   Logger
	notifier Notifier
	recorder Recorder

	mu     sync.RWMutex
	conns  map[string]*conn
	closed bool

	types *typeinfo.Cache
	names *naming.Cache
	codec *codec.Codec

	ensureMu    sync.RWMutex
	ensured     map[string]bool
	ensureGroup singleflight.Group
	// lifecycleMu is held shared by a running ensure and exclusively by
	// Drop, so a drop never interleaves with a create or migrate.
	lifecycleMu sync.RWMutex
	// ensureRuns counts ensures that created or migrated a table.
	ensureRuns atomic.Int64
}

// New creates a Manager. No database is opened until first use.
func New(cfg Config) *Manager {
	if cfg.DefaultDatabase == "" {
		cfg.DefaultDatabase = DefaultDatabase
	}
	types := typeinfo.NewCache()
	return &Manager{
		cfg:     cfg,
		logger:  noopLogger{},
		conns:   make(map[string]*conn),
		types:   types,
		names:   naming.NewCache(),
		codec:   codec.New(types, cfg.StrictDecode),
		ensured: make(map[string]bool),
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	m.logger = logger
}

// SetKeyStore sets the source of database keys. Without one, databases are
// opened without a key.
func (m *Manager) SetKeyStore(ks keystore.KeyStore) {
	m.keys = ks
}

// SetNotifier sets the receiver of change notifications.
func (m *Manager) SetNotifier(n Notifier) {
	m.notifier = n
}

// SetRecorder sets the receiver of operation statistics.
func (m *Manager) SetRecorder(r Recorder) {
	m.recorder = r
}

// path resolves a database name to a file path.
func (m *Manager) path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(m.cfg.Dir, name)
}

// conn returns the open connection for a database, opening it on first use.
func (m *Manager) conn(ctx context.Context, name string) (*conn, error) {
	m.mu.RLock()
	c, ok := m.conns[name]
	closed := m.closed
	m.mu.RUnlock()
	if ok {
		return c, nil
	}
	if closed {
		return nil, fmt.Errorf("%w: %w", ErrConnectionUnavailable, ErrClosed)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.conns[name]; ok {
		return c, nil
	}
	if m.closed {
		return nil, fmt.Errorf("%w: %w", ErrConnectionUnavailable, ErrClosed)
	}

	key, err := m.key()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionUnavailable, name, err)
	}

	db, err := database.Open(ctx, database.Config{
		Path:        m.path(name),
		WALMode:     m.cfg.WALMode,
		BusyTimeout: m.cfg.BusyTimeout,
		Key:         key,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionUnavailable, name, err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionUnavailable, name, err)
	}

	c = &conn{db: db, schemas: schema.NewRegistry()}
	m.conns[name] = c
	metrics.SetOpenDatabases(len(m.conns))
	m.logger.Info("database opened", "database", name, "path", db.Path())
	return c, nil
}

// key fetches the database key, generating and storing one when the key
// store has none.
func (m *Manager) key() (string, error) {
	if m.keys == nil {
		return "", nil
	}
	key, ok, err := m.keys.GetKey()
	if err != nil {
		return "", fmt.Errorf("reading key: %w", err)
	}
	if ok {
		return key, nil
	}

	generated, err := keystore.Generate()
	if err != nil {
		return "", err
	}
	if err := m.keys.SetKey(generated); err != nil {
		return "", fmt.Errorf("storing key: %w", err)
	}
	key, ok, err = m.keys.GetKey()
	if err != nil {
		return "", fmt.Errorf("reading key: %w", err)
	}
	if !ok {
		return "", errors.New("key store returned no key after storing one")
	}
	m.logger.Info("database key generated")
	return key, nil
}

// Databases returns the names of the open database files.
func (m *Manager) Databases() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.conns))
	for name := range m.conns {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Schemas returns the table schemas stored in a database file. A file
// that exists but is not open yet is opened.
func (m *Manager) Schemas(ctx context.Context, name string) ([]TableSchema, error) {
	m.mu.RLock()
	_, open := m.conns[name]
	m.mu.RUnlock()
	if !open {
		managed, err := m.managed(ctx, name)
		if err != nil {
			return nil, err
		}
		if !managed {
			return nil, fmt.Errorf("%w: %s", ErrUnknownDatabase, name)
		}
	}

	c, err := m.conn(ctx, name)
	if err != nil {
		return nil, err
	}
	return c.schemas.List(ctx, c.db)
}

// managed reports whether the file name exists and carries the schema
// meta-table. The file is opened read-only and left untouched.
func (m *Manager) managed(ctx context.Context, name string) (bool, error) {
	path := m.path(name)
	if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
		return false, nil
	}
	key, err := m.key()
	if err != nil {
		return false, fmt.Errorf("%w: %s: %w", ErrConnectionUnavailable, name, err)
	}
	db, err := database.Open(ctx, database.Config{
		Path:        path,
		BusyTimeout: m.cfg.BusyTimeout,
		Key:         key,
		ReadOnly:    true,
	})
	if err != nil {
		// Not a database, or not readable with this key.
		return false, nil
	}
	defer db.Close() //nolint:errcheck // Read-only probe

	cols, err := database.TableColumns(ctx, db, schema.MetaTable)
	if err != nil {
		return false, nil
	}
	return len(cols) > 0, nil
}

// HealthCheck verifies every open database responds.
func (m *Manager) HealthCheck(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	var errs []error
	for name, c := range m.conns {
		if err := c.db.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every open database. Operations after Close fail with
// ErrConnectionUnavailable.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	var errs []error
	for name, c := range m.conns {
		if err := c.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		delete(m.conns, name)
	}
	metrics.SetOpenDatabases(0)
	return errors.Join(errs...)
}
