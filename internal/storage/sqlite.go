package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB is the process-wide handle to the debate store. It is opened once at
// startup, shared by every repository, and closed once at shutdown.
//
// Writes go through a pool of a single connection: SQLite allows one writer,
// and serializing through one connection makes every write transaction
// exclusive with respect to the rest of the process. Read transactions use a
// separate query-only pool and, with the WAL journal, run alongside a writer.
type DB struct {
	sql        *sql.DB
	reader     *sql.DB
	path       string
	stmts      *statements
	readStmts  *statements
	now        func() time.Time
	migrations []Migration

	closeOnce sync.Once
	closeErr  error
}

// Option configures a DB at open time.
type Option func(*DB)

// WithClock overrides the time source used for created_at/updated_at.
func WithClock(now func() time.Time) Option {
	return func(db *DB) {
		db.now = now
	}
}

// WithMigrations replaces the registered migration list.
func WithMigrations(migrations []Migration) Option {
	return func(db *DB) {
		db.migrations = migrations
	}
}

// Open opens (creating if needed) the store at dbPath, brings its schema up to
// date, and prepares the statement set.
func Open(ctx context.Context, dbPath string, opts ...Option) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w: %w", ErrStoreUnavailable, err)
		}
	}

	conn, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w: %w", ErrStoreUnavailable, err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w: %w", ErrStoreUnavailable, err)
	}

	db := &DB{
		sql:        conn,
		path:       dbPath,
		now:        time.Now,
		migrations: Migrations(),
	}
	for _, opt := range opts {
		opt(db)
	}

	if err := db.initialize(ctx); err != nil {
		db.closeAll()
		return nil, err
	}

	slog.Info("Opened debate database", "path", dbPath)
	return db, nil
}

// dsn builds the go-sqlite3 connection string. Foreign keys are enforced per
// connection; _txlock=immediate takes the write lock at BEGIN so that a
// read-then-insert inside a transaction cannot interleave with another writer.
func dsn(dbPath string) string {
	return dbPath + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"
}

// readerDSN is the connection string of the reader pool. Its transactions are
// deferred and take a WAL snapshot at the first read.
func readerDSN(dbPath string) string {
	return dbPath + "?_foreign_keys=on&_busy_timeout=5000&_txlock=deferred&_query_only=true"
}

// readerConns bounds the reader pool.
const readerConns = 4

func (db *DB) initialize(ctx context.Context) error {
	if err := db.EnsureSchema(ctx); err != nil {
		return err
	}

	version, err := db.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if err := db.ApplyMigrations(ctx, version); err != nil {
		return err
	}

	stmts, err := prepareStatements(ctx, db.sql)
	if err != nil {
		return err
	}
	db.stmts = stmts

	// The reader opens after migrations so it never sees an older schema.
	reader, err := sql.Open("sqlite3", readerDSN(db.path))
	if err != nil {
		return fmt.Errorf("failed to open reader: %w: %w", ErrStoreUnavailable, err)
	}
	reader.SetMaxOpenConns(readerConns)
	reader.SetMaxIdleConns(readerConns)
	db.reader = reader

	readStmts, err := prepareStatements(ctx, reader)
	if err != nil {
		return err
	}
	db.readStmts = readStmts
	return nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close releases the prepared statements and the connection. It is safe to call
// more than once; only the first call does any work.
func (db *DB) Close() error {
	db.closeOnce.Do(func() {
		db.closeErr = db.closeAll()
	})
	return db.closeErr
}

func (db *DB) closeAll() error {
	for _, stmts := range []*statements{db.readStmts, db.stmts} {
		if stmts != nil {
			stmts.close()
		}
	}
	if db.reader != nil {
		db.reader.Close()
	}
	return db.sql.Close()
}

// timestamp returns the current time truncated to the store's resolution.
func (db *DB) timestamp() time.Time {
	return db.now().UTC().Truncate(time.Second)
}

// timeLayout matches SQLite's datetime('now') output.
const timeLayout = "2006-01-02 15:04:05"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err == nil {
		return t, nil
	}
	// Rows written by other tools may carry RFC 3339 timestamps.
	if t, rfcErr := time.Parse(time.RFC3339, s); rfcErr == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
}

// DefaultDBPath returns the default database path.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "debate.db"
	}
	return filepath.Join(home, ".dbate", "db", "debate.db")
}
