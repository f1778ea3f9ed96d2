package storage

import (
	"context"
	"fmt"
	"log/slog"
)

// Migration is one additive schema change. Versions are applied in ascending
// order, each in its own transaction together with the version bump.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// schemaSQL creates the base layout. Table, constraint and index names are part
// of the on-disk contract and must not change.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS "debates" (
	"id" TEXT NOT NULL PRIMARY KEY,
	"title" TEXT NOT NULL,
	"debate_type" TEXT NOT NULL,
	"state" TEXT NOT NULL DEFAULT 'AWAITING_OPPONENT',
	"created_at" TEXT NOT NULL DEFAULT (datetime('now')),
	"updated_at" TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS "arguments" (
	"id" TEXT NOT NULL PRIMARY KEY,
	"debate_id" TEXT NOT NULL,
	"parent_id" TEXT,
	"type" TEXT NOT NULL,
	"role" TEXT NOT NULL,
	"content" TEXT NOT NULL,
	"client_request_id" TEXT,
	"seq" INTEGER NOT NULL,
	"created_at" TEXT NOT NULL DEFAULT (datetime('now')),
	CONSTRAINT "arguments_debate_id_fkey" FOREIGN KEY ("debate_id") REFERENCES "debates" ("id") ON DELETE RESTRICT ON UPDATE CASCADE,
	CONSTRAINT "arguments_parent_id_fkey" FOREIGN KEY ("parent_id") REFERENCES "arguments" ("id") ON DELETE SET NULL ON UPDATE CASCADE
);

CREATE INDEX IF NOT EXISTS "arguments_debate_id_idx" ON "arguments"("debate_id");
CREATE INDEX IF NOT EXISTS "arguments_parent_id_idx" ON "arguments"("parent_id");
CREATE UNIQUE INDEX IF NOT EXISTS "arguments_debate_id_client_request_id_key"
	ON "arguments"("debate_id", "client_request_id");
CREATE UNIQUE INDEX IF NOT EXISTS "arguments_debate_id_seq_key"
	ON "arguments"("debate_id", "seq");
`

// Migrations returns the registered migrations in version order. New entries
// are appended with the next version number; existing entries never change.
func Migrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "motion_unique",
			SQL: `CREATE UNIQUE INDEX IF NOT EXISTS "arguments_debate_id_motion_key"
				ON "arguments"("debate_id") WHERE "type" = 'MOTION';`,
		},
		{
			Version: 2,
			Name:    "debates_state_updated_idx",
			SQL: `CREATE INDEX IF NOT EXISTS "debates_state_updated_at_idx"
				ON "debates"("state", "updated_at" DESC);`,
		},
	}
}

// LatestSchemaVersion returns the highest version this build knows about.
func (db *DB) LatestSchemaVersion() int {
	latest := 0
	for _, m := range db.migrations {
		if m.Version > latest {
			latest = m.Version
		}
	}
	return latest
}

// EnsureSchema creates the tables and indexes if they don't exist. It never
// drops or rewrites anything and is safe to run on every start.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.sql.ExecContext(ctx, schemaSQL); err != nil {
		return wrap("create schema", err)
	}
	return nil
}

// SchemaVersion reads the stored schema-version marker.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := db.sql.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, wrap("read schema version", err)
	}
	return version, nil
}

// ApplyMigrations applies, in order, every registered migration whose version
// exceeds fromVersion. Each one commits atomically with its version bump, so a
// failure leaves the stored version at the last successful step and the failed
// migration is retried on the next start.
func (db *DB) ApplyMigrations(ctx context.Context, fromVersion int) error {
	prev := 0
	for _, m := range db.migrations {
		if m.Version <= prev {
			return fmt.Errorf("%w: migration %d (%s) is out of order", ErrInvalidInput, m.Version, m.Name)
		}
		prev = m.Version

		if m.Version <= fromVersion {
			continue
		}
		if err := db.applyMigration(ctx, m); err != nil {
			return err
		}
		slog.Info("Applied migration", "version", m.Version, "name", m.Name)
	}
	return nil
}

func (db *DB) applyMigration(ctx context.Context, m Migration) error {
	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return wrap("begin migration", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("failed to apply migration %d (%s): %w", m.Version, m.Name, classify(err))
	}

	// PRAGMA does not accept bound parameters; the version is an integer from
	// the registered list.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", m.Version, classify(err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", m.Version, classify(err))
	}
	return nil
}
