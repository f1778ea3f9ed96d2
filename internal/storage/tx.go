package storage

import (
	"context"
	"database/sql"
	"log/slog"
)

// Tx is a unit of work. Repositories obtained from it run every statement
// inside the same transaction.
type Tx struct {
	db    *DB
	tx    *sql.Tx
	stmts *statements
}

// Debates returns a debate repository bound to the transaction.
func (t *Tx) Debates() *DebateRepository {
	return &DebateRepository{db: t.db, tx: t.tx, stmts: t.stmts}
}

// Arguments returns an argument repository bound to the transaction.
func (t *Tx) Arguments() *ArgumentRepository {
	return &ArgumentRepository{db: t.db, tx: t.tx, stmts: t.stmts}
}

// RunInTransaction runs work inside a write transaction. It commits when work
// returns nil; otherwise it rolls back and returns work's error unchanged. A
// panic inside work rolls back and is re-raised.
//
// work must only use repositories obtained from its Tx. The writer has a single
// connection, so a write through a non-transactional repository would wait on
// the connection this transaction holds.
func (db *DB) RunInTransaction(ctx context.Context, work func(tx *Tx) error) error {
	return db.run(ctx, db.sql, db.stmts, work)
}

// RunInReadTransaction runs work inside a read-only transaction on the reader
// pool. Every read inside work sees the same snapshot, and it does not wait for
// an open write transaction. Writes inside work fail.
func (db *DB) RunInReadTransaction(ctx context.Context, work func(tx *Tx) error) error {
	return db.run(ctx, db.reader, db.readStmts, work)
}

func (db *DB) run(ctx context.Context, pool *sql.DB, stmts *statements, work func(tx *Tx) error) error {
	sqlTx, err := pool.BeginTx(ctx, nil)
	if err != nil {
		return wrap("begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := work(&Tx{db: db, tx: sqlTx, stmts: stmts}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			slog.Warn("Failed to roll back transaction", "error", rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return wrap("commit transaction", err)
	}
	return nil
}

// runIn runs fn inside tx if one is given, or inside a new write transaction otherwise.
func (db *DB) runIn(ctx context.Context, tx *sql.Tx, stmts *statements, fn func(t *Tx) error) error {
	if tx != nil {
		return fn(&Tx{db: db, tx: tx, stmts: stmts})
	}
	return db.RunInTransaction(ctx, fn)
}
