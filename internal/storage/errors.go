package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when a mutation targets a row that does not exist.
	// Reads report absence as a nil result instead.
	ErrNotFound = errors.New("not found")

	// ErrUniqueViolation is returned when an insert collides with a primary key or
	// unique index. For an idempotent append it means the append already happened.
	ErrUniqueViolation = errors.New("uniqueness violation")

	// ErrForeignKeyViolation is returned when a debate with arguments is deleted, or
	// an argument references a debate that does not exist.
	ErrForeignKeyViolation = errors.New("foreign key violation")

	// ErrStoreUnavailable is returned when the database file cannot be opened or written.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInvalidInput is returned for arguments rejected before reaching the database.
	ErrInvalidInput = errors.New("invalid input")
)

// classify maps a driver error onto the storage error taxonomy. The returned error
// wraps both the sentinel and the original error.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}

	switch sqliteErr.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
	case sqlite3.ErrConstraintForeignKey:
		return fmt.Errorf("%w: %w", ErrForeignKeyViolation, err)
	case sqlite3.ErrConstraintTrigger:
		// ON DELETE RESTRICT is enforced as a trigger and reports this code.
		if strings.Contains(sqliteErr.Error(), "FOREIGN KEY") {
			return fmt.Errorf("%w: %w", ErrForeignKeyViolation, err)
		}
	}

	switch sqliteErr.Code {
	case sqlite3.ErrCantOpen, sqlite3.ErrPerm, sqlite3.ErrReadonly, sqlite3.ErrIoErr,
		sqlite3.ErrFull, sqlite3.ErrCorrupt, sqlite3.ErrNotADB:
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	return err
}

// wrap classifies err and prefixes it with the failed action, e.g. "failed to insert debate".
func wrap(action string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to %s: %w", action, classify(err))
}
