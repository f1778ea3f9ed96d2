// Package storage provides persistence for debates and their argument logs.
//
// A single DB handle owns the SQLite file. Open brings the schema up to date
// (EnsureSchema, then ApplyMigrations from the stored PRAGMA user_version) and
// prepares the fixed statement set; the repositories run only those statements.
//
// Reads report a missing row as a nil result. Mutations that cannot find their
// row, and constraint failures, are reported with the sentinel errors in
// errors.go so callers can use errors.Is.
package storage

// Debates returns a debate repository that runs outside any transaction.
func (db *DB) Debates() *DebateRepository {
	return NewDebateRepository(db)
}

// Arguments returns an argument repository that runs outside any transaction.
func (db *DB) Arguments() *ArgumentRepository {
	return NewArgumentRepository(db)
}
