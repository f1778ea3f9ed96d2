package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Every query the store runs is listed here and prepared once at open. Nothing
// else in the package assembles SQL at runtime, so swapping the backing
// database means reimplementing this file and schema.go.

const debateColumns = `id, title, debate_type, state, created_at, updated_at`

const argumentColumns = `id, debate_id, parent_id, type, role, content, client_request_id, seq, created_at`

var statementSQL = map[string]string{
	// Debates
	"findDebateByID": `SELECT ` + debateColumns + ` FROM debates WHERE id = ?`,
	"findDebatesAll": `SELECT ` + debateColumns + ` FROM debates
		ORDER BY updated_at DESC, rowid DESC LIMIT ? OFFSET ?`,
	"findDebatesByState": `SELECT ` + debateColumns + ` FROM debates WHERE state = ?
		ORDER BY updated_at DESC, rowid DESC LIMIT ? OFFSET ?`,
	"countDebatesAll":     `SELECT COUNT(*) FROM debates`,
	"countDebatesByState": `SELECT COUNT(*) FROM debates WHERE state = ?`,
	"insertDebate": `INSERT INTO debates (id, title, debate_type, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
	"updateDebateState": `UPDATE debates SET state = ?, updated_at = ? WHERE id = ?`,
	"deleteDebateByID":  `DELETE FROM debates WHERE id = ?`,

	// Arguments
	"findArgumentByID": `SELECT ` + argumentColumns + ` FROM arguments WHERE id = ?`,
	"findMotionByDebateID": `SELECT ` + argumentColumns + ` FROM arguments
		WHERE debate_id = ? AND type = 'MOTION' LIMIT 1`,
	"findArgumentByDebateAndRequestID": `SELECT ` + argumentColumns + ` FROM arguments
		WHERE debate_id = ? AND client_request_id = ? LIMIT 1`,
	"findArgumentsExcludeMotionAsc": `SELECT ` + argumentColumns + ` FROM arguments
		WHERE debate_id = ? AND type != 'MOTION' ORDER BY seq ASC LIMIT ?`,
	"findArgumentsExcludeMotionDesc": `SELECT ` + argumentColumns + ` FROM arguments
		WHERE debate_id = ? AND type != 'MOTION' ORDER BY seq DESC LIMIT ?`,
	"findLatestArgumentAfterSeq": `SELECT ` + argumentColumns + ` FROM arguments
		WHERE debate_id = ? AND seq > ? ORDER BY seq DESC LIMIT 1`,
	"getMaxSeq": `SELECT COALESCE(MAX(seq), 0) FROM arguments WHERE debate_id = ?`,
	// The sequence number is computed by the insert itself so that no other
	// write can slip in between reading MAX(seq) and using it.
	"insertArgument": `INSERT INTO arguments (id, debate_id, parent_id, type, role, content, client_request_id, seq, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM arguments WHERE debate_id = ?),
			?)
		RETURNING seq`,
	"deleteArgumentsByDebateID": `DELETE FROM arguments WHERE debate_id = ?`,
}

// statements holds the prepared form of every query in statementSQL.
type statements struct {
	findDebateByID      *sql.Stmt
	findDebatesAll      *sql.Stmt
	findDebatesByState  *sql.Stmt
	countDebatesAll     *sql.Stmt
	countDebatesByState *sql.Stmt
	insertDebate        *sql.Stmt
	updateDebateState   *sql.Stmt
	deleteDebateByID    *sql.Stmt

	findArgumentByID                 *sql.Stmt
	findMotionByDebateID             *sql.Stmt
	findArgumentByDebateAndRequestID *sql.Stmt
	findArgumentsExcludeMotionAsc    *sql.Stmt
	findArgumentsExcludeMotionDesc   *sql.Stmt
	findLatestArgumentAfterSeq       *sql.Stmt
	getMaxSeq                        *sql.Stmt
	insertArgument                   *sql.Stmt
	deleteArgumentsByDebateID        *sql.Stmt

	all []*sql.Stmt
}

// prepareStatements compiles the statement set. It must run after the schema
// is current, since preparing validates every referenced table and column.
func prepareStatements(ctx context.Context, db *sql.DB) (*statements, error) {
	s := &statements{}
	targets := map[string]**sql.Stmt{
		"findDebateByID":      &s.findDebateByID,
		"findDebatesAll":      &s.findDebatesAll,
		"findDebatesByState":  &s.findDebatesByState,
		"countDebatesAll":     &s.countDebatesAll,
		"countDebatesByState": &s.countDebatesByState,
		"insertDebate":        &s.insertDebate,
		"updateDebateState":   &s.updateDebateState,
		"deleteDebateByID":    &s.deleteDebateByID,

		"findArgumentByID":                 &s.findArgumentByID,
		"findMotionByDebateID":             &s.findMotionByDebateID,
		"findArgumentByDebateAndRequestID": &s.findArgumentByDebateAndRequestID,
		"findArgumentsExcludeMotionAsc":    &s.findArgumentsExcludeMotionAsc,
		"findArgumentsExcludeMotionDesc":   &s.findArgumentsExcludeMotionDesc,
		"findLatestArgumentAfterSeq":       &s.findLatestArgumentAfterSeq,
		"getMaxSeq":                        &s.getMaxSeq,
		"insertArgument":                   &s.insertArgument,
		"deleteArgumentsByDebateID":        &s.deleteArgumentsByDebateID,
	}

	for name, query := range statementSQL {
		target, ok := targets[name]
		if !ok {
			s.close()
			return nil, fmt.Errorf("statement %s has no target", name)
		}
		stmt, err := db.PrepareContext(ctx, query)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("failed to prepare %s: %w", name, classify(err))
		}
		*target = stmt
		s.all = append(s.all, stmt)
	}

	return s, nil
}

func (s *statements) close() {
	for _, stmt := range s.all {
		stmt.Close()
	}
	s.all = nil
}

// bind returns stmt as-is outside a transaction, or rebound to tx inside one.
func bind(ctx context.Context, tx *sql.Tx, stmt *sql.Stmt) *sql.Stmt {
	if tx == nil {
		return stmt
	}
	return tx.StmtContext(ctx, stmt)
}
