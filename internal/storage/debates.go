package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alienxp03/dbate/internal/core"
)

// DebateFilter restricts and pages a debate listing. An empty State matches
// every debate.
type DebateFilter struct {
	State  core.DebateState
	Limit  int
	Offset int
}

// NewDebate holds the caller-supplied fields of a debate insert.
type NewDebate struct {
	ID         string
	Title      string
	DebateType string
	State      core.DebateState
}

// DebateRepository reads and writes debate records.
type DebateRepository struct {
	db    *DB
	tx    *sql.Tx
	stmts *statements
}

// NewDebateRepository creates a debate repository on db.
func NewDebateRepository(db *DB) *DebateRepository {
	return &DebateRepository{db: db, stmts: db.stmts}
}

// FindByID returns the debate with the given id, or nil if there is none.
func (r *DebateRepository) FindByID(ctx context.Context, id string) (*core.Debate, error) {
	row := bind(ctx, r.tx, r.stmts.findDebateByID).QueryRowContext(ctx, id)
	debate, err := scanDebate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("get debate", err)
	}
	return debate, nil
}

// Find returns debates ordered by most recently updated first.
func (r *DebateRepository) Find(ctx context.Context, filter DebateFilter) ([]*core.Debate, error) {
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, fmt.Errorf("%w: limit and offset must be non-negative", ErrInvalidInput)
	}

	var (
		rows *sql.Rows
		err  error
	)
	if filter.State != "" {
		rows, err = bind(ctx, r.tx, r.stmts.findDebatesByState).QueryContext(ctx, string(filter.State), filter.Limit, filter.Offset)
	} else {
		rows, err = bind(ctx, r.tx, r.stmts.findDebatesAll).QueryContext(ctx, filter.Limit, filter.Offset)
	}
	if err != nil {
		return nil, wrap("list debates", err)
	}
	defer rows.Close()

	debates := []*core.Debate{}
	for rows.Next() {
		debate, err := scanDebate(rows)
		if err != nil {
			return nil, wrap("scan debate", err)
		}
		debates = append(debates, debate)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate debates", err)
	}

	return debates, nil
}

// Count returns the number of debates, restricted to state when it is non-empty.
func (r *DebateRepository) Count(ctx context.Context, state core.DebateState) (int, error) {
	var count int
	var err error
	if state != "" {
		err = bind(ctx, r.tx, r.stmts.countDebatesByState).QueryRowContext(ctx, string(state)).Scan(&count)
	} else {
		err = bind(ctx, r.tx, r.stmts.countDebatesAll).QueryRowContext(ctx).Scan(&count)
	}
	if err != nil {
		return 0, wrap("count debates", err)
	}
	return count, nil
}

// Insert creates a debate with created_at = updated_at = now. An id that is
// already taken fails with ErrUniqueViolation.
func (r *DebateRepository) Insert(ctx context.Context, in NewDebate) (*core.Debate, error) {
	if in.ID == "" || in.Title == "" || in.DebateType == "" {
		return nil, fmt.Errorf("%w: debate id, title and type are required", ErrInvalidInput)
	}
	if !in.State.Valid() {
		return nil, fmt.Errorf("%w: unknown debate state %q", ErrInvalidInput, in.State)
	}

	now := r.db.timestamp()
	_, err := bind(ctx, r.tx, r.stmts.insertDebate).ExecContext(ctx,
		in.ID,
		in.Title,
		in.DebateType,
		string(in.State),
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return nil, wrap("insert debate", err)
	}

	return &core.Debate{
		ID:         in.ID,
		Title:      in.Title,
		DebateType: in.DebateType,
		State:      in.State,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// UpdateState sets the debate's state and refreshes updated_at. It fails with
// ErrNotFound if no debate has the given id.
func (r *DebateRepository) UpdateState(ctx context.Context, id string, state core.DebateState) (*core.Debate, error) {
	if !state.Valid() {
		return nil, fmt.Errorf("%w: unknown debate state %q", ErrInvalidInput, state)
	}

	now := r.db.timestamp()
	if _, err := bind(ctx, r.tx, r.stmts.updateDebateState).ExecContext(ctx, string(state), formatTime(now), id); err != nil {
		return nil, wrap("update debate state", err)
	}

	debate, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if debate == nil {
		return nil, fmt.Errorf("debate %s: %w", id, ErrNotFound)
	}
	return debate, nil
}

// DeleteByID deletes the debate. It fails with ErrForeignKeyViolation while the
// debate still has arguments; purge them with DeleteAllForDebate first.
func (r *DebateRepository) DeleteByID(ctx context.Context, id string) error {
	if _, err := bind(ctx, r.tx, r.stmts.deleteDebateByID).ExecContext(ctx, id); err != nil {
		return wrap("delete debate", err)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDebate reads one row in debateColumns order.
func scanDebate(row rowScanner) (*core.Debate, error) {
	var (
		debate               core.Debate
		state                string
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&debate.ID,
		&debate.Title,
		&debate.DebateType,
		&state,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	debate.State = core.DebateState(state)

	var err error
	if debate.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if debate.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &debate, nil
}
