package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alienxp03/dbate/internal/core"
)

// Order selects the direction of a sequence-ordered listing.
type Order string

const (
	Ascending  Order = "asc"
	Descending Order = "desc"
)

// ParseOrder converts "asc"/"desc" (empty means ascending).
func ParseOrder(s string) (Order, error) {
	switch Order(s) {
	case "", Ascending:
		return Ascending, nil
	case Descending:
		return Descending, nil
	}
	return "", fmt.Errorf("%w: unknown order %q", ErrInvalidInput, s)
}

// NewArgument holds the caller-supplied fields of an append. ID is generated
// when empty. ParentID and ClientRequestID are optional.
type NewArgument struct {
	ID              string
	DebateID        string
	ParentID        string
	Type            string
	Role            string
	Content         string
	ClientRequestID string
}

// ArgumentRepository reads and appends to debate argument logs.
type ArgumentRepository struct {
	db    *DB
	tx    *sql.Tx
	stmts *statements
}

// NewArgumentRepository creates an argument repository on db.
func NewArgumentRepository(db *DB) *ArgumentRepository {
	return &ArgumentRepository{db: db, stmts: db.stmts}
}

// FindByID returns the argument with the given id, or nil if there is none.
func (r *ArgumentRepository) FindByID(ctx context.Context, id string) (*core.Argument, error) {
	return r.findOne(ctx, "get argument", r.stmts.findArgumentByID, id)
}

// FindMotion returns the debate's MOTION argument, or nil if it has none.
func (r *ArgumentRepository) FindMotion(ctx context.Context, debateID string) (*core.Argument, error) {
	return r.findOne(ctx, "get motion", r.stmts.findMotionByDebateID, debateID)
}

// FindByIdempotencyKey returns the argument appended with the given client
// request id, or nil if there is none.
func (r *ArgumentRepository) FindByIdempotencyKey(ctx context.Context, debateID, clientRequestID string) (*core.Argument, error) {
	return r.findOne(ctx, "get argument by request id", r.stmts.findArgumentByDebateAndRequestID, debateID, clientRequestID)
}

// ListExcludingMotion returns up to limit non-motion arguments of the debate,
// ordered by sequence number.
func (r *ArgumentRepository) ListExcludingMotion(ctx context.Context, debateID string, limit int, order Order) ([]*core.Argument, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must be non-negative", ErrInvalidInput)
	}

	stmt := r.stmts.findArgumentsExcludeMotionAsc
	switch order {
	case Ascending, "":
	case Descending:
		stmt = r.stmts.findArgumentsExcludeMotionDesc
	default:
		return nil, fmt.Errorf("%w: unknown order %q", ErrInvalidInput, order)
	}

	rows, err := bind(ctx, r.tx, stmt).QueryContext(ctx, debateID, limit)
	if err != nil {
		return nil, wrap("list arguments", err)
	}
	defer rows.Close()

	args := []*core.Argument{}
	for rows.Next() {
		arg, err := scanArgument(rows)
		if err != nil {
			return nil, wrap("scan argument", err)
		}
		args = append(args, arg)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate arguments", err)
	}

	return args, nil
}

// FindLatestAfter returns the most recent argument whose sequence number
// exceeds seq, or nil if nothing newer exists.
func (r *ArgumentRepository) FindLatestAfter(ctx context.Context, debateID string, seq int64) (*core.Argument, error) {
	return r.findOne(ctx, "get latest argument", r.stmts.findLatestArgumentAfterSeq, debateID, seq)
}

// NextSeq returns the sequence number the next append would receive. It is
// informational: Append assigns sequence numbers itself, atomically.
func (r *ArgumentRepository) NextSeq(ctx context.Context, debateID string) (int64, error) {
	var maxSeq int64
	if err := bind(ctx, r.tx, r.stmts.getMaxSeq).QueryRowContext(ctx, debateID).Scan(&maxSeq); err != nil {
		return 0, wrap("get max seq", err)
	}
	return maxSeq + 1, nil
}

// Append adds an argument to the end of the debate's log.
//
// With a client request id, the append happens at most once: if an argument
// with the same (debate, request id) exists, it is returned instead of inserting
// a duplicate. The lookup and the insert share one write transaction, and the
// insert computes its own sequence number, so concurrent appends to the same
// debate always receive distinct consecutive numbers.
func (r *ArgumentRepository) Append(ctx context.Context, in NewArgument) (*core.Argument, error) {
	if in.DebateID == "" || in.Type == "" || in.Role == "" {
		return nil, fmt.Errorf("%w: debate id, type and role are required", ErrInvalidInput)
	}
	if in.ID == "" {
		in.ID = core.NewID()
	}

	var arg *core.Argument
	err := r.db.runIn(ctx, r.tx, r.stmts, func(tx *Tx) error {
		repo := tx.Arguments()

		if in.ClientRequestID != "" {
			existing, err := repo.FindByIdempotencyKey(ctx, in.DebateID, in.ClientRequestID)
			if err != nil {
				return err
			}
			if existing != nil {
				arg = existing
				return nil
			}
		}

		inserted, err := repo.insert(ctx, in)
		if err != nil {
			return err
		}
		arg = inserted
		return nil
	})
	if err == nil {
		return arg, nil
	}

	// A writer outside this process may have won the race on the same token.
	if in.ClientRequestID != "" && errors.Is(err, ErrUniqueViolation) && r.tx == nil {
		existing, findErr := r.FindByIdempotencyKey(ctx, in.DebateID, in.ClientRequestID)
		if findErr == nil && existing != nil {
			return existing, nil
		}
	}
	return nil, err
}

func (r *ArgumentRepository) insert(ctx context.Context, in NewArgument) (*core.Argument, error) {
	now := r.db.timestamp()

	var seq int64
	err := bind(ctx, r.tx, r.stmts.insertArgument).QueryRowContext(ctx,
		in.ID,
		in.DebateID,
		nullString(in.ParentID),
		in.Type,
		in.Role,
		in.Content,
		nullString(in.ClientRequestID),
		in.DebateID,
		formatTime(now),
	).Scan(&seq)
	if err != nil {
		return nil, wrap("insert argument", err)
	}

	return &core.Argument{
		ID:              in.ID,
		DebateID:        in.DebateID,
		ParentID:        in.ParentID,
		Type:            in.Type,
		Role:            in.Role,
		Content:         in.Content,
		ClientRequestID: in.ClientRequestID,
		Seq:             seq,
		CreatedAt:       now,
	}, nil
}

// DeleteAllForDebate purges the debate's entire argument log.
func (r *ArgumentRepository) DeleteAllForDebate(ctx context.Context, debateID string) error {
	if _, err := bind(ctx, r.tx, r.stmts.deleteArgumentsByDebateID).ExecContext(ctx, debateID); err != nil {
		return wrap("delete arguments", err)
	}
	return nil
}

func (r *ArgumentRepository) findOne(ctx context.Context, action string, stmt *sql.Stmt, args ...any) (*core.Argument, error) {
	arg, err := scanArgument(bind(ctx, r.tx, stmt).QueryRowContext(ctx, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap(action, err)
	}
	return arg, nil
}

// scanArgument reads one row in argumentColumns order.
func scanArgument(row rowScanner) (*core.Argument, error) {
	var (
		arg             core.Argument
		parentID        sql.NullString
		clientRequestID sql.NullString
		createdAt       string
	)
	if err := row.Scan(
		&arg.ID,
		&arg.DebateID,
		&parentID,
		&arg.Type,
		&arg.Role,
		&arg.Content,
		&clientRequestID,
		&arg.Seq,
		&createdAt,
	); err != nil {
		return nil, err
	}

	arg.ParentID = nullToString(parentID)
	arg.ClientRequestID = nullToString(clientRequestID)

	var err error
	if arg.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &arg, nil
}

// nullString stores an empty string as SQL NULL.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}
