// Package engine coordinates debate workflows on top of the store.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/alienxp03/dbate/internal/core"
	"github.com/alienxp03/dbate/internal/export"
	"github.com/alienxp03/dbate/internal/storage"
)

var (
	// ErrDebateClosed is returned when a closed debate is asked to change.
	ErrDebateClosed = errors.New("debate is closed")

	// ErrThreadReset is returned by Poll when the watermark is past the end of
	// the thread, which happens once a debate has been reset.
	ErrThreadReset = errors.New("debate thread was reset")
)

// Limits bounds listings that take a caller-supplied size.
type Limits struct {
	PageSize    int // debates per page when the caller gives no limit
	MaxPageSize int
	ThreadLimit int // arguments per view when the caller gives no limit
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{PageSize: 20, MaxPageSize: 100, ThreadLimit: 200}
}

// Engine runs debate workflows.
type Engine struct {
	db     *storage.DB
	limits Limits
}

// New creates a new debate engine.
func New(db *storage.DB, limits Limits) *Engine {
	def := DefaultLimits()
	if limits.MaxPageSize <= 0 {
		limits.MaxPageSize = def.MaxPageSize
	}
	if limits.PageSize <= 0 || limits.PageSize > limits.MaxPageSize {
		limits.PageSize = min(def.PageSize, limits.MaxPageSize)
	}
	if limits.ThreadLimit <= 0 {
		limits.ThreadLimit = def.ThreadLimit
	}
	return &Engine{db: db, limits: limits}
}

// Limits returns the effective limits.
func (e *Engine) Limits() Limits {
	return e.limits
}

// NewDebateRequest describes a debate to open.
type NewDebateRequest struct {
	Title           string `json:"title"`
	DebateType      string `json:"debate_type"`
	Motion          string `json:"motion"`
	Role            string `json:"role,omitempty"`
	ClientRequestID string `json:"client_request_id,omitempty"`
}

// CreateDebate opens a debate in AWAITING_OPPONENT together with its motion.
//
// With a ClientRequestID the debate id is derived from the token. A retry with
// the same token returns the debate the first attempt created.
func (e *Engine) CreateDebate(ctx context.Context, req NewDebateRequest) (*core.DebateView, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.DebateType = strings.TrimSpace(req.DebateType)
	if req.Title == "" {
		return nil, fmt.Errorf("%w: title is required", storage.ErrInvalidInput)
	}
	if req.DebateType == "" {
		return nil, fmt.Errorf("%w: debate type is required", storage.ErrInvalidInput)
	}
	if strings.TrimSpace(req.Motion) == "" {
		return nil, fmt.Errorf("%w: motion is required", storage.ErrInvalidInput)
	}
	if req.Role == "" {
		req.Role = core.RoleProposer
	}

	slog.Debug("Creating new debate", "title", req.Title, "type", req.DebateType)

	id := core.NewID()
	if req.ClientRequestID != "" {
		id = core.IDForRequest(req.ClientRequestID)
	}

	var view *core.DebateView
	replayed := false
	err := e.db.RunInTransaction(ctx, func(tx *storage.Tx) error {
		if req.ClientRequestID != "" {
			existing, err := tx.Debates().FindByID(ctx, id)
			if err != nil {
				return err
			}
			if existing != nil {
				replayed = true
				view, err = e.loadView(ctx, tx, id, e.limits.ThreadLimit, storage.Ascending)
				return err
			}
		}

		debate, err := tx.Debates().Insert(ctx, storage.NewDebate{
			ID:         id,
			Title:      req.Title,
			DebateType: req.DebateType,
			State:      core.StateAwaitingOpponent,
		})
		if err != nil {
			return err
		}

		motion, err := tx.Arguments().Append(ctx, storage.NewArgument{
			DebateID:        debate.ID,
			Type:            core.ArgumentTypeMotion,
			Role:            req.Role,
			Content:         req.Motion,
			ClientRequestID: req.ClientRequestID,
		})
		if err != nil {
			return err
		}

		view = &core.DebateView{Debate: debate, Motion: motion, Arguments: []*core.Argument{}}
		return nil
	})
	if err != nil && req.ClientRequestID != "" && errors.Is(err, storage.ErrUniqueViolation) {
		// Another process created it between the lookup and the insert.
		return e.GetDebate(ctx, id, ThreadOptions{})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create debate: %w", err)
	}

	if replayed {
		slog.Debug("Debate create replayed", "id", id)
		return view, nil
	}
	slog.Debug("Debate created", "id", view.Debate.ID)
	return view, nil
}

// SubmitRequest is one argument posted to a debate. NextState, when set,
// moves the debate in the same transaction as the append.
type SubmitRequest struct {
	DebateID        string           `json:"-"`
	ParentID        string           `json:"parent_id,omitempty"`
	Type            string           `json:"type"`
	Role            string           `json:"role"`
	Content         string           `json:"content"`
	ClientRequestID string           `json:"client_request_id,omitempty"`
	NextState       core.DebateState `json:"next_state,omitempty"`
}

// SubmitResult is the stored argument and the debate after the submission.
type SubmitResult struct {
	Argument *core.Argument `json:"argument"`
	Debate   *core.Debate   `json:"debate"`
}

// SubmitArgument appends an argument to an open debate.
//
// A retry carrying a client request id that was already stored returns the
// stored argument, even if the debate has been closed since.
func (e *Engine) SubmitArgument(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if req.Type == core.ArgumentTypeMotion {
		return nil, fmt.Errorf("%w: a motion can only be set when the debate is created", storage.ErrInvalidInput)
	}
	if req.Type == "" || req.Role == "" {
		return nil, fmt.Errorf("%w: type and role are required", storage.ErrInvalidInput)
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("%w: content is required", storage.ErrInvalidInput)
	}
	if req.NextState != "" && !req.NextState.Valid() {
		return nil, fmt.Errorf("%w: unknown state %q", storage.ErrInvalidInput, req.NextState)
	}

	var result SubmitResult
	err := e.db.RunInTransaction(ctx, func(tx *storage.Tx) error {
		debate, err := e.findDebate(ctx, tx, req.DebateID)
		if err != nil {
			return err
		}

		if req.ClientRequestID != "" {
			existing, err := tx.Arguments().FindByIdempotencyKey(ctx, req.DebateID, req.ClientRequestID)
			if err != nil {
				return err
			}
			if existing != nil {
				result = SubmitResult{Argument: existing, Debate: debate}
				return nil
			}
		}

		if debate.IsClosed() {
			return fmt.Errorf("%w: %s", ErrDebateClosed, debate.ID)
		}

		if req.ParentID != "" {
			parent, err := tx.Arguments().FindByID(ctx, req.ParentID)
			if err != nil {
				return err
			}
			if parent == nil || parent.DebateID != req.DebateID {
				return fmt.Errorf("%w: parent %s is not part of debate %s", storage.ErrInvalidInput, req.ParentID, req.DebateID)
			}
		}

		arg, err := tx.Arguments().Append(ctx, storage.NewArgument{
			DebateID:        req.DebateID,
			ParentID:        req.ParentID,
			Type:            req.Type,
			Role:            req.Role,
			Content:         req.Content,
			ClientRequestID: req.ClientRequestID,
		})
		if err != nil {
			return err
		}

		if req.NextState != "" && req.NextState != debate.State {
			if debate, err = tx.Debates().UpdateState(ctx, debate.ID, req.NextState); err != nil {
				return err
			}
		}

		result = SubmitResult{Argument: arg, Debate: debate}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to submit argument: %w", err)
	}

	slog.Debug("Argument submitted", "debate", req.DebateID, "seq", result.Argument.Seq, "state", result.Debate.State)
	return &result, nil
}

// ThreadOptions selects the window of a debate thread to load.
type ThreadOptions struct {
	Limit int // 0 means the configured thread limit
	Order storage.Order
}

// GetDebate returns a debate with its motion and a window of its thread.
func (e *Engine) GetDebate(ctx context.Context, id string, opts ThreadOptions) (*core.DebateView, error) {
	if opts.Limit < 0 {
		return nil, fmt.Errorf("%w: limit must be non-negative", storage.ErrInvalidInput)
	}
	if opts.Limit == 0 {
		opts.Limit = e.limits.ThreadLimit
	}

	var view *core.DebateView
	err := e.db.RunInReadTransaction(ctx, func(tx *storage.Tx) error {
		var err error
		view, err = e.loadView(ctx, tx, id, opts.Limit, opts.Order)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// ListArguments returns a window of a debate's thread, without the motion.
func (e *Engine) ListArguments(ctx context.Context, id string, opts ThreadOptions) ([]*core.Argument, error) {
	view, err := e.GetDebate(ctx, id, opts)
	if err != nil {
		return nil, err
	}
	return view.Arguments, nil
}

// ListOptions filters and pages a debate listing.
type ListOptions struct {
	State  core.DebateState
	Limit  int
	Offset int
}

// ListDebates returns one page of debates, most recently updated first.
// The limit is clamped to [1, MaxPageSize] and a negative offset is treated as 0.
func (e *Engine) ListDebates(ctx context.Context, opts ListOptions) (*core.DebatePage, error) {
	if opts.State != "" && !opts.State.Valid() {
		return nil, fmt.Errorf("%w: unknown state %q", storage.ErrInvalidInput, opts.State)
	}
	if opts.Limit <= 0 {
		opts.Limit = e.limits.PageSize
	}
	if opts.Limit > e.limits.MaxPageSize {
		opts.Limit = e.limits.MaxPageSize
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	page := &core.DebatePage{Limit: opts.Limit, Offset: opts.Offset}
	err := e.db.RunInReadTransaction(ctx, func(tx *storage.Tx) error {
		repo := tx.Debates()
		items, err := repo.Find(ctx, storage.DebateFilter{State: opts.State, Limit: opts.Limit, Offset: opts.Offset})
		if err != nil {
			return fmt.Errorf("failed to list debates: %w", err)
		}
		total, err := repo.Count(ctx, opts.State)
		if err != nil {
			return fmt.Errorf("failed to count debates: %w", err)
		}
		page.Items, page.Total = items, total
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// Poll returns the latest argument with a sequence number above after, or nil
// if nothing newer has been posted.
//
// A reset restarts the thread at seq 1, so a watermark above the highest
// stored seq means the caller missed a reset. Poll reports that with
// ErrThreadReset; the caller should start over from 0.
func (e *Engine) Poll(ctx context.Context, id string, after int64) (*core.Argument, error) {
	if after < 0 {
		after = 0
	}

	var latest *core.Argument
	err := e.db.RunInReadTransaction(ctx, func(tx *storage.Tx) error {
		if _, err := e.findDebate(ctx, tx, id); err != nil {
			return err
		}
		args := tx.Arguments()
		var err error
		if latest, err = args.FindLatestAfter(ctx, id, after); err != nil || latest != nil || after == 0 {
			return err
		}
		next, err := args.NextSeq(ctx, id)
		if err != nil {
			return err
		}
		if after >= next {
			return fmt.Errorf("%w: debate %s has no seq %d", ErrThreadReset, id, after)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return latest, nil
}

// TransitionState moves a debate to state. CLOSED is terminal; moving a debate
// to the state it is already in is a no-op.
func (e *Engine) TransitionState(ctx context.Context, id string, state core.DebateState) (*core.Debate, error) {
	if !state.Valid() {
		return nil, fmt.Errorf("%w: unknown state %q", storage.ErrInvalidInput, state)
	}

	var debate *core.Debate
	err := e.db.RunInTransaction(ctx, func(tx *storage.Tx) error {
		current, err := e.findDebate(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.State == state {
			debate = current
			return nil
		}
		if current.IsClosed() {
			return fmt.Errorf("%w: %s", ErrDebateClosed, id)
		}

		debate, err = tx.Debates().UpdateState(ctx, id, state)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to transition debate: %w", err)
	}

	slog.Debug("Debate state changed", "id", id, "state", debate.State)
	return debate, nil
}

// ResetDebate clears a debate's thread and reopens it in AWAITING_OPPONENT.
// The motion is kept, with the same id.
func (e *Engine) ResetDebate(ctx context.Context, id string) (*core.DebateView, error) {
	var view *core.DebateView
	err := e.db.RunInTransaction(ctx, func(tx *storage.Tx) error {
		if _, err := e.findDebate(ctx, tx, id); err != nil {
			return err
		}

		args := tx.Arguments()
		motion, err := args.FindMotion(ctx, id)
		if err != nil {
			return err
		}
		if err := args.DeleteAllForDebate(ctx, id); err != nil {
			return err
		}
		if motion != nil {
			if motion, err = args.Append(ctx, storage.NewArgument{
				ID:              motion.ID,
				DebateID:        id,
				Type:            core.ArgumentTypeMotion,
				Role:            motion.Role,
				Content:         motion.Content,
				ClientRequestID: motion.ClientRequestID,
			}); err != nil {
				return err
			}
		}

		debate, err := tx.Debates().UpdateState(ctx, id, core.StateAwaitingOpponent)
		if err != nil {
			return err
		}
		view = &core.DebateView{Debate: debate, Motion: motion, Arguments: []*core.Argument{}}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reset debate: %w", err)
	}

	slog.Debug("Debate reset", "id", id)
	return view, nil
}

// DeleteDebate removes a debate and its whole argument log.
func (e *Engine) DeleteDebate(ctx context.Context, id string) error {
	err := e.db.RunInTransaction(ctx, func(tx *storage.Tx) error {
		if _, err := e.findDebate(ctx, tx, id); err != nil {
			return err
		}
		if err := tx.Arguments().DeleteAllForDebate(ctx, id); err != nil {
			return err
		}
		return tx.Debates().DeleteByID(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("failed to delete debate: %w", err)
	}

	slog.Debug("Debate deleted", "id", id)
	return nil
}

// ExportDebate writes the full debate in the given format.
func (e *Engine) ExportDebate(ctx context.Context, id string, format export.Format, w io.Writer) error {
	exporter, err := export.GetExporter(format)
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrInvalidInput, err)
	}

	view, err := e.FullView(ctx, id)
	if err != nil {
		return err
	}

	if err := exporter.Export(view, w); err != nil {
		return fmt.Errorf("failed to export debate: %w", err)
	}
	return nil
}

// FullView returns a debate with its entire thread in sequence order.
func (e *Engine) FullView(ctx context.Context, id string) (*core.DebateView, error) {
	var view *core.DebateView
	err := e.db.RunInReadTransaction(ctx, func(tx *storage.Tx) error {
		next, err := tx.Arguments().NextSeq(ctx, id)
		if err != nil {
			return err
		}
		// next-1 is the highest sequence number, an upper bound on the thread length.
		view, err = e.loadView(ctx, tx, id, int(next-1), storage.Ascending)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// ResolveID expands an id prefix (as printed by the CLI) to a full debate id.
func (e *Engine) ResolveID(ctx context.Context, prefix string) (string, error) {
	repo := e.db.Debates()
	if debate, err := repo.FindByID(ctx, prefix); err != nil {
		return "", err
	} else if debate != nil {
		return debate.ID, nil
	}

	var matches []string
	for offset := 0; ; offset += e.limits.MaxPageSize {
		page, err := repo.Find(ctx, storage.DebateFilter{Limit: e.limits.MaxPageSize, Offset: offset})
		if err != nil {
			return "", err
		}
		for _, d := range page {
			if core.MatchesPrefix(d.ID, prefix) {
				matches = append(matches, d.ID)
			}
		}
		if len(page) < e.limits.MaxPageSize {
			break
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: debate %s", storage.ErrNotFound, prefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: id prefix %q matches %d debates", storage.ErrInvalidInput, prefix, len(matches))
	}
}

func (e *Engine) findDebate(ctx context.Context, tx *storage.Tx, id string) (*core.Debate, error) {
	debate, err := tx.Debates().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if debate == nil {
		return nil, fmt.Errorf("%w: debate %s", storage.ErrNotFound, id)
	}
	return debate, nil
}

func (e *Engine) loadView(ctx context.Context, tx *storage.Tx, id string, limit int, order storage.Order) (*core.DebateView, error) {
	debate, err := e.findDebate(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	args := tx.Arguments()
	motion, err := args.FindMotion(ctx, id)
	if err != nil {
		return nil, err
	}
	thread, err := args.ListExcludingMotion(ctx, id, limit, order)
	if err != nil {
		return nil, err
	}

	return &core.DebateView{Debate: debate, Motion: motion, Arguments: thread}, nil
}

// SystemInfo describes the store the engine runs on.
type SystemInfo struct {
	DBPath              string                   `json:"db_path"`
	SchemaVersion       int                      `json:"schema_version"`
	LatestSchemaVersion int                      `json:"latest_schema_version"`
	Debates             map[core.DebateState]int `json:"debates"`
}

// SystemInfo reports the database location, its schema version and the number
// of debates in each state.
func (e *Engine) SystemInfo(ctx context.Context) (*SystemInfo, error) {
	version, err := e.db.SchemaVersion(ctx)
	if err != nil {
		return nil, err
	}

	info := &SystemInfo{
		DBPath:              e.db.Path(),
		SchemaVersion:       version,
		LatestSchemaVersion: e.db.LatestSchemaVersion(),
		Debates:             make(map[core.DebateState]int),
	}
	for _, state := range core.States() {
		n, err := e.db.Debates().Count(ctx, state)
		if err != nil {
			return nil, err
		}
		info.Debates[state] = n
	}
	return info, nil
}
