package engine

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/alienxp03/dbate/internal/core"
	"github.com/alienxp03/dbate/internal/export"
	"github.com/alienxp03/dbate/internal/storage"
)

func setupTestEngine(t *testing.T, limits Limits) *Engine {
	t.Helper()

	db, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open storage: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})

	return New(db, limits)
}

func createTestDebate(t *testing.T, eng *Engine, title string) *core.DebateView {
	t.Helper()
	view, err := eng.CreateDebate(context.Background(), NewDebateRequest{
		Title:      title,
		DebateType: "policy",
		Motion:     "Resolved: " + title,
	})
	if err != nil {
		t.Fatalf("failed to create debate: %v", err)
	}
	return view
}

func submit(t *testing.T, eng *Engine, req SubmitRequest) *SubmitResult {
	t.Helper()
	res, err := eng.SubmitArgument(context.Background(), req)
	if err != nil {
		t.Fatalf("failed to submit %+v: %v", req, err)
	}
	return res
}

func TestNewLimits(t *testing.T) {
	tests := []struct {
		name string
		in   Limits
		want Limits
	}{
		{"Zero", Limits{}, DefaultLimits()},
		{"Custom", Limits{PageSize: 5, MaxPageSize: 10, ThreadLimit: 7}, Limits{PageSize: 5, MaxPageSize: 10, ThreadLimit: 7}},
		{"PageAboveMax", Limits{PageSize: 50, MaxPageSize: 10}, Limits{PageSize: 10, MaxPageSize: 10, ThreadLimit: 200}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := New(nil, tt.in).Limits(); got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCreateDebate(t *testing.T) {
	eng := setupTestEngine(t, Limits{})
	ctx := context.Background()

	t.Run("Valid", func(t *testing.T) {
		view, err := eng.CreateDebate(ctx, NewDebateRequest{
			Title:      "  Tabs over spaces  ",
			DebateType: "policy",
			Motion:     "Resolved: tabs",
		})
		if err != nil {
			t.Fatalf("CreateDebate failed: %v", err)
		}

		if view.Debate.ID == "" {
			t.Error("expected debate id")
		}
		if view.Debate.Title != "Tabs over spaces" {
			t.Errorf("title not trimmed: %q", view.Debate.Title)
		}
		if view.Debate.State != core.StateAwaitingOpponent {
			t.Errorf("state: got %s, want %s", view.Debate.State, core.StateAwaitingOpponent)
		}
		if view.Motion == nil || view.Motion.Seq != 1 || view.Motion.Role != core.RoleProposer {
			t.Errorf("unexpected motion: %+v", view.Motion)
		}
		if len(view.Arguments) != 0 {
			t.Errorf("new debate should have an empty thread, got %d", len(view.Arguments))
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		tests := []struct {
			name string
			req  NewDebateRequest
		}{
			{"MissingTitle", NewDebateRequest{DebateType: "policy", Motion: "m"}},
			{"MissingType", NewDebateRequest{Title: "t", Motion: "m"}},
			{"MissingMotion", NewDebateRequest{Title: "t", DebateType: "policy", Motion: "   "}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if _, err := eng.CreateDebate(ctx, tt.req); !errors.Is(err, storage.ErrInvalidInput) {
					t.Errorf("expected ErrInvalidInput, got %v", err)
				}
			})
		}
	})
}

func TestCreateDebateIdempotent(t *testing.T) {
	eng := setupTestEngine(t, Limits{})
	ctx := context.Background()

	req := NewDebateRequest{Title: "X", DebateType: "policy", Motion: "Resolved: X", ClientRequestID: "create-1"}
	first, err := eng.CreateDebate(ctx, req)
	if err != nil {
		t.Fatalf("CreateDebate failed: %v", err)
	}
	submit(t, eng, SubmitRequest{DebateID: first.Debate.ID, Type: core.ArgumentTypeClaim, Role: "PRO", Content: "a"})

	second, err := eng.CreateDebate(ctx, req)
	if err != nil {
		t.Fatalf("retried CreateDebate failed: %v", err)
	}
	if second.Debate.ID != first.Debate.ID || second.Motion.ID != first.Motion.ID {
		t.Errorf("retry created a new debate: %s vs %s", second.Debate.ID, first.Debate.ID)
	}
	if len(second.Arguments) != 1 {
		t.Errorf("retry should return the stored thread, got %d arguments", len(second.Arguments))
	}

	other, err := eng.CreateDebate(ctx, NewDebateRequest{Title: "X", DebateType: "policy", Motion: "Resolved: X", ClientRequestID: "create-2"})
	if err != nil {
		t.Fatalf("CreateDebate failed: %v", err)
	}
	if other.Debate.ID == first.Debate.ID {
		t.Error("different tokens mapped onto the same debate")
	}

	page, err := eng.ListDebates(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("ListDebates failed: %v", err)
	}
	if page.Total != 2 {
		t.Errorf("expected 2 debates, got %d", page.Total)
	}
}

func TestSubmitArgument(t *testing.T) {
	eng := setupTestEngine(t, Limits{})
	ctx := context.Background()
	d1 := createTestDebate(t, eng, "X")

	var pro *core.Argument

	t.Run("ProAndConReplies", func(t *testing.T) {
		pro = submit(t, eng, SubmitRequest{DebateID: d1.Debate.ID, ParentID: d1.Motion.ID, Type: core.ArgumentTypeClaim, Role: "PRO", Content: "for"}).Argument
		con := submit(t, eng, SubmitRequest{DebateID: d1.Debate.ID, ParentID: d1.Motion.ID, Type: core.ArgumentTypeClaim, Role: "CON", Content: "against"}).Argument

		thread, err := eng.ListArguments(ctx, d1.Debate.ID, ThreadOptions{Limit: 10, Order: storage.Ascending})
		if err != nil {
			t.Fatalf("ListArguments failed: %v", err)
		}
		if len(thread) != 2 || thread[0].ID != pro.ID || thread[1].ID != con.ID {
			t.Errorf("unexpected thread: %+v", thread)
		}

		page, err := eng.ListDebates(ctx, ListOptions{State: core.StateAwaitingOpponent})
		if err != nil {
			t.Fatalf("ListDebates failed: %v", err)
		}
		if page.Total < 1 {
			t.Errorf("AWAITING_OPPONENT total should include the debate, got %d", page.Total)
		}
	})

	t.Run("MotionRejected", func(t *testing.T) {
		_, err := eng.SubmitArgument(ctx, SubmitRequest{DebateID: d1.Debate.ID, Type: core.ArgumentTypeMotion, Role: "PRO", Content: "again"})
		if !errors.Is(err, storage.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("EmptyContent", func(t *testing.T) {
		_, err := eng.SubmitArgument(ctx, SubmitRequest{DebateID: d1.Debate.ID, Type: core.ArgumentTypeClaim, Role: "PRO", Content: " "})
		if !errors.Is(err, storage.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("UnknownDebate", func(t *testing.T) {
		_, err := eng.SubmitArgument(ctx, SubmitRequest{DebateID: "ghost", Type: core.ArgumentTypeClaim, Role: "PRO", Content: "x"})
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ForeignParent", func(t *testing.T) {
		other := createTestDebate(t, eng, "Y")
		_, err := eng.SubmitArgument(ctx, SubmitRequest{DebateID: d1.Debate.ID, ParentID: other.Motion.ID, Type: core.ArgumentTypeClaim, Role: "PRO", Content: "x"})
		if !errors.Is(err, storage.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("NextState", func(t *testing.T) {
		res := submit(t, eng, SubmitRequest{
			DebateID:  d1.Debate.ID,
			ParentID:  pro.ID,
			Type:      core.ArgumentTypeRebuttal,
			Role:      "CON",
			Content:   "rebuttal",
			NextState: core.StateInProgress,
		})
		if res.Debate.State != core.StateInProgress {
			t.Errorf("state: got %s, want %s", res.Debate.State, core.StateInProgress)
		}
	})

	t.Run("InvalidNextState", func(t *testing.T) {
		_, err := eng.SubmitArgument(ctx, SubmitRequest{DebateID: d1.Debate.ID, Type: core.ArgumentTypeClaim, Role: "PRO", Content: "x", NextState: "PAUSED"})
		if !errors.Is(err, storage.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("ClosedDebate", func(t *testing.T) {
		first := submit(t, eng, SubmitRequest{
			DebateID:        d1.Debate.ID,
			Type:            core.ArgumentTypeRuling,
			Role:            core.RoleArbitrator,
			Content:         "PRO wins",
			ClientRequestID: "ruling-1",
			NextState:       core.StateClosed,
		})
		if !first.Debate.IsClosed() {
			t.Fatalf("debate should be closed, got %s", first.Debate.State)
		}

		_, err := eng.SubmitArgument(ctx, SubmitRequest{DebateID: d1.Debate.ID, Type: core.ArgumentTypeClaim, Role: "PRO", Content: "late"})
		if !errors.Is(err, ErrDebateClosed) {
			t.Errorf("expected ErrDebateClosed, got %v", err)
		}

		// A retry of the closing ruling still gets its stored argument back.
		retry, err := eng.SubmitArgument(ctx, SubmitRequest{
			DebateID:        d1.Debate.ID,
			Type:            core.ArgumentTypeRuling,
			Role:            core.RoleArbitrator,
			Content:         "PRO wins",
			ClientRequestID: "ruling-1",
			NextState:       core.StateClosed,
		})
		if err != nil {
			t.Fatalf("retry failed: %v", err)
		}
		if retry.Argument.ID != first.Argument.ID {
			t.Errorf("retry returned %s, want %s", retry.Argument.ID, first.Argument.ID)
		}
	})
}

func TestConcurrentSubmissions(t *testing.T) {
	eng := setupTestEngine(t, Limits{})
	ctx := context.Background()
	d := createTestDebate(t, eng, "busy")

	const writers = 10
	var wg sync.WaitGroup
	errs := make(chan error, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.SubmitArgument(ctx, SubmitRequest{DebateID: d.Debate.ID, Type: core.ArgumentTypeClaim, Role: "PRO", Content: "x"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("submission failed: %v", err)
		}
	}

	thread, err := eng.ListArguments(ctx, d.Debate.ID, ThreadOptions{Order: storage.Ascending})
	if err != nil {
		t.Fatalf("ListArguments failed: %v", err)
	}
	if len(thread) != writers {
		t.Fatalf("expected %d arguments, got %d", writers, len(thread))
	}
	for i, arg := range thread {
		// The motion holds seq 1.
		if arg.Seq != int64(i+2) {
			t.Errorf("position %d: seq %d, want %d", i, arg.Seq, i+2)
		}
	}
}

func TestGetDebate(t *testing.T) {
	eng := setupTestEngine(t, Limits{ThreadLimit: 2})
	ctx := context.Background()
	d := createTestDebate(t, eng, "X")
	for _, role := range []string{"PRO", "CON", "PRO"} {
		submit(t, eng, SubmitRequest{DebateID: d.Debate.ID, Type: core.ArgumentTypeClaim, Role: role, Content: role})
	}

	t.Run("DefaultThreadLimit", func(t *testing.T) {
		view, err := eng.GetDebate(ctx, d.Debate.ID, ThreadOptions{})
		if err != nil {
			t.Fatalf("GetDebate failed: %v", err)
		}
		if view.Motion == nil || view.Motion.ID != d.Motion.ID {
			t.Errorf("unexpected motion: %+v", view.Motion)
		}
		if len(view.Arguments) != 2 || view.Arguments[0].Seq != 2 {
			t.Errorf("expected the first two replies, got %d", len(view.Arguments))
		}
	})

	t.Run("LatestFirst", func(t *testing.T) {
		view, err := eng.GetDebate(ctx, d.Debate.ID, ThreadOptions{Limit: 1, Order: storage.Descending})
		if err != nil {
			t.Fatalf("GetDebate failed: %v", err)
		}
		if len(view.Arguments) != 1 || view.Arguments[0].Seq != 4 {
			t.Errorf("expected seq 4, got %+v", view.Arguments)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		if _, err := eng.GetDebate(ctx, "nonexistent", ThreadOptions{}); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("NegativeLimit", func(t *testing.T) {
		if _, err := eng.GetDebate(ctx, d.Debate.ID, ThreadOptions{Limit: -1}); !errors.Is(err, storage.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("FullView", func(t *testing.T) {
		view, err := eng.FullView(ctx, d.Debate.ID)
		if err != nil {
			t.Fatalf("FullView failed: %v", err)
		}
		if len(view.Arguments) != 3 {
			t.Errorf("expected whole thread of 3, got %d", len(view.Arguments))
		}
	})
}

func TestListDebates(t *testing.T) {
	eng := setupTestEngine(t, Limits{PageSize: 2, MaxPageSize: 3})
	ctx := context.Background()

	for _, title := range []string{"a", "b", "c", "d"} {
		createTestDebate(t, eng, title)
	}

	tests := []struct {
		name      string
		opts      ListOptions
		wantItems int
		wantLimit int
	}{
		{"DefaultPageSize", ListOptions{}, 2, 2},
		{"ClampedToMax", ListOptions{Limit: 50}, 3, 3},
		{"NegativeOffset", ListOptions{Limit: 3, Offset: -5}, 3, 3},
		{"LastPage", ListOptions{Limit: 3, Offset: 3}, 1, 3},
		{"NoClosed", ListOptions{State: core.StateClosed}, 0, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := eng.ListDebates(ctx, tt.opts)
			if err != nil {
				t.Fatalf("ListDebates failed: %v", err)
			}
			if len(page.Items) != tt.wantItems {
				t.Errorf("items: got %d, want %d", len(page.Items), tt.wantItems)
			}
			if page.Limit != tt.wantLimit {
				t.Errorf("limit: got %d, want %d", page.Limit, tt.wantLimit)
			}
			if page.Offset < 0 {
				t.Errorf("offset not clamped: %d", page.Offset)
			}
		})
	}

	t.Run("Total", func(t *testing.T) {
		page, _ := eng.ListDebates(ctx, ListOptions{Limit: 1})
		if page.Total != 4 {
			t.Errorf("total: got %d, want 4", page.Total)
		}
	})

	t.Run("UnknownState", func(t *testing.T) {
		if _, err := eng.ListDebates(ctx, ListOptions{State: "PAUSED"}); !errors.Is(err, storage.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestPoll(t *testing.T) {
	eng := setupTestEngine(t, Limits{})
	ctx := context.Background()
	d := createTestDebate(t, eng, "X")

	latest, err := eng.Poll(ctx, d.Debate.ID, 1)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if latest != nil {
		t.Errorf("expected nothing after the motion, got seq %d", latest.Seq)
	}

	submit(t, eng, SubmitRequest{DebateID: d.Debate.ID, Type: core.ArgumentTypeClaim, Role: "PRO", Content: "a"})
	b := submit(t, eng, SubmitRequest{DebateID: d.Debate.ID, Type: core.ArgumentTypeClaim, Role: "CON", Content: "b"}).Argument

	latest, err = eng.Poll(ctx, d.Debate.ID, 1)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if latest == nil || latest.ID != b.ID {
		t.Errorf("expected latest %s, got %+v", b.ID, latest)
	}

	if _, err := eng.Poll(ctx, "ghost", 0); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPollAfterReset(t *testing.T) {
	eng := setupTestEngine(t, Limits{})
	ctx := context.Background()
	d := createTestDebate(t, eng, "X")
	id := d.Debate.ID

	var last *core.Argument
	for _, content := range []string{"a", "b", "c"} {
		last = submit(t, eng, SubmitRequest{DebateID: id, Type: core.ArgumentTypeClaim, Role: "PRO", Content: content}).Argument
	}
	if last.Seq != 4 {
		t.Fatalf("expected seq 4, got %d", last.Seq)
	}

	if _, err := eng.ResetDebate(ctx, id); err != nil {
		t.Fatalf("ResetDebate failed: %v", err)
	}
	fresh := submit(t, eng, SubmitRequest{DebateID: id, Type: core.ArgumentTypeClaim, Role: "CON", Content: "fresh"}).Argument

	if _, err := eng.Poll(ctx, id, last.Seq); !errors.Is(err, ErrThreadReset) {
		t.Fatalf("expected ErrThreadReset for a stale watermark, got %v", err)
	}

	latest, err := eng.Poll(ctx, id, 0)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if latest == nil || latest.ID != fresh.ID {
		t.Errorf("expected %s after starting over, got %+v", fresh.ID, latest)
	}

	// A watermark at the end of the thread is not a reset.
	if latest, err := eng.Poll(ctx, id, fresh.Seq); err != nil || latest != nil {
		t.Errorf("expected nothing new, got %+v, %v", latest, err)
	}
}

func TestTransitionState(t *testing.T) {
	eng := setupTestEngine(t, Limits{})
	ctx := context.Background()
	d := createTestDebate(t, eng, "X")
	id := d.Debate.ID

	got, err := eng.TransitionState(ctx, id, core.StateInProgress)
	if err != nil {
		t.Fatalf("TransitionState failed: %v", err)
	}
	if got.State != core.StateInProgress {
		t.Errorf("state: got %s", got.State)
	}

	if got, err = eng.TransitionState(ctx, id, core.StateInProgress); err != nil || got.State != core.StateInProgress {
		t.Errorf("same-state transition: got (%v, %v)", got, err)
	}

	if _, err := eng.TransitionState(ctx, id, core.StateClosed); err != nil {
		t.Fatalf("closing failed: %v", err)
	}
	if _, err := eng.TransitionState(ctx, id, core.StateInProgress); !errors.Is(err, ErrDebateClosed) {
		t.Errorf("expected ErrDebateClosed, got %v", err)
	}

	if _, err := eng.TransitionState(ctx, id, "ARCHIVED"); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := eng.TransitionState(ctx, "ghost", core.StateClosed); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestResetDebate(t *testing.T) {
	eng := setupTestEngine(t, Limits{})
	ctx := context.Background()
	d := createTestDebate(t, eng, "X")
	submit(t, eng, SubmitRequest{DebateID: d.Debate.ID, Type: core.ArgumentTypeClaim, Role: "PRO", Content: "a", NextState: core.StateClosed})

	view, err := eng.ResetDebate(ctx, d.Debate.ID)
	if err != nil {
		t.Fatalf("ResetDebate failed: %v", err)
	}
	if view.Debate.State != core.StateAwaitingOpponent {
		t.Errorf("state: got %s", view.Debate.State)
	}
	if view.Motion == nil || view.Motion.ID != d.Motion.ID || view.Motion.Content != d.Motion.Content {
		t.Errorf("motion not preserved: %+v", view.Motion)
	}

	stored, err := eng.GetDebate(ctx, d.Debate.ID, ThreadOptions{})
	if err != nil {
		t.Fatalf("GetDebate failed: %v", err)
	}
	if len(stored.Arguments) != 0 {
		t.Errorf("thread not cleared: %d arguments", len(stored.Arguments))
	}

	// The reopened debate accepts arguments again.
	res := submit(t, eng, SubmitRequest{DebateID: d.Debate.ID, Type: core.ArgumentTypeClaim, Role: "PRO", Content: "again"})
	if res.Argument.Seq != 2 {
		t.Errorf("seq after reset: got %d, want 2", res.Argument.Seq)
	}

	if _, err := eng.ResetDebate(ctx, "ghost"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteDebate(t *testing.T) {
	eng := setupTestEngine(t, Limits{})
	ctx := context.Background()
	d := createTestDebate(t, eng, "X")
	submit(t, eng, SubmitRequest{DebateID: d.Debate.ID, Type: core.ArgumentTypeClaim, Role: "PRO", Content: "a"})

	if err := eng.DeleteDebate(ctx, d.Debate.ID); err != nil {
		t.Fatalf("DeleteDebate failed: %v", err)
	}
	if _, err := eng.GetDebate(ctx, d.Debate.ID, ThreadOptions{}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := eng.DeleteDebate(ctx, d.Debate.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestExportDebate(t *testing.T) {
	eng := setupTestEngine(t, Limits{})
	ctx := context.Background()
	d := createTestDebate(t, eng, "Exported")
	submit(t, eng, SubmitRequest{DebateID: d.Debate.ID, Type: core.ArgumentTypeClaim, Role: "PRO", Content: "the case for"})

	var buf bytes.Buffer
	if err := eng.ExportDebate(ctx, d.Debate.ID, export.FormatMarkdown, &buf); err != nil {
		t.Fatalf("ExportDebate failed: %v", err)
	}
	if !strings.Contains(buf.String(), "# Exported") || !strings.Contains(buf.String(), "the case for") {
		t.Errorf("unexpected markdown:\n%s", buf.String())
	}

	if err := eng.ExportDebate(ctx, d.Debate.ID, "docx", &buf); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if err := eng.ExportDebate(ctx, "ghost", export.FormatJSON, &buf); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveID(t *testing.T) {
	eng := setupTestEngine(t, Limits{MaxPageSize: 1, PageSize: 1})
	ctx := context.Background()
	a := createTestDebate(t, eng, "a")
	b := createTestDebate(t, eng, "b")

	got, err := eng.ResolveID(ctx, a.Debate.ID)
	if err != nil || got != a.Debate.ID {
		t.Errorf("full id: got (%s, %v)", got, err)
	}

	got, err = eng.ResolveID(ctx, strings.ToUpper(core.ShortID(b.Debate.ID)))
	if err != nil || got != b.Debate.ID {
		t.Errorf("short id: got (%s, %v)", got, err)
	}

	if _, err := eng.ResolveID(ctx, "zzzzzzzz"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := eng.ResolveID(ctx, ""); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound for empty prefix, got %v", err)
	}
}

func TestSystemInfo(t *testing.T) {
	eng := setupTestEngine(t, Limits{})
	ctx := context.Background()
	d := createTestDebate(t, eng, "X")
	createTestDebate(t, eng, "Y")
	if _, err := eng.TransitionState(ctx, d.Debate.ID, core.StateClosed); err != nil {
		t.Fatalf("TransitionState failed: %v", err)
	}

	info, err := eng.SystemInfo(ctx)
	if err != nil {
		t.Fatalf("SystemInfo failed: %v", err)
	}
	if info.SchemaVersion != info.LatestSchemaVersion {
		t.Errorf("schema version %d, latest %d", info.SchemaVersion, info.LatestSchemaVersion)
	}
	if info.Debates[core.StateAwaitingOpponent] != 1 || info.Debates[core.StateClosed] != 1 {
		t.Errorf("unexpected counts: %v", info.Debates)
	}
	if !strings.HasSuffix(info.DBPath, "test.db") {
		t.Errorf("unexpected db path %s", info.DBPath)
	}
}
