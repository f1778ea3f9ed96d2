package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/alienxp03/dbate/internal/core"
	"github.com/alienxp03/dbate/internal/engine"
	"github.com/alienxp03/dbate/internal/storage"
)

// handleDebateStream streams new arguments using Server-Sent Events until the
// debate is closed or the client goes away. ?after=N skips arguments up to seq N.
// When the debate is reset the stream sends a "reset" event and replays the
// thread from the motion.
func (h *Handler) handleDebateStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	slog.Debug("New debate stream connection", "id", id, "remote_addr", r.RemoteAddr)

	lastSeq, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)

	// Set headers for SSE
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		slog.Error("Streaming unsupported: ResponseWriter does not implement http.Flusher")
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.streamLimit)
	defer cancel()

	// Send what is already there
	lastSeq, closed, err := h.sendNewArguments(ctx, w, flusher, id, lastSeq)
	if err != nil {
		slog.Warn("Failed to start debate stream", "id", id, "error", err)
		h.sendSSEError(w, flusher, err.Error())
		return
	}
	if closed {
		return
	}

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("Stream context done", "id", id)
			return
		case <-ticker.C:
			latest, err := h.engine.Poll(ctx, id, lastSeq)
			if errors.Is(err, engine.ErrThreadReset) {
				// Replay the thread from the start.
				slog.Debug("Debate reset during stream", "id", id, "after", lastSeq)
				h.sendSSEEvent(w, flusher, "reset", map[string]interface{}{"debate_id": id, "after": lastSeq})
				if lastSeq, closed, err = h.sendNewArguments(ctx, w, flusher, id, 0); err != nil || closed {
					return
				}
				continue
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Error("Stream error polling debate", "id", id, "error", err)
				h.sendSSEError(w, flusher, err.Error())
				return
			}

			// Nothing new; the state may still have changed.
			if latest == nil {
				view, err := h.engine.GetDebate(ctx, id, engine.ThreadOptions{Limit: 1, Order: storage.Descending})
				if err == nil && view.Debate.IsClosed() {
					h.sendSSEEvent(w, flusher, "debate_closed", view.Debate)
					return
				}
				continue
			}

			if lastSeq, closed, err = h.sendNewArguments(ctx, w, flusher, id, lastSeq); err != nil || closed {
				return
			}
		}
	}
}

// sendNewArguments sends every argument with a sequence number above after and
// reports the new watermark and whether the debate is closed.
func (h *Handler) sendNewArguments(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, id string, after int64) (int64, bool, error) {
	view, err := h.engine.FullView(ctx, id)
	if err != nil {
		return after, false, err
	}

	if after == 0 && view.Motion != nil {
		h.sendSSEEvent(w, flusher, "motion", view.Motion)
		after = view.Motion.Seq
	}
	for _, arg := range view.Arguments {
		if arg.Seq <= after {
			continue
		}
		h.sendSSEEvent(w, flusher, "argument", arg)
		after = arg.Seq
	}

	if view.Debate.State == core.StateClosed {
		h.sendSSEEvent(w, flusher, "debate_closed", view.Debate)
		return after, true, nil
	}
	return after, false, nil
}

// sendSSEEvent sends a server-sent event.
func (h *Handler) sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		slog.Error("Failed to marshal SSE data", "error", err)
		return
	}

	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		slog.Error("Failed to write SSE event", "error", err)
		return
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", jsonData); err != nil {
		slog.Error("Failed to write SSE data", "error", err)
		return
	}
	flusher.Flush()
}

// sendSSEError sends an error event.
func (h *Handler) sendSSEError(w http.ResponseWriter, flusher http.Flusher, message string) {
	errorData := map[string]string{"message": message}
	h.sendSSEEvent(w, flusher, "error", errorData)
}
