// Package handlers provides the HTTP API for debates.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/alienxp03/dbate/internal/core"
	"github.com/alienxp03/dbate/internal/engine"
	"github.com/alienxp03/dbate/internal/export"
	"github.com/alienxp03/dbate/internal/storage"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	engine       *engine.Engine
	pollInterval time.Duration
	streamLimit  time.Duration
}

// New creates a new Handler.
func New(eng *engine.Engine) *Handler {
	return &Handler{
		engine:       eng,
		pollInterval: time.Second,
		streamLimit:  30 * time.Minute,
	}
}

// Router returns the HTTP handler serving every route.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers all API routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/system/info", h.handleAPISystemInfo)

		r.Route("/debates", func(r chi.Router) {
			r.Get("/", h.handleAPIDebates)
			r.Post("/", h.handleAPICreateDebate)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.handleAPIDebate)
				r.Delete("/", h.handleAPIDeleteDebate)
				r.Put("/state", h.handleAPIDebateState)
				r.Post("/reset", h.handleAPIResetDebate)
				r.Get("/arguments", h.handleAPIArguments)
				r.Post("/arguments", h.handleAPISubmitArgument)
				r.Get("/poll", h.handleAPIPoll)
				r.Get("/stream", h.handleDebateStream)
				r.Get("/export/{format}", h.handleExportDebate)
			})
		})
	})
}

func (h *Handler) handleAPIDebates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q, "limit")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	offset, err := intParam(q, "offset")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	page, err := h.engine.ListDebates(r.Context(), engine.ListOptions{
		State:  core.DebateState(q.Get("state")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.json(w, page)
}

func (h *Handler) handleAPICreateDebate(w http.ResponseWriter, r *http.Request) {
	var req engine.NewDebateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.ClientRequestID == "" {
		req.ClientRequestID = r.Header.Get("Idempotency-Key")
	}

	view, err := h.engine.CreateDebate(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/debates/"+view.Debate.ID)
	h.jsonStatus(w, view, http.StatusCreated)
}

func (h *Handler) handleAPIDebate(w http.ResponseWriter, r *http.Request) {
	opts, err := threadOptions(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	view, err := h.engine.GetDebate(r.Context(), chi.URLParam(r, "id"), opts)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.json(w, view)
}

func (h *Handler) handleAPIDeleteDebate(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeleteDebate(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAPIDebateState(w http.ResponseWriter, r *http.Request) {
	var req struct {
		State core.DebateState `json:"state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	debate, err := h.engine.TransitionState(r.Context(), chi.URLParam(r, "id"), req.State)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.json(w, debate)
}

func (h *Handler) handleAPIResetDebate(w http.ResponseWriter, r *http.Request) {
	view, err := h.engine.ResetDebate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.json(w, view)
}

func (h *Handler) handleAPIArguments(w http.ResponseWriter, r *http.Request) {
	opts, err := threadOptions(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	args, err := h.engine.ListArguments(r.Context(), chi.URLParam(r, "id"), opts)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.json(w, args)
}

func (h *Handler) handleAPISubmitArgument(w http.ResponseWriter, r *http.Request) {
	var req engine.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.DebateID = chi.URLParam(r, "id")
	if req.ClientRequestID == "" {
		req.ClientRequestID = r.Header.Get("Idempotency-Key")
	}

	res, err := h.engine.SubmitArgument(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.jsonStatus(w, res, http.StatusCreated)
}

func (h *Handler) handleAPIPoll(w http.ResponseWriter, r *http.Request) {
	var after int64
	if v := r.URL.Query().Get("after"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			h.jsonError(w, "after must be an integer", http.StatusBadRequest)
			return
		}
		after = n
	}

	latest, err := h.engine.Poll(r.Context(), chi.URLParam(r, "id"), after)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if latest == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.json(w, latest)
}

func (h *Handler) handleExportDebate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	format := chi.URLParam(r, "format")

	exporter, err := export.GetExporter(export.Format(format))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	view, err := h.engine.FullView(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	filename := export.GenerateFilename(view.Debate, exporter.FileExtension())
	w.Header().Set("Content-Type", exporter.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))

	if err := exporter.Export(view, w); err != nil {
		slog.Error("Export failed", "debate_id", id, "format", format, "error", err)
		http.Error(w, "Export failed", http.StatusInternalServerError)
	}
}

func (h *Handler) handleAPISystemInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.engine.SystemInfo(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.json(w, info)
}

// Helper methods

func threadOptions(r *http.Request) (engine.ThreadOptions, error) {
	q := r.URL.Query()

	var opts engine.ThreadOptions
	limit, err := intParam(q, "limit")
	if err != nil {
		return opts, err
	}
	opts.Limit = limit

	order, err := storage.ParseOrder(q.Get("order"))
	if err != nil {
		return opts, err
	}
	opts.Order = order
	return opts, nil
}

// intParam parses an optional integer query parameter; absent means 0.
func intParam(q url.Values, name string) (int, error) {
	v := q.Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", storage.ErrInvalidInput, name)
	}
	return n, nil
}

// statusFor maps store and engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrDebateClosed),
		errors.Is(err, engine.ErrThreadReset),
		errors.Is(err, storage.ErrUniqueViolation),
		errors.Is(err, storage.ErrForeignKeyViolation):
		return http.StatusConflict
	case errors.Is(err, storage.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		slog.Error("Request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
	}
	h.jsonError(w, err.Error(), code)
}

func (h *Handler) json(w http.ResponseWriter, data interface{}) {
	h.jsonStatus(w, data, http.StatusOK)
}

func (h *Handler) jsonStatus(w http.ResponseWriter, data interface{}, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// requestLogger logs one line per request once it has been served.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			slog.Debug("Handled request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}
