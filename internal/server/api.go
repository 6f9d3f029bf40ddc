package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"

	"kanban/internal/kanban"
)

// Backend is what the API needs from the store beyond the service: board
// lookups for routing events, and a liveness ping.
type Backend interface {
	BoardIDByColumn(ctx context.Context, columnID int64) (int64, error)
	BoardIDByTask(ctx context.Context, taskID int64) (int64, error)
	BoardIDBySubtask(ctx context.Context, subtaskID int64) (int64, error)
	Ping(ctx context.Context) error
}

type Options struct {
	CORSOrigins []string
	// Heartbeat is the keep-alive interval of event streams.
	Heartbeat time.Duration
}

type api struct {
	svc     *kanban.Service
	backend Backend
	log     *slog.Logger
	bus     *EventBus
}

func newAPI(svc *kanban.Service, backend Backend, log *slog.Logger, bus *EventBus) *api {
	return &api{svc: svc, backend: backend, log: log, bus: bus}
}

// Handler is the full HTTP surface. Close ends open event streams so that
// a graceful shutdown does not wait on them.
type Handler struct {
	http.Handler
	bus *EventBus
}

func (h *Handler) Close() error {
	h.bus.Close()
	return nil
}

// NewHandler wires routes and middleware together.
func NewHandler(svc *kanban.Service, backend Backend, log *slog.Logger, opts Options) *Handler {
	mux := http.NewServeMux()
	a := newAPI(svc, backend, log, NewEventBus(opts.Heartbeat))
	a.routes(mux)

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
	})
	return &Handler{Handler: c.Handler(withLogging(log, mux)), bus: a.bus}
}

func (a *api) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", a.handleHealth)

	mux.HandleFunc("GET /api/boards", a.handleListBoards)
	mux.HandleFunc("POST /api/boards", a.handleCreateBoard)
	mux.HandleFunc("GET /api/boards/{id}", a.handleGetBoard)
	mux.HandleFunc("PATCH /api/boards/{id}", a.handleUpdateBoard)
	mux.HandleFunc("DELETE /api/boards/{id}", a.handleDeleteBoard)
	mux.HandleFunc("GET /api/boards/{id}/events", a.handleBoardEvents)

	mux.HandleFunc("GET /api/boards/{id}/columns", a.handleListColumns)
	mux.HandleFunc("POST /api/boards/{id}/columns", a.handleCreateColumn)
	mux.HandleFunc("DELETE /api/columns/{id}", a.handleDeleteColumn)

	mux.HandleFunc("POST /api/tasks", a.handleCreateTask)
	mux.HandleFunc("GET /api/tasks/{id}", a.handleGetTask)
	mux.HandleFunc("PUT /api/tasks/{id}", a.handleUpdateTask)
	mux.HandleFunc("DELETE /api/tasks/{id}", a.handleDeleteTask)

	mux.HandleFunc("PATCH /api/subtasks/{id}", a.handleSetSubtaskCompleted)
}

func parseID(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }

// pathID reads the {id} wildcard, answering 400 itself when it is not a number.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := parseID(r.PathValue("id"))
	if err != nil || id <= 0 {
		writeError(w, 400, "bad id")
		return 0, false
	}
	return id, true
}

// readBody caps the request at 1 MiB; decoding happens in the kanban parsers.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	b, err := io.ReadAll(r.Body)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, 413, "payload too large")
			return nil, false
		}
		writeError(w, 400, "invalid payload")
		return nil, false
	}
	return b, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}

// fail maps domain errors to responses. Field errors go back to the client
// so forms can show them inline.
func (a *api) fail(w http.ResponseWriter, op string, err error) {
	var ve *kanban.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, 400, map[string]any{"ok": false, "error": "invalid payload", "fields": ve.Fields})
	case errors.Is(err, kanban.ErrNotFound):
		writeError(w, 404, err.Error())
	default:
		a.log.Error(op, "err", err)
		writeError(w, 500, "internal error")
	}
}

type ctxKey struct{}

// RequestID returns the id assigned by the logging middleware, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func withLogging(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		r = r.WithContext(context.WithValue(r.Context(), ctxKey{}, reqID))

		sw := &statusWriter{ResponseWriter: w, status: 200}
		start := time.Now()
		next.ServeHTTP(sw, r)
		log.Info("http", "method", r.Method, "path", r.URL.Path, "status", sw.status,
			"dur_ms", time.Since(start).Milliseconds(), "req_id", reqID)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) { w.status = code; w.ResponseWriter.WriteHeader(code) }

// Flush passes through so SSE works behind the logger.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
