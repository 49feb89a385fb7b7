package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aretw0/rux"
	"github.com/aretw0/rux/internal/logging"
	"github.com/aretw0/rux/pkg/domain"
	"github.com/aretw0/rux/pkg/schema"
	"github.com/go-chi/chi/v5"
	"github.com/tidwall/gjson"
)

// maxBodySize bounds request bodies.
const maxBodySize = 1 << 20

// Engine is the part of rux.Engine the HTTP surface needs.
type Engine interface {
	GetState(path domain.StatePath) (any, error)
	DispatchState(path domain.StatePath, value any) error
	DispatchByName(slice, reducer string, payload ...any) error
	ForceNotify(paths ...domain.StatePath) error
	Subscribe(cb domain.Callback, paths ...domain.StatePath) (domain.Unsubscribe, error)
	DumpStore() (map[string]map[string]any, error)
	LoadStore(data map[string]map[string]any) error
	Schema() (map[string]schema.Schema, error)
	Roots() ([]string, error)
	Persist(ctx context.Context, id string) (string, error)
	Restore(ctx context.Context, id string) error
	Snapshots(ctx context.Context) ([]string, error)
}

var _ Engine = (*rux.Engine)(nil)

// Server exposes an engine over HTTP.
// The engine is single-owner, so every call into it holds mu.
type Server struct {
	engine  Engine
	mu      sync.Mutex
	logger  *slog.Logger
	metrics http.Handler
	limiter *rateLimiter
	secret  []byte
	handler http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsHandler mounts h at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// NewServer builds the routes for engine. The returned Server is an
// http.Handler.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{engine: engine, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/openapi.json", s.GetOpenAPI)
	r.Get("/slices", s.GetSlices)
	r.Get("/store", s.GetStore)
	r.Put("/store", s.PutStore)
	r.Get("/state/{slice}/{field}", s.GetState)
	r.Put("/state/{slice}/{field}", s.PutState)
	r.Post("/notify/{slice}/{field}", s.Notify)
	r.Post("/dispatch/{slice}/{reducer}", s.Dispatch)
	r.Get("/events", s.SubscribeEvents)
	r.Get("/ws", s.SubscribeSocket)
	r.Get("/snapshots", s.ListSnapshots)
	r.Post("/snapshots", s.SaveSnapshot)
	r.Post("/snapshots/{id}/restore", s.RestoreSnapshot)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	var h http.Handler = r
	if s.secret != nil {
		h = s.authenticate(h)
	}
	if s.limiter != nil {
		h = s.rateLimit(h)
	}
	s.handler = enableCORS(h)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Locked runs fn with exclusive access to the engine, serialised with
// request handling.
func (s *Server) Locked(fn func(Engine) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.engine)
}

// Replace swaps the served engine for the one fn returns. fn runs under the
// engine lock with the current engine, so no request is served between
// reading the old store and installing the new one.
func (s *Server) Replace(fn func(current Engine) (Engine, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := fn(s.engine)
	if err != nil {
		return err
	}
	if next == nil {
		return errors.New("replace: nil engine")
	}
	s.engine = next
	return nil
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "rux-http",
		"version": rux.Version,
	})
}

// GetSlices handles GET /slices: the field schema of every root, plus the root order.
func (s *Server) GetSlices(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	schemas, err := s.engine.Schema()
	var roots []string
	if err == nil {
		roots, err = s.engine.Roots()
	}
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, "GetSlices", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"roots": roots, "slices": schemas})
}

// GetStore handles GET /store.
func (s *Server) GetStore(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	dump, err := s.engine.DumpStore()
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, "GetStore", err)
		return
	}
	s.writeJSON(w, http.StatusOK, dump)
}

// PutStore handles PUT /store with a full dump as body.
func (s *Server) PutStore(w http.ResponseWriter, r *http.Request) {
	var data map[string]map[string]any
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&data); err != nil {
		s.badRequest(w, "PutStore", fmt.Errorf("invalid request body: %w", err))
		return
	}

	s.mu.Lock()
	err := s.engine.LoadStore(data)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, "PutStore", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetState handles GET /state/{slice}/{field}.
func (s *Server) GetState(w http.ResponseWriter, r *http.Request) {
	path := pathParam(r)

	s.mu.Lock()
	value, err := s.engine.GetState(path)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, "GetState", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"path": path.String(), "value": value})
}

// PutState handles PUT /state/{slice}/{field} with body {"value": ...}.
func (s *Server) PutState(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		s.badRequest(w, "PutState", err)
		return
	}
	value := gjson.GetBytes(body, "value")
	if !value.Exists() {
		s.badRequest(w, "PutState", errors.New(`request body must contain "value"`))
		return
	}

	path := pathParam(r)
	s.mu.Lock()
	err = s.engine.DispatchState(path, value.Value())
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, "PutState", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Notify handles POST /notify/{slice}/{field}.
func (s *Server) Notify(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	err := s.engine.ForceNotify(pathParam(r))
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, "Notify", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Dispatch handles POST /dispatch/{slice}/{reducer}. An optional body
// {"payload": ...} is passed as the single payload.
func (s *Server) Dispatch(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		s.badRequest(w, "Dispatch", err)
		return
	}
	var payload []any
	if p := gjson.GetBytes(body, "payload"); p.Exists() {
		payload = append(payload, p.Value())
	}

	slice, reducer := chi.URLParam(r, "slice"), chi.URLParam(r, "reducer")
	s.mu.Lock()
	err = s.engine.DispatchByName(slice, reducer, payload...)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, "Dispatch", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSnapshots handles GET /snapshots.
func (s *Server) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	ids, err := s.engine.Snapshots(r.Context())
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, "ListSnapshots", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"snapshots": ids})
}

// SaveSnapshot handles POST /snapshots with an optional body {"id": ...}.
func (s *Server) SaveSnapshot(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		s.badRequest(w, "SaveSnapshot", err)
		return
	}

	s.mu.Lock()
	id, err := s.engine.Persist(r.Context(), gjson.GetBytes(body, "id").String())
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, "SaveSnapshot", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// RestoreSnapshot handles POST /snapshots/{id}/restore.
func (s *Server) RestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	err := s.engine.Restore(r.Context(), chi.URLParam(r, "id"))
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, "RestoreSnapshot", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubscribeEvents handles GET /events?path=Slice.field (repeatable) as a
// Server-Sent Events stream. Every notification of a watched path sends the
// current values of all watched paths, in query order.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	paths, err := queryPaths(r)
	if err != nil {
		s.badRequest(w, "SubscribeEvents", err)
		return
	}
	raw := r.URL.Query()["path"]

	ch := make(chan []byte, 16)
	cb := func(values []any) error {
		msg, err := json.Marshal(values)
		if err != nil {
			return nil
		}
		select {
		case ch <- msg:
		default:
			s.logger.Warn("SSE: client buffer full, dropping message", "paths", raw)
		}
		return nil
	}

	s.mu.Lock()
	unsubscribe, err := s.engine.Subscribe(cb, paths...)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, "SubscribeEvents", err)
		return
	}
	defer func() {
		s.mu.Lock()
		unsubscribe()
		s.mu.Unlock()
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected")
			return
		case msg := <-ch:
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// -- Helpers --

func queryPaths(r *http.Request) ([]domain.StatePath, error) {
	raw := r.URL.Query()["path"]
	if len(raw) == 0 {
		return nil, errors.New("at least one path query parameter is required")
	}
	paths := make([]domain.StatePath, 0, len(raw))
	for _, p := range raw {
		path, err := domain.ParsePath(p)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func pathParam(r *http.Request) domain.StatePath {
	return domain.BuildPath(chi.URLParam(r, "slice"), chi.URLParam(r, "field"))
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	if len(body) > 0 && !gjson.ValidBytes(body) {
		return nil, errors.New("request body is not valid JSON")
	}
	return body, nil
}

// statusFor maps error categories to HTTP status codes.
func statusFor(err error) int {
	var ve *schema.ValidationError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrLifecycle):
		return http.StatusConflict
	case errors.As(err, &ve), errors.Is(err, domain.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrReducer):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", "err", err)
	} else {
		s.logger.Warn(op+" rejected", "err", err, "status", status)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) badRequest(w http.ResponseWriter, op string, err error) {
	s.logger.Warn(op+": invalid request", "err", err)
	s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}
