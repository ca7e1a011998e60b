package inspect

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pulse-dev/pulse/pkg/pulse"
)

// Server serves the inspector API for one registry.
type Server struct {
	config   Config
	registry *pulse.Registry
	logger   *slog.Logger
	tracer   trace.Tracer
	upgrader websocket.Upgrader
	hub      *hub
	router   chi.Router
}

// NewServer creates an inspector server. The zero-option server exposes
// the default registry on ":6060".
func NewServer(opts ...Option) *Server {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	registry := config.Registry
	if registry == nil {
		registry = pulse.DefaultRegistry()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default().With("component", "inspect")
	}

	s := &Server{
		config:   config,
		registry: registry,
		logger:   logger,
		tracer:   otel.Tracer(config.TracerName),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     config.CheckOrigin,
		},
		hub: newHub(registry, logger),
	}
	s.router = s.buildRouter()
	return s
}

// Handler returns the inspector's HTTP handler for mounting on an
// existing router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe runs a standalone HTTP server until the context is
// cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("inspector listening", "addr", s.config.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.hub.close()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", s.handleWS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/units", s.handleListUnits)
		r.Get("/snapshot", s.handleSnapshot)
		r.Route("/units/{name}", func(r chi.Router) {
			r.Get("/", s.handleGetUnit)
			r.Get("/explain", s.handleExplain)
			if !s.config.ReadOnly {
				r.Post("/evaluate", s.handleEvaluate)
				r.Post("/value", s.handleSetValue)
			}
		})
	})
	return r
}

// logRequests logs each request with method, path, and duration.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

// unitJSON is the wire shape of one registered unit.
type unitJSON struct {
	Name  string      `json:"name"`
	Kind  pulse.Kind  `json:"kind"`
	State pulse.State `json:"state"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListUnits(w http.ResponseWriter, r *http.Request) {
	_, span := s.tracer.Start(r.Context(), "inspect.list_units")
	defer span.End()

	handles := s.registry.All()
	units := make([]unitJSON, 0, len(handles))
	for _, h := range handles {
		units = append(units, unitJSON{
			Name:  h.Name(),
			Kind:  h.Kind(),
			State: h.State(),
		})
	}
	span.SetAttributes(attribute.Int("pulse.unit_count", len(units)))
	writeJSON(w, http.StatusOK, units)
}

func (s *Server) handleGetUnit(w http.ResponseWriter, r *http.Request) {
	_, span := s.tracer.Start(r.Context(), "inspect.get_unit")
	defer span.End()

	h, ok := s.lookup(w, r, span)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, unitJSON{
		Name:  h.Name(),
		Kind:  h.Kind(),
		State: h.State(),
	})
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	_, span := s.tracer.Start(r.Context(), "inspect.explain")
	defer span.End()

	h, ok := s.lookup(w, r, span)
	if !ok {
		return
	}

	explanation, err := h.Explain()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, explanation)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	_, span := s.tracer.Start(r.Context(), "inspect.evaluate")
	defer span.End()

	h, ok := s.lookup(w, r, span)
	if !ok {
		return
	}

	if err := h.Evaluate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, unitJSON{
		Name:  h.Name(),
		Kind:  h.Kind(),
		State: h.State(),
	})
}

// setValueRequest is the body of POST /api/units/{name}/value. Note that
// JSON numbers decode as float64; sources of other numeric types should
// accept float64 in SetAny or use a custom request path.
type setValueRequest struct {
	Value any `json:"value"`
}

func (s *Server) handleSetValue(w http.ResponseWriter, r *http.Request) {
	_, span := s.tracer.Start(r.Context(), "inspect.set_value")
	defer span.End()

	h, ok := s.lookup(w, r, span)
	if !ok {
		return
	}

	var req setValueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		span.SetStatus(codes.Error, err.Error())
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.SetValue(req.Value); err != nil {
		span.SetStatus(codes.Error, err.Error())
		status := http.StatusBadRequest
		if errors.Is(err, pulse.ErrNotSource) {
			status = http.StatusConflict
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, unitJSON{
		Name:  h.Name(),
		Kind:  h.Kind(),
		State: h.State(),
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "inspect.snapshot")
	defer span.End()

	var guards []pulse.Unit
	for _, h := range s.registry.All() {
		if h.Kind() == pulse.KindGuard {
			guards = append(guards, h.Unit())
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.SnapshotTimeout)
	defer cancel()

	snapshot, err := pulse.Serialize(ctx, guards...)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		writeError(w, http.StatusGatewayTimeout, err)
		return
	}
	span.SetAttributes(attribute.Int("pulse.guard_count", len(snapshot)))
	writeJSON(w, http.StatusOK, snapshot)
}

// lookup resolves the {name} route parameter to a handle, writing a 404
// when it is unknown.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request, span trace.Span) (*pulse.Handle, bool) {
	name := chi.URLParam(r, "name")
	span.SetAttributes(attribute.String("pulse.unit", name))

	h, ok := s.registry.Get(name)
	if !ok {
		span.SetStatus(codes.Error, "unit not found")
		writeError(w, http.StatusNotFound, pulse.ErrUnknownUnit)
		return nil, false
	}
	return h, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
