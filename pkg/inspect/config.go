package inspect

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/pulse-dev/pulse/pkg/pulse"
)

// Default tracer name for inspector spans.
const defaultTracerName = "pulse"

// Config holds the inspector server configuration.
type Config struct {
	// Addr is the listen address for standalone serving (default ":6060").
	Addr string

	// Registry is the unit registry to expose (default: the package
	// default registry).
	Registry *pulse.Registry

	// Logger receives request and lifecycle logs (default: slog.Default).
	Logger *slog.Logger

	// TracerName is the OpenTelemetry tracer name (default: "pulse").
	TracerName string

	// CheckOrigin validates WebSocket upgrade origins. Nil uses the
	// gorilla default same-origin check.
	CheckOrigin func(r *http.Request) bool

	// ReadOnly disables the mutating endpoints (evaluate, value); the
	// inspector then only observes the graph.
	ReadOnly bool

	// ReadTimeout, WriteTimeout, and IdleTimeout apply to the standalone
	// HTTP server.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// SnapshotTimeout bounds how long GET /api/snapshot waits for pending
	// guards to settle (default 5s).
	SnapshotTimeout time.Duration
}

// Option configures the inspector server.
type Option func(*Config)

// WithAddr sets the standalone listen address.
func WithAddr(addr string) Option {
	return func(c *Config) {
		c.Addr = addr
	}
}

// WithRegistry sets the registry to expose.
func WithRegistry(r *pulse.Registry) Option {
	return func(c *Config) {
		c.Registry = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithTracerName sets the tracer name.
func WithTracerName(name string) Option {
	return func(c *Config) {
		c.TracerName = name
	}
}

// WithCheckOrigin sets the WebSocket origin check.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(c *Config) {
		c.CheckOrigin = fn
	}
}

// WithReadOnly disables the mutating endpoints.
func WithReadOnly(readOnly bool) Option {
	return func(c *Config) {
		c.ReadOnly = readOnly
	}
}

// WithSnapshotTimeout bounds the settle wait on GET /api/snapshot.
func WithSnapshotTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.SnapshotTimeout = d
	}
}

func defaultConfig() Config {
	return Config{
		Addr:            ":6060",
		TracerName:      defaultTracerName,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     120 * time.Second,
		SnapshotTimeout: 5 * time.Second,
	}
}
