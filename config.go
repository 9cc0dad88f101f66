package lakesoul

import (
	"errors"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hugr-lab/lakesoul-go/auth"
)

// ServerConfig contains configuration for the Flight scan server.
type ServerConfig struct {
	// Tables lists the tables served.
	// REQUIRED: at least one, with unique names.
	Tables []Table

	// Auth provides authentication logic.
	// OPTIONAL: If nil, no authentication (all requests allowed).
	Auth auth.Authenticator

	// TableAuthorizer restricts per-table access.
	// OPTIONAL: If nil, every authenticated caller may scan every table.
	TableAuthorizer auth.TableAuthorizer

	// Allocator for Arrow memory management.
	// OPTIONAL: Uses memory.DefaultAllocator if nil.
	Allocator memory.Allocator

	// Logger for internal logging.
	// OPTIONAL: Uses slog.Default() if nil.
	// Note: If LogLevel is specified, a new logger will be created with that level.
	Logger *slog.Logger

	// LogLevel sets the logging level.
	// OPTIONAL: If nil, uses Info level.
	// If Logger is also provided, LogLevel is ignored (use pre-configured logger).
	LogLevel *slog.Level

	// MaxMessageSize sets maximum gRPC message size in bytes.
	// OPTIONAL: If 0, uses gRPC default (4MB).
	// Recommended: 16MB for large Arrow batches.
	MaxMessageSize int

	// Address is the server's public address (e.g., "localhost:50051").
	// OPTIONAL: If empty, FlightEndpoint locations will not include URI.
	Address string

	// Registerer receives the scan metrics.
	// OPTIONAL: If nil, metrics are not collected.
	Registerer prometheus.Registerer

	// FilterCacheSize bounds the compiled-filter cache.
	// OPTIONAL: If 0, uses filter.DefaultCacheSize.
	FilterCacheSize int
}

// Standard errors returned by lakesoul package.
var (
	// ErrUnauthorized indicates authentication failed.
	// Return this from Authenticator.Authenticate() for invalid tokens.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidConfig indicates ServerConfig validation failed.
	ErrInvalidConfig = errors.New("invalid server config")

	// ErrInvalidTable indicates a TableBuilder was given an incomplete table.
	ErrInvalidTable = errors.New("invalid table definition")
)
