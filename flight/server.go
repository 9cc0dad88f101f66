// Package flight serves registered Parquet tables over Arrow Flight.
//
// Each DoGet runs one reader.Reader scan described by a MessagePack Ticket
// and streams its batches back to the client.
package flight

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"google.golang.org/grpc"

	"github.com/hugr-lab/lakesoul-go/auth"
	"github.com/hugr-lab/lakesoul-go/filter"
	"github.com/hugr-lab/lakesoul-go/reader"
	"github.com/hugr-lab/lakesoul-go/storage"
)

// Table is a named set of Parquet files sharing one schema.
type Table struct {
	// Name identifies the table in tickets and descriptors.
	// REQUIRED: MUST be non-empty and unique.
	Name string

	// Schema is the schema batches are bound to.
	// REQUIRED: MUST NOT be nil.
	Schema *arrow.Schema

	// Files lists the table's files, scanned in order.
	Files []string

	// PrimaryKeys names the primary-key columns.
	// OPTIONAL.
	PrimaryKeys []string

	// BatchSize is the default rows per batch.
	// OPTIONAL: the reader default applies if 0.
	BatchSize int

	// ThreadNum is the per-scan worker count hint.
	// OPTIONAL: the reader default applies if 0.
	ThreadNum int

	// ObjectStore holds object-store options for s3:// files.
	// OPTIONAL.
	ObjectStore map[string]string

	// Store overrides how files are opened.
	// OPTIONAL: files are routed by URI scheme if nil.
	Store storage.Store
}

func (t *Table) validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTable)
	}
	if t.Schema == nil {
		return fmt.Errorf("%w: table %q has no schema", ErrInvalidTable, t.Name)
	}
	return nil
}

// Server implements the Flight service handlers.
// Embeds BaseFlightServer for forward compatibility with protocol changes.
type Server struct {
	flight.BaseFlightServer

	tables     map[string]*Table
	names      []string
	cache      *filter.Cache
	metrics    *reader.Metrics
	authorizer auth.TableAuthorizer
	allocator  memory.Allocator
	logger     *slog.Logger
	address    string // Server's public address for FlightEndpoint locations
}

// Option configures optional Server behaviour.
type Option func(*Server)

// WithMetrics records scan counters of every DoGet into m.
func WithMetrics(m *reader.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithFilterCache shares a compiled-filter cache across scans.
func WithFilterCache(c *filter.Cache) Option {
	return func(s *Server) {
		s.cache = c
	}
}

// WithTableAuthorizer checks per-table access before a scan starts.
func WithTableAuthorizer(a auth.TableAuthorizer) Option {
	return func(s *Server) {
		s.authorizer = a
	}
}

// NewServer creates a Flight server over tables.
// The logger is used for internal logging of errors and important events.
// The address parameter specifies the server's public address for FlightEndpoint locations.
func NewServer(tables []Table, allocator memory.Allocator, logger *slog.Logger, address string, opts ...Option) (*Server, error) {
	if len(tables) == 0 {
		return nil, ErrNoTables
	}
	if allocator == nil {
		allocator = memory.DefaultAllocator
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		tables:    make(map[string]*Table, len(tables)),
		allocator: allocator,
		logger:    logger,
		address:   address,
	}
	for i := range tables {
		t := tables[i]
		if err := t.validate(); err != nil {
			return nil, err
		}
		if _, ok := s.tables[t.Name]; ok {
			return nil, ErrDuplicateTable{Name: t.Name}
		}
		t.Files = slices.Clone(t.Files)
		t.PrimaryKeys = slices.Clone(t.PrimaryKeys)
		t.ObjectStore = maps.Clone(t.ObjectStore)
		s.tables[t.Name] = &t
	}
	s.names = slices.Sorted(maps.Keys(s.tables))

	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		cache, err := filter.NewCache(0)
		if err != nil {
			return nil, err
		}
		s.cache = cache
	}
	return s, nil
}

// Tables returns the registered table names in sorted order.
func (s *Server) Tables() []string {
	return slices.Clone(s.names)
}

func (s *Server) table(name string) (*Table, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	return t, nil
}

// RegisterFlightServer registers the Flight service on the provided gRPC server.
// This follows the standard gRPC service registration pattern.
func RegisterFlightServer(grpcServer *grpc.Server, flightServer *Server) {
	flight.RegisterFlightServiceServer(grpcServer, flightServer)
}
