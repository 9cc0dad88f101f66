package lakesoul

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"google.golang.org/grpc"

	"github.com/hugr-lab/lakesoul-go/auth"
	"github.com/hugr-lab/lakesoul-go/filter"
	"github.com/hugr-lab/lakesoul-go/flight"
	"github.com/hugr-lab/lakesoul-go/reader"
)

// NewServer registers the Flight scan service handlers on the provided gRPC
// server. This is the main entry point for the lakesoul package.
//
// The function:
//  1. Validates the ServerConfig
//  2. Creates the Flight service over the configured tables
//  3. Registers it on grpcServer
//
// Does NOT start the gRPC server - user controls lifecycle via grpcServer.Serve().
//
// For authentication, use ServerOptions() to create a gRPC server with auth interceptors:
//
//	opts := lakesoul.ServerOptions(config)
//	grpcServer := grpc.NewServer(opts...)
//	err := lakesoul.NewServer(grpcServer, config)
func NewServer(grpcServer *grpc.Server, config ServerConfig) error {
	flightServer, err := newFlightServer(config)
	if err != nil {
		return err
	}
	flight.RegisterFlightServer(grpcServer, flightServer)
	return nil
}

func newFlightServer(config ServerConfig) (*flight.Server, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	allocator := config.Allocator
	if allocator == nil {
		allocator = memory.DefaultAllocator
	}
	logger := newLogger(config)

	cache, err := filter.NewCache(config.FilterCacheSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	opts := []flight.Option{flight.WithFilterCache(cache)}
	if config.Registerer != nil {
		opts = append(opts, flight.WithMetrics(reader.NewMetrics(config.Registerer)))
	}
	if config.TableAuthorizer != nil {
		opts = append(opts, flight.WithTableAuthorizer(config.TableAuthorizer))
	}

	flightServer, err := flight.NewServer(config.Tables, allocator, logger, config.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	logger.Info("Flight scan server registered",
		"tables", len(config.Tables),
		"has_auth", config.Auth != nil,
		"max_message_size", config.MaxMessageSize,
	)
	return flightServer, nil
}

// validateConfig checks that required ServerConfig fields are valid.
func validateConfig(config ServerConfig) error {
	if len(config.Tables) == 0 {
		return fmt.Errorf("at least one table is required")
	}
	if config.MaxMessageSize < 0 {
		return fmt.Errorf("max message size %d is negative", config.MaxMessageSize)
	}
	if config.FilterCacheSize < 0 {
		return fmt.Errorf("filter cache size %d is negative", config.FilterCacheSize)
	}
	return nil
}

// newLogger returns config.Logger, or a text logger at config.LogLevel.
func newLogger(config ServerConfig) *slog.Logger {
	if config.Logger != nil {
		return config.Logger
	}
	if config.LogLevel != nil {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: *config.LogLevel}))
	}
	return slog.Default()
}

// ServerOptions returns gRPC server options with authentication interceptors.
// Use this when creating a gRPC server if you want authentication enabled.
//
// Example:
//
//	config := lakesoul.ServerConfig{
//	    Tables: tables,
//	    Auth:   lakesoul.BearerAuth(validateToken),
//	}
//	grpcServer := grpc.NewServer(lakesoul.ServerOptions(config)...)
//	lakesoul.NewServer(grpcServer, config)
func ServerOptions(config ServerConfig) []grpc.ServerOption {
	var opts []grpc.ServerOption

	if config.Auth != nil {
		opts = append(opts,
			grpc.UnaryInterceptor(auth.UnaryServerInterceptor(config.Auth)),
			grpc.StreamInterceptor(auth.StreamServerInterceptor(config.Auth)),
		)
	}

	if config.MaxMessageSize > 0 {
		opts = append(opts,
			grpc.MaxRecvMsgSize(config.MaxMessageSize),
			grpc.MaxSendMsgSize(config.MaxMessageSize),
		)
	}

	return opts
}
