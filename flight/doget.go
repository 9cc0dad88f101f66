package flight

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/lakesoul-go/filter"
	"github.com/hugr-lab/lakesoul-go/internal/recovery"
	"github.com/hugr-lab/lakesoul-go/ioconfig"
	"github.com/hugr-lab/lakesoul-go/reader"
)

// scan is one prepared DoGet: a reader plus the projection applied to its
// batches.
type scan struct {
	table   *Table
	reader  *reader.Reader
	schema  *arrow.Schema
	indices []int
	logger  *slog.Logger
}

// DoGet streams Arrow record batches for a table scan.
//
// The ticket must be encoded using EncodeTicket. The handler:
//  1. Decodes the ticket and looks up the table
//  2. Compiles the ticket filters against the table schema
//  3. Runs a reader over the table files, pruning row groups
//  4. Streams the projected batches using Arrow IPC format
//  5. Respects context cancellation between batches
func (s *Server) DoGet(ticket *flight.Ticket, stream flight.FlightService_DoGetServer) error {
	ctx := EnrichContextMetadata(stream.Context())

	s.logger.Debug("DoGet called", "ticket_size", len(ticket.GetTicket()))

	td, err := DecodeTicket(ticket.GetTicket())
	if err != nil {
		s.logger.Error("Failed to decode ticket", "error", err)
		return status.Errorf(codes.InvalidArgument, "invalid ticket: %v", err)
	}

	return recovery.RecoverToError(s.logger, "DoGet", func() error {
		sc, err := s.prepareScan(ctx, td)
		if err != nil {
			return err
		}
		defer sc.reader.Close()
		return s.stream(ctx, sc, stream)
	})
}

// prepareScan resolves the ticket into a started reader.
func (s *Server) prepareScan(ctx context.Context, td *Ticket) (*scan, error) {
	t, err := s.table(td.Table)
	if err != nil {
		return nil, status.Errorf(codes.NotFound, "table not found: %s", td.Table)
	}
	if s.authorizer != nil {
		if err := s.authorizer.AuthorizeTable(ctx, t.Name); err != nil {
			s.logger.Debug("Table access denied", "table", t.Name, "error", err)
			return nil, status.Errorf(codes.PermissionDenied, "access to table %s denied: %v", t.Name, err)
		}
	}

	logger := requestLogger(ctx, s.logger).With("table", t.Name)

	batchSize := t.BatchSize
	if td.BatchSize > 0 {
		batchSize = td.BatchSize
	}
	cfg := &ioconfig.Config{
		Files:              t.Files,
		Schema:             t.Schema,
		PrimaryKeys:        t.PrimaryKeys,
		BatchSize:          batchSize,
		Filters:            td.Filters,
		ThreadNum:          t.ThreadNum,
		ObjectStoreOptions: t.ObjectStore,
		Allocator:          s.allocator,
		Logger:             logger,
	}

	opts := []reader.Option{reader.WithFilterCache(s.cache), reader.WithMetrics(s.metrics)}
	if t.Store != nil {
		opts = append(opts, reader.WithStore(t.Store))
	}
	r, err := reader.New(cfg, opts...)
	if err != nil {
		logger.Error("Failed to prepare scan", "error", err)
		if errors.Is(err, filter.ErrMalformedFilter) || errors.Is(err, filter.ErrInvalidLiteral) {
			return nil, status.Errorf(codes.InvalidArgument, "invalid filter: %v", err)
		}
		return nil, status.Errorf(codes.Internal, "failed to prepare scan: %v", err)
	}

	if err := r.Start(ctx); err != nil && !errors.Is(err, reader.ErrNoFiles) {
		r.Close()
		logger.Error("Failed to start scan", "error", err)
		if ctx.Err() != nil {
			return nil, status.FromContextError(ctx.Err()).Err()
		}
		return nil, status.Errorf(codes.Internal, "failed to start scan: %v", err)
	}

	schema, indices := projection(t.Schema, td.Columns)
	if len(td.Columns) > 0 {
		logger.Debug("Column projection", "columns", td.Columns, "projected_fields", schema.NumFields())
	}
	return &scan{table: t, reader: r, schema: schema, indices: indices, logger: logger}, nil
}

// stream writes every batch of sc to the client.
func (s *Server) stream(ctx context.Context, sc *scan, stream flight.FlightService_DoGetServer) error {
	writer := flight.NewRecordWriter(stream, ipc.WithSchema(sc.schema), ipc.WithAllocator(s.allocator))
	defer writer.Close()

	// A table without files yields only the schema.
	if sc.reader.State() != reader.StateRunning {
		sc.logger.Debug("DoGet completed (no files)")
		return nil
	}

	batchCount := 0
	totalRows := int64(0)
	for {
		select {
		case <-ctx.Done():
			sc.logger.Debug("DoGet cancelled by client",
				"batches_sent", batchCount,
				"rows_sent", totalRows,
			)
			return status.Error(codes.Canceled, "request cancelled")
		default:
		}

		batch, err := sc.reader.NextBatch(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			sc.logger.Error("Scan error during streaming",
				"batch", batchCount,
				"error", err,
			)
			return status.Errorf(codes.Internal, "scan error after batch %d: %v", batchCount, err)
		}

		record := projectBatch(batch, sc.schema, sc.indices)
		batchCount++
		totalRows += record.NumRows()

		err = writer.Write(record)
		record.Release()
		if err != nil {
			sc.logger.Error("Failed to write record batch",
				"batch", batchCount,
				"error", err,
			)
			return status.Errorf(codes.Internal, "failed to write batch %d: %v", batchCount, err)
		}

		sc.logger.Debug("Sent record batch",
			"batch", batchCount,
			"total_rows", totalRows,
		)
	}

	sc.logger.Debug("DoGet completed successfully",
		"batches_sent", batchCount,
		"total_rows", totalRows,
	)
	return nil
}
