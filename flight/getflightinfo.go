package flight

import (
	"context"
	"errors"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/lakesoul-go/filter"
)

// resolveDescriptor maps a descriptor to a table and the ticket that scans
// it. A PATH descriptor is [table_name]; a CMD descriptor carries an encoded
// Ticket, whose filters are compiled to reject bad predicates early.
func (s *Server) resolveDescriptor(desc *flight.FlightDescriptor) (*Table, *Ticket, error) {
	var td *Ticket
	switch desc.GetType() {
	case flight.DescriptorPATH:
		path := desc.GetPath()
		if len(path) != 1 {
			return nil, nil, status.Error(codes.InvalidArgument, "path must contain exactly 1 element: [table_name]")
		}
		td = &Ticket{Table: path[0]}
	case flight.DescriptorCMD:
		var err error
		td, err = DecodeTicket(desc.GetCmd())
		if err != nil {
			return nil, nil, status.Errorf(codes.InvalidArgument, "invalid command: %v", err)
		}
	default:
		return nil, nil, status.Error(codes.InvalidArgument, "descriptor must be PATH or CMD type")
	}

	t, err := s.table(td.Table)
	if err != nil {
		return nil, nil, status.Errorf(codes.NotFound, "table not found: %s", td.Table)
	}
	if _, err := s.cache.CompileAll(td.Filters, t.Schema); err != nil {
		if errors.Is(err, filter.ErrMalformedFilter) || errors.Is(err, filter.ErrInvalidLiteral) {
			return nil, nil, status.Errorf(codes.InvalidArgument, "invalid filter: %v", err)
		}
		return nil, nil, status.Errorf(codes.Internal, "failed to compile filter: %v", err)
	}
	return t, td, nil
}

// flightInfo builds the FlightInfo of a scan: projected schema plus a single
// endpoint carrying the ticket.
func (s *Server) flightInfo(t *Table, td *Ticket, desc *flight.FlightDescriptor) (*flight.FlightInfo, error) {
	ticket, err := EncodeTicket(*td)
	if err != nil {
		s.logger.Error("Failed to encode ticket", "table", t.Name, "error", err)
		return nil, status.Errorf(codes.Internal, "failed to encode ticket: %v", err)
	}

	endpoint := &flight.FlightEndpoint{Ticket: &flight.Ticket{Ticket: ticket}}
	if s.address != "" {
		endpoint.Location = []*flight.Location{{Uri: "grpc://" + s.address}}
	}

	return &flight.FlightInfo{
		Schema:           flight.SerializeSchema(ProjectSchema(t.Schema, td.Columns), s.allocator),
		FlightDescriptor: desc,
		Endpoint:         []*flight.FlightEndpoint{endpoint},
		TotalRecords:     -1, // Unknown until scan
		TotalBytes:       -1, // Unknown until scan
	}, nil
}

// GetFlightInfo returns schema metadata and ticket for table scans.
// This RPC allows clients to discover table schemas before fetching data.
//
// The descriptor is either PATH [table_name] or CMD holding an encoded
// Ticket with filters and projection.
func (s *Server) GetFlightInfo(ctx context.Context, desc *flight.FlightDescriptor) (*flight.FlightInfo, error) {
	s.logger.Debug("GetFlightInfo called",
		"type", desc.GetType(),
		"path_length", len(desc.GetPath()),
	)

	t, td, err := s.resolveDescriptor(desc)
	if err != nil {
		return nil, err
	}

	info, err := s.flightInfo(t, td, desc)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("GetFlightInfo successful",
		"table", t.Name,
		"filters", len(td.Filters),
		"columns", len(td.Columns),
	)
	return info, nil
}

// GetSchema returns the (projected) schema of the described scan.
func (s *Server) GetSchema(ctx context.Context, desc *flight.FlightDescriptor) (*flight.SchemaResult, error) {
	t, td, err := s.resolveDescriptor(desc)
	if err != nil {
		return nil, err
	}
	return &flight.SchemaResult{
		Schema: flight.SerializeSchema(ProjectSchema(t.Schema, td.Columns), s.allocator),
	}, nil
}
