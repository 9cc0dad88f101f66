package flight

import (
	"github.com/apache/arrow-go/v18/arrow/flight"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ListFlights returns one FlightInfo per registered table, in name order.
// Each carries the full table schema and a ticket scanning the whole table.
//
// Criteria parameter is currently ignored (returns all tables).
func (s *Server) ListFlights(criteria *flight.Criteria, stream flight.FlightService_ListFlightsServer) error {
	ctx := EnrichContextMetadata(stream.Context())

	s.logger.Debug("ListFlights called", "tables", len(s.names))

	for _, name := range s.names {
		if err := ctx.Err(); err != nil {
			return status.FromContextError(err).Err()
		}

		t := s.tables[name]
		desc := &flight.FlightDescriptor{
			Type: flight.DescriptorPATH,
			Path: []string{name},
		}
		info, err := s.flightInfo(t, &Ticket{Table: name}, desc)
		if err != nil {
			return err
		}
		if err := stream.Send(info); err != nil {
			s.logger.Error("Failed to send FlightInfo", "table", name, "error", err)
			return status.Errorf(codes.Internal, "failed to send flight info: %v", err)
		}
	}

	s.logger.Debug("ListFlights completed successfully")
	return nil
}
