package flight

import (
	"context"
	"slices"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/lakesoul-go/filter"
	"github.com/hugr-lab/lakesoul-go/internal/msgpack"
)

// Action types served by DoAction.
const (
	ActionListTables = "list_tables"
	ActionExplain    = "explain"
)

// TableInfo describes a registered table in the list_tables response.
type TableInfo struct {
	Name        string   `msgpack:"name"`
	Files       []string `msgpack:"files"`
	PrimaryKeys []string `msgpack:"primary_keys,omitempty"`
	Fields      []string `msgpack:"fields"`
}

// ExplainResult is the explain response: the compiled predicate of a ticket
// in canonical form and rendered as a DuckDB WHERE clause.
type ExplainResult struct {
	Table  string `msgpack:"table"`
	Filter string `msgpack:"filter"`
	SQL    string `msgpack:"sql"`
}

// ListActions advertises the supported actions.
func (s *Server) ListActions(_ *flight.Empty, stream flight.FlightService_ListActionsServer) error {
	actions := []*flight.ActionType{
		{Type: ActionListTables, Description: "List registered tables (MessagePack []TableInfo)"},
		{Type: ActionExplain, Description: "Compile the filters of a MessagePack Ticket and render them as SQL"},
	}
	for _, a := range actions {
		if err := stream.Send(a); err != nil {
			return err
		}
	}
	return nil
}

// DoAction executes server actions:
//   - list_tables: registered tables with their files and fields
//   - explain: compiled filters of a ticket body
func (s *Server) DoAction(action *flight.Action, stream flight.FlightService_DoActionServer) error {
	ctx := EnrichContextMetadata(stream.Context())

	requestLogger(ctx, s.logger).Debug("DoAction called",
		"type", action.GetType(),
		"body_size", len(action.GetBody()),
	)

	switch action.GetType() {
	case ActionListTables:
		return s.handleListTables(ctx, stream)
	case ActionExplain:
		return s.handleExplain(ctx, action, stream)
	default:
		return status.Errorf(codes.Unimplemented, "unknown action type: %s", action.GetType())
	}
}

func (s *Server) handleListTables(_ context.Context, stream flight.FlightService_DoActionServer) error {
	infos := make([]TableInfo, 0, len(s.names))
	for _, name := range s.names {
		t := s.tables[name]
		fields := make([]string, t.Schema.NumFields())
		for i, f := range t.Schema.Fields() {
			fields[i] = f.Name
		}
		infos = append(infos, TableInfo{
			Name:        name,
			Files:       slices.Clone(t.Files),
			PrimaryKeys: slices.Clone(t.PrimaryKeys),
			Fields:      fields,
		})
	}

	body, err := msgpack.Encode(infos)
	if err != nil {
		return status.Errorf(codes.Internal, "failed to encode tables: %v", err)
	}
	return stream.Send(&flight.Result{Body: body})
}

func (s *Server) handleExplain(ctx context.Context, action *flight.Action, stream flight.FlightService_DoActionServer) error {
	t, td, err := s.resolveDescriptor(&flight.FlightDescriptor{
		Type: flight.DescriptorCMD,
		Cmd:  action.GetBody(),
	})
	if err != nil {
		return err
	}

	// resolveDescriptor already compiled the filters, so this is a cache hit.
	expr, err := s.cache.CompileAll(td.Filters, t.Schema)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid filter: %v", err)
	}

	res := ExplainResult{Table: t.Name}
	if expr != nil {
		res.Filter = expr.String()
		res.SQL = filter.NewDuckDBEncoder(nil).Encode(expr)
	}

	s.logger.Debug("Explained filters", "table", t.Name, "filter", res.Filter)

	body, err := msgpack.Encode(&res)
	if err != nil {
		return status.Errorf(codes.Internal, "failed to encode explain result: %v", err)
	}
	return stream.Send(&flight.Result{Body: body})
}
