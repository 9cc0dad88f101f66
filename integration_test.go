package lakesoul_test

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	arrowflight "github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/lakesoul-go"
	"github.com/hugr-lab/lakesoul-go/flight"
)

var secretsSchema = arrow.NewSchema([]arrow.Field{
	{Name: "id", Type: arrow.PrimitiveTypes.Int64},
	{Name: "key", Type: arrow.BinaryTypes.String},
	{Name: "value", Type: arrow.BinaryTypes.String, Nullable: true},
}, nil)

// writeSecrets writes a small Parquet file to dir and returns its path.
func writeSecrets(t *testing.T, dir string) string {
	t.Helper()

	b := array.NewRecordBuilder(memory.DefaultAllocator, secretsSchema)
	defer b.Release()
	b.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 2, 3}, nil)
	b.Field(1).(*array.StringBuilder).AppendValues([]string{"api_key", "db_password", "legacy"}, nil)
	b.Field(2).(*array.StringBuilder).AppendValues([]string{"secret123", "pass456", ""}, []bool{true, true, false})
	rec := b.NewRecordBatch()
	defer rec.Release()
	tbl := array.NewTableFromRecords(secretsSchema, []arrow.RecordBatch{rec})
	defer tbl.Release()

	path := filepath.Join(dir, "secrets.parquet")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer f.Close()
	if err := pqarrow.WriteTable(tbl, f, 1024, parquet.NewWriterProperties(), pqarrow.DefaultWriterProps()); err != nil {
		t.Fatalf("WriteTable failed: %v", err)
	}
	return path
}

type testServer struct {
	address string
	client  arrowflight.Client
}

// newTestServer starts a Flight server on a random local port.
func newTestServer(t *testing.T, config lakesoul.ServerConfig) *testServer {
	t.Helper()

	grpcServer := grpc.NewServer(lakesoul.ServerOptions(config)...)
	if err := lakesoul.NewServer(grpcServer, config); err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	go grpcServer.Serve(lis)
	t.Cleanup(grpcServer.Stop)

	client, err := arrowflight.NewClientWithMiddleware(lis.Addr().String(), nil, nil,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return &testServer{address: lis.Addr().String(), client: client}
}

func (s *testServer) scan(ctx context.Context, td flight.Ticket) (map[string]string, error) {
	ticket, err := flight.EncodeTicket(td)
	if err != nil {
		return nil, err
	}
	stream, err := s.client.DoGet(ctx, &arrowflight.Ticket{Ticket: ticket})
	if err != nil {
		return nil, err
	}
	rdr, err := arrowflight.NewRecordReader(stream)
	if err != nil {
		return nil, err
	}
	defer rdr.Release()

	out := make(map[string]string)
	for rdr.Next() {
		rec := rdr.RecordBatch()
		keys := rec.Column(1).(*array.String)
		values := rec.Column(2).(*array.String)
		for i := 0; i < keys.Len(); i++ {
			out[keys.Value(i)] = values.Value(i)
		}
	}
	if err := rdr.Err(); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return out, nil
}

func withToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}

// TestAuthentication verifies that bearer token authentication works correctly.
func TestAuthentication(t *testing.T) {
	path := writeSecrets(t, t.TempDir())
	secrets, err := lakesoul.NewTableBuilder("secrets").Schema(secretsSchema).Files(path).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	server := newTestServer(t, lakesoul.ServerConfig{
		Tables: []lakesoul.Table{secrets},
		Auth: lakesoul.BearerAuth(func(token string) (string, error) {
			switch token {
			case "valid-token":
				return "user1", nil
			case "admin-token":
				return "admin", nil
			}
			return "", lakesoul.ErrUnauthorized
		}),
	})
	ctx := t.Context()

	t.Run("NoToken", func(t *testing.T) {
		_, err := server.scan(ctx, flight.Ticket{Table: "secrets"})
		if status.Code(err) != codes.Unauthenticated {
			t.Errorf("Expected Unauthenticated, got %v", err)
		}
	})

	t.Run("InvalidToken", func(t *testing.T) {
		_, err := server.scan(withToken(ctx, "invalid-token"), flight.Ticket{Table: "secrets"})
		if status.Code(err) != codes.Unauthenticated {
			t.Errorf("Expected Unauthenticated, got %v", err)
		}
	})

	t.Run("ValidToken", func(t *testing.T) {
		got, err := server.scan(withToken(ctx, "valid-token"), flight.Ticket{Table: "secrets"})
		if err != nil {
			t.Fatalf("Scan with valid token failed: %v", err)
		}
		if len(got) != 3 {
			t.Errorf("Expected 3 rows, got %d", len(got))
		}
		if got["api_key"] != "secret123" {
			t.Errorf("Expected api_key='secret123', got '%s'", got["api_key"])
		}
	})

	t.Run("FilteredScan", func(t *testing.T) {
		got, err := server.scan(withToken(ctx, "admin-token"), flight.Ticket{
			Table:   "secrets",
			Filters: []string{"noteq(value, null)", "gt(id, 1)"},
		})
		if err != nil {
			t.Fatalf("Scan failed: %v", err)
		}
		if len(got) != 1 || got["db_password"] != "pass456" {
			t.Errorf("Expected only db_password, got %v", got)
		}
	})
}

// TestTableAuthorization verifies per-table access decisions based on the
// authenticated identity.
func TestTableAuthorization(t *testing.T) {
	path := writeSecrets(t, t.TempDir())
	secrets, err := lakesoul.NewTableBuilder("secrets").Schema(secretsSchema).Files(path).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	reg := prometheus.NewRegistry()
	server := newTestServer(t, lakesoul.ServerConfig{
		Tables:     []lakesoul.Table{secrets},
		Auth:       lakesoul.StaticTokens(map[string]string{"u": "user", "a": "admin"}),
		Registerer: reg,
		TableAuthorizer: authorizeFunc(func(ctx context.Context, table string) error {
			if lakesoul.IdentityFromContext(ctx) != "admin" {
				return errors.New("admins only")
			}
			return nil
		}),
	})

	if _, err := server.scan(withToken(t.Context(), "u"), flight.Ticket{Table: "secrets"}); status.Code(err) != codes.PermissionDenied {
		t.Errorf("Expected PermissionDenied, got %v", err)
	}
	got, err := server.scan(withToken(t.Context(), "a"), flight.Ticket{Table: "secrets"})
	if err != nil {
		t.Fatalf("Admin scan failed: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("Expected 3 rows, got %d", len(got))
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "lakesoul_reader_rows_total" {
			found = true
			if v := mf.GetMetric()[0].GetCounter().GetValue(); v != 3 {
				t.Errorf("rows metric = %v, want 3", v)
			}
		}
	}
	if !found {
		t.Error("lakesoul_reader_rows_total not registered")
	}
}

type authorizeFunc func(ctx context.Context, table string) error

func (f authorizeFunc) AuthorizeTable(ctx context.Context, table string) error { return f(ctx, table) }
