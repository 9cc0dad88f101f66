// Package lakesoul reads LakeSoul-style Parquet table files with predicate
// pushdown and serves them over Apache Arrow Flight.
//
// The module is organized in layers:
//   - filter: compiles serialized predicates ("gt(amount, 100)") against an
//     Arrow schema, evaluates them on batches and prunes Parquet row groups
//   - ioconfig: the scan configuration (files, schema, filters, object store)
//     built in code, from YAML or from MessagePack
//   - storage: local (afero) and S3 (minio) file access
//   - reader: the scan session and its synchronized, callback-friendly bridge
//   - flight: an Arrow Flight service streaming scans of registered tables
//
// This package ties the Flight service to a grpc.Server.
//
// # Quick Start
//
// Serve a table over Flight:
//
//	package main
//
//	import (
//	    "log"
//	    "net"
//
//	    "github.com/apache/arrow-go/v18/arrow"
//	    "google.golang.org/grpc"
//
//	    "github.com/hugr-lab/lakesoul-go"
//	)
//
//	func main() {
//	    schema := arrow.NewSchema([]arrow.Field{
//	        {Name: "id", Type: arrow.PrimitiveTypes.Int64},
//	        {Name: "amount", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
//	    }, nil)
//
//	    orders, err := lakesoul.NewTableBuilder("orders").
//	        Schema(schema).
//	        Files("s3://lake/orders/part-0.parquet", "s3://lake/orders/part-1.parquet").
//	        PrimaryKeys("id").
//	        ObjectStoreOption("fs.s3a.endpoint", "http://minio:9000").
//	        Build()
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    config := lakesoul.ServerConfig{Tables: []lakesoul.Table{orders}}
//	    grpcServer := grpc.NewServer(lakesoul.ServerOptions(config)...)
//	    if err := lakesoul.NewServer(grpcServer, config); err != nil {
//	        log.Fatal(err)
//	    }
//	    lis, _ := net.Listen("tcp", ":50051")
//	    grpcServer.Serve(lis)
//	}
//
// Clients fetch data with DoGet and a ticket made by flight.EncodeTicket:
//
//	ticket, _ := flight.EncodeTicket(flight.Ticket{
//	    Table:   "orders",
//	    Filters: []string{"gt(amount, 100.0)"},
//	    Columns: []string{"id", "amount"},
//	})
//
// # Reading Without a Server
//
// The reader package scans files directly:
//
//	cfg, _ := ioconfig.NewBuilder().
//	    WithFiles(files...).
//	    WithSchema(schema).
//	    WithFilter("gt(amount, 100.0)").
//	    Build()
//	r, _ := reader.New(cfg)
//	defer r.Close()
//	if err := r.Start(ctx); err != nil { ... }
//	for {
//	    batch, err := r.NextBatch(ctx)
//	    if err == io.EOF { break }
//	    ...
//	    batch.Release()
//	}
//
// # Server Lifecycle
//
// NewServer only registers handlers. The caller owns the grpc.Server: it
// starts it with Serve and stops it with GracefulStop. Every DoGet opens its
// own reader and closes it when the stream ends, so stopping the server
// releases all file handles.
//
// # Authentication
//
// Set ServerConfig.Auth and create the grpc.Server with ServerOptions to
// require bearer tokens. ServerConfig.TableAuthorizer additionally restricts
// which identities may scan which tables.
package lakesoul
