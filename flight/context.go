package flight

import (
	"context"
	"log/slog"

	"google.golang.org/grpc/metadata"

	"github.com/hugr-lab/lakesoul-go/auth"
)

// Request headers carried into scan logs.
const (
	HeaderTraceID   = "lakesoul-trace-id"
	HeaderSessionID = "lakesoul-client-session-id"
)

type requestMetaKey struct{}

// RequestMeta identifies a Flight request in logs.
type RequestMeta struct {
	TraceID   string
	SessionID string
	// Identity is the authenticated caller, empty without authentication.
	Identity string
}

// attrs returns the non-empty fields as slog attributes.
func (m *RequestMeta) attrs() []any {
	var out []any
	if m == nil {
		return out
	}
	if m.TraceID != "" {
		out = append(out, "trace_id", m.TraceID)
	}
	if m.SessionID != "" {
		out = append(out, "session_id", m.SessionID)
	}
	if m.Identity != "" {
		out = append(out, "identity", m.Identity)
	}
	return out
}

func metaFromContext(ctx context.Context) *RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(*RequestMeta)
	return meta
}

// TraceIDFromContext returns the request trace ID, or "".
func TraceIDFromContext(ctx context.Context) string {
	if meta := metaFromContext(ctx); meta != nil {
		return meta.TraceID
	}
	return ""
}

// SessionIDFromContext returns the client session ID, or "".
func SessionIDFromContext(ctx context.Context) string {
	if meta := metaFromContext(ctx); meta != nil {
		return meta.SessionID
	}
	return ""
}

// EnrichContextMetadata reads the trace and session headers of the incoming
// request plus the identity set by the auth interceptors, and stores them in
// the returned context. An enriched context is returned unchanged.
func EnrichContextMetadata(ctx context.Context) context.Context {
	if metaFromContext(ctx) != nil {
		return ctx
	}
	meta := &RequestMeta{Identity: auth.IdentityFromContext(ctx)}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(HeaderTraceID); len(v) > 0 {
			meta.TraceID = v[0]
		}
		if v := md.Get(HeaderSessionID); len(v) > 0 {
			meta.SessionID = v[0]
		}
	}
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// requestLogger returns logger annotated with the request metadata of ctx.
func requestLogger(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if attrs := metaFromContext(ctx).attrs(); len(attrs) > 0 {
		return logger.With(attrs...)
	}
	return logger
}
