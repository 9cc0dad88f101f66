package auth

import (
	"context"

	"google.golang.org/grpc"
)

// authenticate resolves the caller of ctx. A nil authenticator admits every
// request unchanged.
func authenticate(ctx context.Context, authenticator Authenticator) (context.Context, error) {
	if authenticator == nil {
		return ctx, nil
	}
	token, err := ExtractToken(ctx)
	if err != nil {
		return nil, err
	}
	return ValidateToken(ctx, token, authenticator)
}

// UnaryServerInterceptor authenticates unary Flight calls (GetFlightInfo,
// GetSchema) and stores the caller identity in the handler context.
func UnaryServerInterceptor(authenticator Authenticator) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, err := authenticate(ctx, authenticator)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor authenticates streaming Flight calls (DoGet,
// ListFlights, DoAction) and exposes the caller identity through the
// stream's context.
func StreamServerInterceptor(authenticator Authenticator) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := authenticate(ss.Context(), authenticator)
		if err != nil {
			return err
		}
		if ctx == ss.Context() {
			return handler(srv, ss)
		}
		return handler(srv, &identityStream{ServerStream: ss, ctx: ctx})
	}
}

// identityStream overrides the context of a server stream.
type identityStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *identityStream) Context() context.Context {
	return s.ctx
}
