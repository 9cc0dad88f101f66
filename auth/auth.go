// Package auth provides bearer-token authentication for the Flight scan
// service: the Authenticator contract, ready-made implementations and gRPC
// interceptors that put the caller identity on the request context.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
)

var (
	// ErrInvalidAuthHeader is returned when the authorization header is malformed.
	ErrInvalidAuthHeader = errors.New("authorization header must use Bearer scheme")

	// ErrTokenIsEmpty is returned when the bearer token is empty.
	ErrTokenIsEmpty = errors.New("authorization token is empty")

	// ErrUnauthenticated is returned when authentication fails.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Authenticator validates bearer tokens and returns user identity.
// Implementations MUST be goroutine-safe.
type Authenticator interface {
	// Authenticate validates a bearer token and returns user identity.
	// Returns error if token is invalid or expired.
	// Context allows timeout for auth backend calls.
	Authenticate(ctx context.Context, token string) (identity string, err error)
}

// TableAuthorizer is an optional check of per-table access, run by the
// Flight server before a scan starts. The identity set by the interceptors
// is available through IdentityFromContext.
type TableAuthorizer interface {
	// AuthorizeTable returns a non-nil error if the caller may not scan table.
	AuthorizeTable(ctx context.Context, table string) error
}

// TableAuthorizerFunc adapts a function to TableAuthorizer.
type TableAuthorizerFunc func(ctx context.Context, table string) error

// AuthorizeTable implements TableAuthorizer.
func (f TableAuthorizerFunc) AuthorizeTable(ctx context.Context, table string) error {
	return f(ctx, table)
}

// noAuthenticator is an Authenticator that allows all requests.
type noAuthenticator struct{}

// NoAuth returns an Authenticator that allows all requests.
// Useful for development/testing. DO NOT use in production.
func NoAuth() Authenticator {
	return &noAuthenticator{}
}

// Authenticate implements Authenticator for noAuthenticator.
// Always returns "anonymous" as the identity.
func (n *noAuthenticator) Authenticate(ctx context.Context, token string) (string, error) {
	return "anonymous", nil
}

// staticTokens maps fixed tokens to identities.
type staticTokens struct {
	tokens map[string]string
}

// StaticTokens returns an Authenticator accepting exactly the given tokens,
// each mapped to its identity. Intended for service-to-service setups where
// tokens come from configuration.
func StaticTokens(tokens map[string]string) Authenticator {
	cp := make(map[string]string, len(tokens))
	for k, v := range tokens {
		cp[k] = v
	}
	return &staticTokens{tokens: cp}
}

// Authenticate implements Authenticator for staticTokens.
func (s *staticTokens) Authenticate(_ context.Context, token string) (string, error) {
	for known, identity := range s.tokens {
		if subtle.ConstantTimeCompare([]byte(known), []byte(token)) == 1 {
			return identity, nil
		}
	}
	return "", ErrUnauthenticated
}

const bearerPrefix = "Bearer "

// TokenFromAuthorizationHeader extracts the token of a "Bearer <token>"
// header value.
func TokenFromAuthorizationHeader(authHeader string) (string, error) {
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", ErrInvalidAuthHeader
	}

	token := strings.TrimPrefix(authHeader, bearerPrefix)
	if token == "" {
		return "", ErrTokenIsEmpty
	}
	return token, nil
}
