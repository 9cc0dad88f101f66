package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// Router dispatches Open calls to the store serving each path's scheme.
// The object-store client is created on first use. Safe for concurrent use.
type Router struct {
	local   *LocalStore
	options map[string]string
	logger  *slog.Logger

	mu sync.Mutex
	s3 Store
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithFs sets the local filesystem (default: the OS filesystem).
func WithFs(fs afero.Fs) RouterOption {
	return func(r *Router) { r.local = NewLocalStore(fs) }
}

// WithObjectStore replaces the object store used for s3:// paths.
func WithObjectStore(s Store) RouterOption {
	return func(r *Router) { r.s3 = s }
}

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) { r.logger = logger }
}

// NewRouter creates a router. options holds object-store settings keyed by
// the Opt* constants.
func NewRouter(options map[string]string, opts ...RouterOption) *Router {
	r := &Router{
		local:   NewLocalStore(nil),
		options: options,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open opens path on the store serving its scheme.
func (r *Router) Open(ctx context.Context, path string) (File, error) {
	scheme, _, found := strings.Cut(path, "://")
	if !found {
		return r.local.Open(ctx, path)
	}

	switch scheme {
	case "file":
		return r.local.Open(ctx, path)
	case "s3", "s3a":
		s3, err := r.objectStore()
		if err != nil {
			return nil, err
		}
		return s3.Open(ctx, path)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
}

func (r *Router) objectStore() (Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.s3 != nil {
		return r.s3, nil
	}

	s, err := NewS3Store(r.options)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("Object store client created",
		"endpoint", r.options[OptEndpoint],
		"region", r.options[OptRegion],
		"bucket", r.options[OptBucket])
	r.s3 = s
	return s, nil
}
