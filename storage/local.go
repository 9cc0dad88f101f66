package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/afero"
)

// LocalStore opens files from an afero filesystem.
type LocalStore struct {
	fs afero.Fs
}

// NewLocalStore creates a store over fs. A nil fs uses the OS filesystem.
func NewLocalStore(fs afero.Fs) *LocalStore {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &LocalStore{fs: fs}
}

// Fs returns the underlying filesystem.
func (s *LocalStore) Fs() afero.Fs {
	return s.fs
}

// Open opens path, which may carry a file:// prefix.
func (s *LocalStore) Open(ctx context.Context, path string) (File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := strings.TrimPrefix(path, "file://")
	if name == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}

	f, err := s.fs.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", name, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %s is a directory", ErrInvalidPath, name)
	}
	return f, nil
}
