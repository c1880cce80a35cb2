// Package storage defines the artifact storage contract shared by the
// local filesystem and MinIO backends.
package storage

import (
	"context"
	"io"
)

// Storage persists generated artifacts and serves them back.
type Storage interface {
	Save(ctx context.Context, subdir, filename string, src io.Reader) (string, error)
	Load(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
}
