// Package blobstore abstracts where database snapshots live: a local
// directory, process memory, or an S3-compatible object store.
package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// Store is a flat namespace of immutable blobs.
type Store interface {
	// Put writes a blob under name, replacing any previous content. size may
	// be -1 when unknown.
	Put(ctx context.Context, name string, r io.Reader, size int64) error

	// Open opens a blob for sequential reading.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}
