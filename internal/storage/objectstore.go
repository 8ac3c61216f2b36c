// Package storage abstracts the object store used on both edges of the
// pipeline: the surfside batch drop location (read) and the report
// artifact location (write). Backends: S3 for deployment, a local
// directory for development, selected by configuration.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the requested object does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectStore is a byte blob key-value service. Keys are slash-separated
// paths; the store has no notion of the payload's format.
type ObjectStore interface {
	// Get returns the object's bytes, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put writes the object, overwriting any existing one.
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// List returns all keys under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
	// Exists reports whether the key is present.
	Exists(ctx context.Context, key string) (bool, error)
}
