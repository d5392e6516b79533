// Package store persists JSON documents grouped into named collections.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a document does not exist
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists is returned by Create when the key is taken
	ErrAlreadyExists = errors.New("record already exists")
	// ErrWriteFailed wraps any failure to persist a document
	ErrWriteFailed = errors.New("record write failed")
)

// Store is a keyed document store. Implementations must be safe for
// concurrent use, and a write to one key must be atomic with respect to
// readers of that key.
type Store interface {
	Create(ctx context.Context, collection, id string, doc any) error
	Read(ctx context.Context, collection, id string) ([]byte, error)
	Update(ctx context.Context, collection, id string, doc any) error
	Remove(ctx context.Context, collection, id string) error
	// List returns the ids in a collection; a missing or empty
	// collection yields an empty slice and no error.
	List(ctx context.Context, collection string) ([]string, error)
}
