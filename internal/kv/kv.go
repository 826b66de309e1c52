// Package kv provides the durable key-value medium the domain store persists
// into. Every backend stores opaque byte values under string keys and reports
// missing keys with ErrNotFound.
package kv

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when the key has no stored value.
	ErrNotFound = errors.New("kv: key not found")

	errStoreClosed = errors.New("kv: store is closed")
)

// Store is a flat key-value medium.
type Store interface {
	// Get returns the value stored under key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the underlying handle.
	Close() error
}
