package database

import (
	"context"
	"errors"
)

// Keys persisted by the filter. Values are JSON documents.
const (
	KeySettings          = "settings"
	KeyFilterStats       = "filterStats"
	KeyDetectedCountries = "detectedCountries"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// UpdateFunc receives the current value (nil when absent) and returns the
// value to store. Returning an error aborts the update.
type UpdateFunc func(old []byte) ([]byte, error)

// Change describes one committed write. Origin identifies the writer so
// that subscribers can skip their own writes.
type Change struct {
	Key    string
	Value  []byte
	Origin string
}

// Store is the opaque key-value store shared by all surfaces.
// Implementations must be safe for concurrent use and must deliver a
// Change to every watcher after each committed write.
type Store interface {
	// Get returns nil, nil when the key is absent
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, origin, key string, value []byte) error
	// Update performs an atomic read-modify-write and returns the stored value
	Update(ctx context.Context, origin, key string, fn UpdateFunc) ([]byte, error)
	// Watch streams changes until ctx is cancelled or the store is closed
	Watch(ctx context.Context) <-chan Change

	Close() error
}
