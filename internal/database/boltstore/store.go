// Package boltstore provides persistent storage using BoltDB (bbolt).
// It implements database.Store for the filter's settings, stats and
// detected-country records.
package boltstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"countryfilter/internal/database"
	"countryfilter/internal/metrics"

	bolt "go.etcd.io/bbolt"
)

// BucketStorage holds every persisted key as a JSON value.
var BucketStorage = []byte("storage")

// Store wraps a BoltDB database and publishes a change for every commit.
type Store struct {
	db *bolt.DB
	database.Notifier
}

// Options configures the BoltDB store.
type Options struct {
	// Path to the database file. Parent directories will be created if needed.
	Path string

	// Timeout for obtaining a file lock on the database.
	// If zero, a default of 5 seconds is used.
	Timeout time.Duration

	// FileMode for creating the database file.
	// If zero, 0600 is used.
	FileMode os.FileMode
}

// DefaultOptions returns sensible defaults for development.
func DefaultOptions() Options {
	return Options{
		Path:     "countryfilter.db",
		Timeout:  5 * time.Second,
		FileMode: 0600,
	}
}

// Open creates or opens a BoltDB database at the specified path.
// It creates the storage bucket if it doesn't exist.
func Open(opts Options) (*Store, error) {
	if opts.Path == "" {
		opts.Path = "countryfilter.db"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.FileMode == 0 {
		opts.FileMode = 0600
	}

	// Ensure parent directory exists
	dir := filepath.Dir(opts.Path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := bolt.Open(opts.Path, opts.FileMode, &bolt.Options{
		Timeout: opts.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(BucketStorage); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", BucketStorage, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Get returns the value stored under key, or nil if absent.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketStorage)
		if bucket == nil {
			return nil
		}

		// Bolt values are only valid inside the transaction
		if data := bucket.Get([]byte(key)); data != nil {
			value = append([]byte(nil), data...)
		}
		return nil
	})

	return value, err
}

// Set stores value under key and notifies watchers.
func (s *Store) Set(ctx context.Context, origin, key string, value []byte) error {
	_, err := s.Update(ctx, origin, key, func([]byte) ([]byte, error) {
		return value, nil
	})
	return err
}

// Update applies fn to the current value inside a single write transaction.
func (s *Store) Update(ctx context.Context, origin, key string, fn database.UpdateFunc) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var next []byte
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketStorage)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketStorage)
		}

		var old []byte
		if data := bucket.Get([]byte(key)); data != nil {
			old = append([]byte(nil), data...)
		}

		var err error
		next, err = fn(old)
		if err != nil {
			return err
		}

		return bucket.Put([]byte(key), next)
	})
	if err != nil {
		return nil, err
	}

	metrics.StoreWritesTotal.WithLabelValues(key).Inc()
	s.Publish(database.Change{Key: key, Value: next, Origin: origin})

	return next, nil
}

// Close closes watchers and the database.
func (s *Store) Close() error {
	s.Notifier.Close()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB returns the underlying BoltDB instance for advanced operations.
func (s *Store) DB() *bolt.DB {
	return s.db
}

// Stats returns database statistics.
func (s *Store) Stats() bolt.Stats {
	return s.db.Stats()
}

var _ database.Store = (*Store)(nil)
