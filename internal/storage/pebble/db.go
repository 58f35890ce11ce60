// Package pebblestore wraps a Pebble database for the ops journal. Commits
// always sync the WAL: the journal is small and written rarely, so
// durability wins over throughput here.
package pebblestore

import (
	"context"
	"errors"

	"github.com/cockroachdb/pebble"
)

// DB wraps a Pebble database instance with basic helpers.
type DB struct {
	inner *pebble.DB
}

// Open creates or opens a Pebble database at dataDir.
func Open(dataDir string) (*DB, error) {
	if dataDir == "" {
		return nil, errors.New("pebble: dataDir is required")
	}
	inner, err := pebble.Open(dataDir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &DB{inner: inner}, nil
}

// Close closes the Pebble database.
func (db *DB) Close() error {
	if db == nil || db.inner == nil {
		return nil
	}
	return db.inner.Close()
}

// NewBatch creates a new batch for atomic multi-key updates.
func (db *DB) NewBatch() *pebble.Batch {
	return db.inner.NewBatch()
}

// CommitBatch commits the provided batch with a synced WAL.
func (db *DB) CommitBatch(_ context.Context, b *pebble.Batch) error {
	if b == nil {
		return errors.New("pebble: nil batch")
	}
	return b.Commit(pebble.Sync)
}

// Set writes a single key with a synced WAL.
func (db *DB) Set(key, value []byte) error {
	b := db.inner.NewBatch()
	defer b.Close()
	if err := b.Set(key, value, nil); err != nil {
		return err
	}
	return db.CommitBatch(context.Background(), b)
}

// Get copies the value for the given key.
func (db *DB) Get(key []byte) ([]byte, error) {
	val, closer, err := db.inner.Get(key)
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), val...), nil
}

// NewIter creates a raw Pebble iterator with the provided options.
func (db *DB) NewIter(opts *pebble.IterOptions) (*pebble.Iterator, error) {
	return db.inner.NewIter(opts)
}
