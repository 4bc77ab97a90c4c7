package kv

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a store that has been closed.
var ErrClosed = errors.New("kv: store is closed")

// Reader reads a single key.
// A missing key is reported as ok=false with a nil error.
type Reader interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
}

// Txn is a read-write view of the store.
// Inside Update, reads observe the transaction's own pending writes.
type Txn interface {
	Reader
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Store is a durable string key-value store.
//
// The Txn methods on Store itself each run as their own transaction.
// Use Update to group several writes atomically.
type Store interface {
	Txn

	// View runs fn against a consistent read-only view.
	View(ctx context.Context, fn func(Reader) error) error

	// Update runs fn in a transaction. If fn returns an error the
	// transaction is discarded and the error is returned unchanged.
	Update(ctx context.Context, fn func(Txn) error) error

	Close() error
}
