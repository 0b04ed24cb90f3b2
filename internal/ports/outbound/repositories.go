// Package outbound defines the interfaces for outbound ports (secondary/driven adapters)
// These are the interfaces that the application uses to interact with external systems
package outbound

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/macrocart/v2/internal/domain/nutrition"
)

// ErrKeyNotFound is returned by KVStore.Get for absent keys. Adapters map
// their backend's own miss signal (redis.Nil and friends) onto it.
var ErrKeyNotFound = errors.New("kv: key not found")

// ErrUpdateContention is returned by KVStore.Update when every allowed
// optimistic attempt lost its race.
var ErrUpdateContention = errors.New("kv: update contention")

// KVStore is the shared key-value service backing the SWR caches, the
// in-flight refresh markers and the cross-instance token buckets.
type KVStore interface {
	// Get returns the value stored under key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key with the given TTL. A zero TTL persists
	// the key until it is deleted.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX stores value only when key is absent and reports whether the
	// write happened. This is the in-flight refresh marker primitive.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Update applies transform to the current value of key under optimistic
	// concurrency control. Transform receives nil when the key is absent;
	// returning a nil next value leaves the key untouched. Contention is
	// retried a bounded number of times by the adapter, after which the
	// call fails.
	Update(ctx context.Context, key string, ttl time.Duration, transform func(current []byte) (next []byte, err error)) error

	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// CanonicalRepository is the read-mostly canonical nutrition store. Rows are
// keyed by normalized ingredient key; the table is reference data loaded at
// startup and queried on the resolution path.
type CanonicalRepository interface {
	// FindByKey returns the row stored under the exact normalized key, or
	// nil when absent.
	FindByKey(ctx context.Context, key string) (*nutrition.Row, error)

	// FindNearest returns the row whose key is closest to key within
	// maxDistance edits, alongside the key it matched. Returns nil when
	// nothing is close enough.
	FindNearest(ctx context.Context, key string, maxDistance int) (*nutrition.Row, string, error)

	// Insert stores a row under key and reports whether it was written.
	// The first writer wins; a later row for the same key is dropped.
	Insert(ctx context.Context, key string, row nutrition.Row) (bool, error)

	Count(ctx context.Context) (int64, error)
}

// DatasetSource fetches the raw canonical dataset for import. Adapters
// exist for S3 objects and local files.
type DatasetSource interface {
	Fetch(ctx context.Context) (io.ReadCloser, error)
}
