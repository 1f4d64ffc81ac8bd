package store

import (
	"context"

	"github.com/rotisserie/eris"
)

// ErrNotFound indicates the requested key has no stored record.
var ErrNotFound = eris.New("record not found")

// KV is the persistence contract used by the catalog repository. Backends
// expose a cursor-paged key scan; callers drive the cursor until it returns
// zero, the way Redis SCAN works.
type KV interface {
	// Get returns the value stored under key, or an error wrapping
	// ErrNotFound when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// ScanKeys returns one page of keys matching the glob pattern along
	// with the cursor for the next page. A returned cursor of zero means
	// the scan is complete.
	ScanKeys(ctx context.Context, match string, cursor uint64) ([]string, uint64, error)
}
