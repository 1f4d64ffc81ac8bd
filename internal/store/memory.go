package store

import (
	"context"
	"path"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
)

const defaultScanPageSize = 64

// Memory is an in-process KV implementation. It backs tests and local runs
// that have no Redis available. Scans are paged so callers exercise the same
// cursor loop they need against Redis.
type Memory struct {
	// ScanPageSize bounds how many keys a single ScanKeys call returns.
	// Zero means the default.
	ScanPageSize int

	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemory constructs an empty in-memory KV store.
func NewMemory() *Memory {
	return &Memory{items: make(map[string][]byte)}
}

var _ KV = (*Memory)(nil)

// Get returns the value stored under key.
func (s *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.items[key]
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "key: %s", key)
	}

	copied := make([]byte, len(value))
	copy(copied, value)
	return copied, nil
}

// Set stores value under key.
func (s *Memory) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]byte, len(value))
	copy(copied, value)
	s.items[key] = copied
	return nil
}

// Delete removes key.
func (s *Memory) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)
	return nil
}

// ScanKeys returns one page of keys matching the glob pattern. The cursor is
// an offset into the sorted matching key set; zero signals completion, again
// mirroring Redis SCAN.
func (s *Memory) ScanKeys(ctx context.Context, match string, cursor uint64) ([]string, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matching := make([]string, 0, len(s.items))
	for key := range s.items {
		ok, err := path.Match(match, key)
		if err != nil {
			return nil, 0, eris.Wrapf(err, "invalid match pattern: %s", match)
		}
		if ok {
			matching = append(matching, key)
		}
	}
	sort.Strings(matching)

	pageSize := s.ScanPageSize
	if pageSize <= 0 {
		pageSize = defaultScanPageSize
	}

	start := int(cursor)
	if start >= len(matching) {
		return nil, 0, nil
	}

	end := start + pageSize
	if end >= len(matching) {
		return matching[start:], 0, nil
	}
	return matching[start:end], uint64(end), nil
}
