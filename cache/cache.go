// Package cache stores tempo maps content-addressed by file checksum,
// algorithm and configuration hash.
package cache

import (
	"sync"
	"time"

	"github.com/tempograph/tempograph/tempomap"
)

// Key addresses one cached analysis. Changing the file (new checksum) or
// the configuration (new hash) misses naturally; entries are never
// invalidated on time alone.
type Key struct {
	Checksum   string
	Algorithm  string
	ConfigHash string
}

// Store is the cache contract. Implementations must be safe for concurrent
// use from the batch worker pool; duplicate writes for the same key are
// idempotent (last write wins, the maps are deterministic for equal inputs).
type Store interface {
	Get(key Key) (*tempomap.TempoMap, bool)
	Put(key Key, tm *tempomap.TempoMap) error
}

type entry struct {
	tm      *tempomap.TempoMap
	created time.Time
}

// Memory is an in-process Store.
type Memory struct {
	mu      sync.RWMutex
	entries map[Key]entry
}

// NewMemory builds an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[Key]entry)}
}

// Get implements Store.
func (m *Memory) Get(key Key) (*tempomap.TempoMap, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	return e.tm, true
}

// Put implements Store.
func (m *Memory) Put(key Key, tm *tempomap.TempoMap) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{tm: tm, created: time.Now()}
	return nil
}

// Len reports the number of cached entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
