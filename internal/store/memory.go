package store

import (
	"strings"
	"sync"
)

// MemStore is an in-memory Store used by tests and the CLI's dry-run
// paths. It has the same read-after-write semantics as the SQLite
// implementation.
type MemStore struct {
	mu   sync.RWMutex
	kv   map[string][]byte
	logs map[string][][]byte
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		kv:   make(map[string][]byte),
		logs: make(map[string][][]byte),
	}
}

// Get returns the value stored under key.
func (s *MemStore) Get(key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.kv[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

// Put stores value under key.
func (s *MemStore) Put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	s.kv[key] = v
	return nil
}

// ListByPrefix returns all pairs whose key starts with prefix.
func (s *MemStore) ListByPrefix(prefix string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]byte)
	for k, v := range s.kv {
		if strings.HasPrefix(k, prefix) {
			c := make([]byte, len(v))
			copy(c, v)
			out[k] = c
		}
	}
	return out, nil
}

// Append adds an entry to a log stream.
func (s *MemStore) Append(stream string, entry []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := make([]byte, len(entry))
	copy(e, entry)
	s.logs[stream] = append(s.logs[stream], e)
	return nil
}

// ReadLog returns all entries of a stream in append order.
func (s *MemStore) ReadLog(stream string) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.logs[stream]
	out := make([][]byte, len(entries))
	for i, e := range entries {
		c := make([]byte, len(e))
		copy(c, e)
		out[i] = c
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *MemStore) Close() error { return nil }
