package ledger

import "sync"

// MemStore is the in-memory Store. One instance per simulated network in
// tests; the node uses its RocksDB store instead.
type MemStore struct {
	mu sync.RWMutex
	m  map[string]*Record
}

func NewMemStore() *MemStore {
	return &MemStore{m: make(map[string]*Record)}
}

func (s *MemStore) Get(owner string) (*Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.m[owner]
	if !ok {
		return nil, false, nil
	}
	return rec.Clone(), true, nil
}

func (s *MemStore) Put(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[rec.Owner] = rec.Clone()
	return nil
}
