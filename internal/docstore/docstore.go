// Package docstore keeps KYC documents off-ledger, addressed by content
// hash. The ledger only ever carries the hash; the bytes live here.
package docstore

import (
	"errors"
	"sync"

	"github.com/CreditBoost360/CreditBoost-sub002/pkg/hash"
)

var ErrDocNotFound = errors.New("document not found")

type Store interface {
	// Put stores the document and returns its content hash. Storing the
	// same bytes twice is a no-op returning the same hash.
	Put(doc []byte) (hash.Hash32, error)
	Get(contentHash hash.Hash32) ([]byte, error)
}

type MemStore struct {
	mu   sync.RWMutex
	docs map[hash.Hash32][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{docs: make(map[hash.Hash32][]byte)}
}

func (s *MemStore) Put(doc []byte) (hash.Hash32, error) {
	h := hash.Sum(doc)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[h]; !ok {
		s.docs[h] = append([]byte(nil), doc...)
	}
	return h, nil
}

func (s *MemStore) Get(contentHash hash.Hash32) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[contentHash]
	if !ok {
		return nil, ErrDocNotFound
	}
	return append([]byte(nil), doc...), nil
}
