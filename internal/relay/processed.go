package relay

import (
	"sync"

	"github.com/CreditBoost360/CreditBoost-sub002/pkg/hash"
)

// ProcessedSet is the destination-side dedup set for relay messages. It is
// the one piece of shared mutable state in the relay: MarkIfUnseen must be
// an atomic check-and-mark so concurrent deliveries of the same message
// cannot both apply.
type ProcessedSet interface {
	// MarkIfUnseen records id and reports whether this call was the first
	// to see it.
	MarkIfUnseen(id hash.Hash32) (first bool, err error)
	Contains(id hash.Hash32) (bool, error)
	// Remove rolls back a mark whose apply failed, so a later re-delivery
	// can try again.
	Remove(id hash.Hash32) error
}

// MemProcessedSet is the in-memory implementation; one per simulated
// network in tests.
type MemProcessedSet struct {
	mu sync.Mutex
	m  map[hash.Hash32]bool
}

func NewMemProcessedSet() *MemProcessedSet {
	return &MemProcessedSet{m: make(map[hash.Hash32]bool)}
}

func (s *MemProcessedSet) MarkIfUnseen(id hash.Hash32) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m[id] {
		return false, nil
	}
	s.m[id] = true
	return true, nil
}

func (s *MemProcessedSet) Contains(id hash.Hash32) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[id], nil
}

func (s *MemProcessedSet) Remove(id hash.Hash32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, id)
	return nil
}
