package reorg

import (
	"context"
	"sync"

	"chainscan/internal/model"
)

// BlockStore keeps the recent header window the monitor compares against.
// Implementations must be safe for concurrent use.
type BlockStore interface {
	// Get returns the stored header for a block number.
	Get(ctx context.Context, number uint64) (model.BlockHeader, bool, error)
	// Put stores a header, replacing any previous entry at that height.
	Put(ctx context.Context, header model.BlockHeader) error
	// Delete removes the header at a height, if present.
	Delete(ctx context.Context, number uint64) error
	// LastBlock returns the highest stored block number.
	LastBlock(ctx context.Context) (uint64, bool, error)
	// Prune drops headers strictly below the given height.
	Prune(ctx context.Context, before uint64) error
}

// MemoryStore is the in-process BlockStore.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[uint64]model.BlockHeader
	last uint64
	has  bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[uint64]model.BlockHeader)}
}

func (s *MemoryStore) Get(_ context.Context, number uint64) (model.BlockHeader, bool, error) {
	s.mu.RLock()
	header, ok := s.data[number]
	s.mu.RUnlock()
	return header, ok, nil
}

func (s *MemoryStore) Put(_ context.Context, header model.BlockHeader) error {
	s.mu.Lock()
	s.data[header.Number] = header
	if !s.has || header.Number > s.last {
		s.last = header.Number
		s.has = true
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, number uint64) error {
	s.mu.Lock()
	delete(s.data, number)
	if s.has && number == s.last {
		s.recomputeLastLocked()
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) LastBlock(_ context.Context) (uint64, bool, error) {
	s.mu.RLock()
	last, has := s.last, s.has
	s.mu.RUnlock()
	return last, has, nil
}

func (s *MemoryStore) Prune(_ context.Context, before uint64) error {
	s.mu.Lock()
	for number := range s.data {
		if number < before {
			delete(s.data, number)
		}
	}
	s.recomputeLastLocked()
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) recomputeLastLocked() {
	s.last = 0
	s.has = false
	for number := range s.data {
		if !s.has || number > s.last {
			s.last = number
			s.has = true
		}
	}
}
