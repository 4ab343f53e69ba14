package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/pthm-cable/dinoevo/clock"
	"github.com/pthm-cable/dinoevo/neural"
)

// MemoryStore keeps encoded populations in memory.
type MemoryStore struct {
	layers []int
	clk    clock.Clock

	mu          sync.RWMutex
	initialized bool
	payloads    map[string][]byte
	entries     []Entry
}

func NewMemoryStore(layers []int, clk clock.Clock) *MemoryStore {
	return &MemoryStore{layers: append([]int(nil), layers...), clk: clk}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.payloads = make(map[string][]byte)
	s.entries = nil
	return nil
}

func (s *MemoryStore) Save(_ context.Context, generation int, genomes []*neural.Genome) (Entry, error) {
	data, err := Encode(genomes)
	if err != nil {
		return Entry{}, err
	}
	entry, _ := ParseEntryName(EntryName(generation, s.clk.Now()))

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return Entry{}, fmt.Errorf("store is not initialized")
	}
	if _, exists := s.payloads[entry.Name]; !exists {
		s.entries = append(s.entries, entry)
	}
	s.payloads[entry.Name] = data
	return entry, nil
}

func (s *MemoryStore) List(_ context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]Entry(nil), s.entries...)
	sortEntries(out)
	return out, nil
}

func (s *MemoryStore) Load(_ context.Context, name string) ([]*neural.Genome, error) {
	s.mu.RLock()
	data, ok := s.payloads[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return Decode(data, s.layers)
}
