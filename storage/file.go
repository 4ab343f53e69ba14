package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/pthm-cable/dinoevo/clock"
	"github.com/pthm-cable/dinoevo/neural"
)

// FileStore keeps one JSON file per saved population in a directory.
type FileStore struct {
	dir    string
	layers []int
	clk    clock.Clock
}

func NewFileStore(dir string, layers []int, clk clock.Clock) *FileStore {
	return &FileStore{dir: dir, layers: append([]int(nil), layers...), clk: clk}
}

func (s *FileStore) Init(_ context.Context) error {
	if s.dir == "" {
		return errors.New("storage directory is required")
	}
	return os.MkdirAll(s.dir, 0755)
}

func (s *FileStore) Save(_ context.Context, generation int, genomes []*neural.Genome) (Entry, error) {
	data, err := Encode(genomes)
	if err != nil {
		return Entry{}, err
	}
	entry, _ := ParseEntryName(EntryName(generation, s.clk.Now()))
	if err := os.WriteFile(filepath.Join(s.dir, entry.Name), data, 0644); err != nil {
		return Entry{}, fmt.Errorf("write population: %w", err)
	}
	return entry, nil
}

// List returns saved populations, oldest first.
func (s *FileStore) List(_ context.Context) ([]Entry, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var entries []Entry
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		if e, ok := ParseEntryName(f.Name()); ok {
			entries = append(entries, e)
		}
	}
	sortEntries(entries)
	return entries, nil
}

func (s *FileStore) Load(_ context.Context, name string) ([]*neural.Genome, error) {
	if name != filepath.Base(name) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, err
	}
	genomes, err := Decode(data, s.layers)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return genomes, nil
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].SavedAt.Equal(entries[j].SavedAt) {
			return entries[i].SavedAt.Before(entries[j].SavedAt)
		}
		return entries[i].Generation < entries[j].Generation
	})
}
