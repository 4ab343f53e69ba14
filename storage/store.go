package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/pthm-cable/dinoevo/neural"
)

// Entry describes one saved population.
type Entry struct {
	Name       string
	Generation int
	SavedAt    time.Time
}

// Store saves and loads populations.
type Store interface {
	Init(ctx context.Context) error
	Save(ctx context.Context, generation int, genomes []*neural.Genome) (Entry, error)
	List(ctx context.Context) ([]Entry, error)
	Load(ctx context.Context, name string) ([]*neural.Genome, error)
}

// EntryName returns the name a population is saved under.
func EntryName(generation int, at time.Time) string {
	return fmt.Sprintf("gen_%d_%d.json", generation, at.UnixMilli())
}

// ParseEntryName reverses EntryName.
func ParseEntryName(name string) (Entry, bool) {
	var gen int
	var ms int64
	if _, err := fmt.Sscanf(name, "gen_%d_%d.json", &gen, &ms); err != nil {
		return Entry{}, false
	}
	if EntryName(gen, time.UnixMilli(ms)) != name {
		return Entry{}, false
	}
	return Entry{Name: name, Generation: gen, SavedAt: time.UnixMilli(ms)}, true
}
