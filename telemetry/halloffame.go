package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/pthm-cable/dinoevo/neural"
	"github.com/pthm-cable/dinoevo/storage"
)

// HallEntry is one of the fittest genomes seen during a run.
type HallEntry struct {
	Genome     *neural.Genome
	Fitness    int
	Generation int
	Index      int
}

// HallOfFame keeps the top genomes across generations, best first.
type HallOfFame struct {
	entries []HallEntry
	maxSize int
}

// NewHallOfFame creates a hall with the given capacity.
func NewHallOfFame(maxSize int) *HallOfFame {
	if maxSize < 1 {
		maxSize = 1
	}
	return &HallOfFame{entries: make([]HallEntry, 0, maxSize), maxSize: maxSize}
}

// Consider offers an evaluated genome. Genomes that scored nothing never
// qualify. Returns true if the entry was added.
func (hof *HallOfFame) Consider(entry HallEntry) bool {
	if entry.Fitness <= 0 || entry.Genome == nil {
		return false
	}
	for _, e := range hof.entries {
		if e.Genome.Equal(entry.Genome) {
			return false
		}
	}
	var added bool
	hof.entries, added = hof.insertEntry(hof.entries, entry)
	return added
}

// insertEntry adds an entry to the hall, maintaining sorted order by fitness.
// If the hall is full, the lowest-fitness entry is removed.
func (hof *HallOfFame) insertEntry(hall []HallEntry, entry HallEntry) ([]HallEntry, bool) {
	// Find insertion point (sorted descending by fitness, older first on ties)
	idx := sort.Search(len(hall), func(i int) bool {
		return hall[i].Fitness < entry.Fitness
	})

	// If hall is full and entry would be last (lowest), skip it
	if len(hall) >= hof.maxSize && idx >= hof.maxSize {
		return hall, false
	}

	hall = append(hall, HallEntry{})
	copy(hall[idx+1:], hall[idx:])
	hall[idx] = entry

	if len(hall) > hof.maxSize {
		hall = hall[:hof.maxSize]
	}
	return hall, true
}

// Size returns the number of entries.
func (hof *HallOfFame) Size() int {
	return len(hof.entries)
}

// TopFitness returns the highest fitness in the hall, 0 if empty.
func (hof *HallOfFame) TopFitness() int {
	if len(hof.entries) == 0 {
		return 0
	}
	return hof.entries[0].Fitness
}

// Entries returns a copy of the entries, best first.
func (hof *HallOfFame) Entries() []HallEntry {
	return append([]HallEntry(nil), hof.entries...)
}

// Genomes returns the hall genomes, best first.
func (hof *HallOfFame) Genomes() []*neural.Genome {
	out := make([]*neural.Genome, len(hof.entries))
	for i, e := range hof.entries {
		out[i] = e.Genome
	}
	return out
}

// hallEntryJSON is the JSON-serializable representation of a hall entry.
type hallEntryJSON struct {
	Fitness    int              `json:"fitness"`
	Generation int              `json:"generation"`
	Index      int              `json:"index"`
	Genome     storage.Document `json:"genome"`
}

// MarshalJSON serializes the hall of fame to JSON.
func (hof *HallOfFame) MarshalJSON() ([]byte, error) {
	export := make([]hallEntryJSON, len(hof.entries))
	for i, e := range hof.entries {
		export[i] = hallEntryJSON{
			Fitness:    e.Fitness,
			Generation: e.Generation,
			Index:      e.Index,
			Genome:     storage.FromGenome(e.Genome),
		}
	}
	return json.MarshalIndent(export, "", "  ")
}

// LoadHallOfFameFromFile reads a hall of fame JSON file. Genomes are validated
// against layers.
func LoadHallOfFameFromFile(path string, layers []int) (*HallOfFame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading hall of fame: %w", err)
	}

	var raw []hallEntryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing hall of fame JSON: %w", err)
	}

	hof := NewHallOfFame(max(len(raw), 1))
	for i, ej := range raw {
		g, err := ej.Genome.Genome(layers)
		if err != nil {
			return nil, fmt.Errorf("hall of fame entry %d: %w", i, err)
		}
		hof.entries, _ = hof.insertEntry(hof.entries, HallEntry{
			Genome:     g,
			Fitness:    ej.Fitness,
			Generation: ej.Generation,
			Index:      ej.Index,
		})
	}
	return hof, nil
}
