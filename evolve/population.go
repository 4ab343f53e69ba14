// Package evolve implements the generational search over fixed-topology
// genomes: the population, its external fitness table and the trainer.
package evolve

import (
	"errors"
	"fmt"

	"github.com/pthm-cable/dinoevo/neural"
)

// ErrIncomplete is returned when a generation is advanced before every genome
// has a fitness.
var ErrIncomplete = errors.New("evolve: population not fully evaluated")

// Slot identifies one genome position within one generation.
type Slot struct {
	Generation int
	Index      int
}

// FitnessTable holds the fitness of evaluated slots. Fitness is a
// non-negative integer; an absent slot has no fitness yet.
type FitnessTable struct {
	scores map[Slot]int
}

// NewFitnessTable creates an empty table.
func NewFitnessTable() *FitnessTable {
	return &FitnessTable{scores: make(map[Slot]int)}
}

// Set records the fitness of a slot.
func (t *FitnessTable) Set(s Slot, fitness int) error {
	if fitness < 0 {
		return fmt.Errorf("evolve: negative fitness %d for %+v", fitness, s)
	}
	t.scores[s] = fitness
	return nil
}

// Get returns the fitness of a slot and whether it was assigned.
func (t *FitnessTable) Get(s Slot) (int, bool) {
	f, ok := t.scores[s]
	return f, ok
}

// Len returns the number of assigned slots.
func (t *FitnessTable) Len() int {
	return len(t.scores)
}

// Population is one generation of genomes plus their fitness.
type Population struct {
	generation int
	genomes    []*neural.Genome
	fitness    *FitnessTable
}

// NewPopulation creates a population with an empty fitness table. The genome
// slice is copied; genomes themselves are immutable and shared.
func NewPopulation(generation int, genomes []*neural.Genome) *Population {
	return &Population{
		generation: generation,
		genomes:    append([]*neural.Genome(nil), genomes...),
		fitness:    NewFitnessTable(),
	}
}

// Generation returns the generation number.
func (p *Population) Generation() int { return p.generation }

// Len returns the number of genomes.
func (p *Population) Len() int { return len(p.genomes) }

// Genome returns the genome at index i.
func (p *Population) Genome(i int) *neural.Genome { return p.genomes[i] }

// Genomes returns the genomes in population order.
func (p *Population) Genomes() []*neural.Genome {
	return append([]*neural.Genome(nil), p.genomes...)
}

// Slot returns the identity of index i in this generation.
func (p *Population) Slot(i int) Slot {
	return Slot{Generation: p.generation, Index: i}
}

// SetFitness assigns the fitness of index i.
func (p *Population) SetFitness(i, fitness int) error {
	if i < 0 || i >= len(p.genomes) {
		return fmt.Errorf("evolve: index %d out of range [0,%d)", i, len(p.genomes))
	}
	return p.fitness.Set(p.Slot(i), fitness)
}

// Fitness returns the fitness of index i and whether it was assigned.
func (p *Population) Fitness(i int) (int, bool) {
	return p.fitness.Get(p.Slot(i))
}

// Scores returns the fitness of every genome in order; unassigned slots are 0.
func (p *Population) Scores() []int {
	out := make([]int, len(p.genomes))
	for i := range p.genomes {
		out[i], _ = p.Fitness(i)
	}
	return out
}

// Evaluated reports whether every genome has a fitness.
func (p *Population) Evaluated() bool {
	for i := range p.genomes {
		if _, ok := p.Fitness(i); !ok {
			return false
		}
	}
	return true
}

// Best returns the index and fitness of the fittest evaluated genome, or
// (-1, 0) if none has been evaluated. Ties go to the lower index.
func (p *Population) Best() (int, int) {
	best, bestFit := -1, 0
	for i := range p.genomes {
		f, ok := p.Fitness(i)
		if ok && (best < 0 || f > bestFit) {
			best, bestFit = i, f
		}
	}
	return best, bestFit
}

// WithGenomes returns a population of the same generation holding loaded
// genomes: they replace the current ones, or are appended after them. The
// fitness table starts empty in both cases.
func (p *Population) WithGenomes(genomes []*neural.Genome, replace bool) *Population {
	var next []*neural.Genome
	if !replace {
		next = append(next, p.genomes...)
	}
	next = append(next, genomes...)
	return NewPopulation(p.generation, next)
}
