package evolve

import (
	"fmt"
	"sort"

	"github.com/pthm-cable/dinoevo/config"
	"github.com/pthm-cable/dinoevo/control"
	"github.com/pthm-cable/dinoevo/neural"
)

// Source is the random source used by the trainer. *rand.Rand satisfies it.
type Source interface {
	Float64() float64
	Intn(n int) int
}

// Trainer produces generations: random initialization, elitist selection,
// bias crossover and parameter mutation.
type Trainer struct {
	cfg       config.TrainerConfig
	layers    []int
	initRange float64
	rng       Source
}

// NewTrainer creates a trainer. Parameters are used as given.
func NewTrainer(cfg config.TrainerConfig, net config.NetworkConfig, rng Source) *Trainer {
	return &Trainer{
		cfg:       cfg,
		layers:    append([]int(nil), net.Layers...),
		initRange: net.InitRange,
		rng:       rng,
	}
}

// Config returns the trainer parameters.
func (t *Trainer) Config() config.TrainerConfig { return t.cfg }

// Layers returns the genome topology.
func (t *Trainer) Layers() []int { return append([]int(nil), t.layers...) }

// NewPopulation creates generation 0 with GenomeUnits random genomes.
func (t *Trainer) NewPopulation() *Population {
	return t.Fill(NewPopulation(0, nil))
}

// Select returns the top Selection genomes by fitness, descending. Equal
// fitness keeps population order.
func (t *Trainer) Select(p *Population) []*neural.Genome {
	order := make([]int, p.Len())
	for i := range order {
		order[i] = i
	}
	scores := p.Scores()
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	n := min(t.cfg.Selection, len(order))
	elite := make([]*neural.Genome, n)
	for i := range elite {
		elite[i] = p.Genome(order[i])
	}
	return elite
}

// Advance builds the next generation from an evaluated population: the elite,
// then mutated crossover offspring up to GenomeUnits-MutationReserve, then
// mutation-only offspring up to GenomeUnits.
func (t *Trainer) Advance(p *Population) (*Population, error) {
	if !p.Evaluated() {
		return nil, fmt.Errorf("advance generation %d: %w", p.Generation(), ErrIncomplete)
	}
	elite := t.Select(p)
	if len(elite) == 0 {
		return nil, fmt.Errorf("advance generation %d: empty elite (selection=%d, size=%d)",
			p.Generation(), t.cfg.Selection, p.Len())
	}

	next := elite
	for len(next) < t.cfg.GenomeUnits-t.cfg.MutationReserve {
		a := elite[t.rng.Intn(len(elite))]
		b := elite[t.rng.Intn(len(elite))]
		next = append(next, t.Mutate(t.Crossover(a, b)))
	}
	for len(next) < t.cfg.GenomeUnits {
		next = append(next, t.Mutate(elite[t.rng.Intn(len(elite))]))
	}
	return NewPopulation(p.Generation()+1, next), nil
}

// Crossover swaps parent roles with probability 0.5, picks a cut uniformly in
// [0, len(neurons)] and returns CrossoverAt.
func (t *Trainer) Crossover(a, b *neural.Genome) *neural.Genome {
	if t.rng.Float64() < 0.5 {
		a, b = b, a
	}
	cut := t.rng.Intn(a.NumNeurons() + 1)
	return CrossoverAt(a, b, cut)
}

// CrossoverAt returns a copy of a whose biases at indices >= cut come from b.
// Weights are a's.
func CrossoverAt(a, b *neural.Genome, cut int) *neural.Genome {
	neurons := a.Neurons()
	donor := b.Neurons()
	for i := max(cut, 0); i < len(neurons) && i < len(donor); i++ {
		neurons[i].Bias = donor[i].Bias
	}
	return neural.MustNew(a.Layers(), neurons, a.Connections())
}

// Mutate returns a copy of g where each bias, then each weight, is perturbed
// with probability MutationProb by v += v*(r1-0.5)*3 + (r2-0.5).
func (t *Trainer) Mutate(g *neural.Genome) *neural.Genome {
	neurons := g.Neurons()
	for i := range neurons {
		neurons[i].Bias = t.perturb(neurons[i].Bias)
	}
	conns := g.Connections()
	for i := range conns {
		conns[i].Weight = t.perturb(conns[i].Weight)
	}
	return neural.MustNew(g.Layers(), neurons, conns)
}

func (t *Trainer) perturb(v float64) float64 {
	if t.rng.Float64() >= t.cfg.MutationProb {
		return v
	}
	r1 := t.rng.Float64()
	r2 := t.rng.Float64()
	return v + v*(r1-0.5)*3 + (r2-0.5)
}

// Experience probe inputs: distance sweeps 0.0..1.0, size and speed are fixed.
const (
	probeSize  = 0.3
	probeSpeed = 0.2
	probeSteps = 10
)

// HasExperience reports whether g produces more than one discrete action over
// the distance sweep. A genome that always does the same thing is not worth an
// episode.
func HasExperience(g *neural.Genome, th control.Thresholds) bool {
	var first control.Action
	for k := 0; k <= probeSteps; k++ {
		out := g.Activate([]float64{float64(k) / probeSteps, probeSize, probeSpeed})
		a := th.Discretize(out[0])
		if k == 0 {
			first = a
		} else if a != first {
			return true
		}
	}
	return false
}

// Fill returns p topped up to GenomeUnits with random genomes, or p itself if
// it is already full.
func (t *Trainer) Fill(p *Population) *Population {
	if p.Len() >= t.cfg.GenomeUnits {
		return p
	}
	genomes := p.Genomes()
	for len(genomes) < t.cfg.GenomeUnits {
		genomes = append(genomes, neural.Random(t.layers, t.rng, t.initRange))
	}
	return NewPopulation(p.Generation(), genomes)
}
