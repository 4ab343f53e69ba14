package main

import (
	"context"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/dinoevo/agent"
	"github.com/pthm-cable/dinoevo/clock"
	"github.com/pthm-cable/dinoevo/config"
	"github.com/pthm-cable/dinoevo/telemetry"
)

// FitnessEvaluator runs fast headless training runs and computes fitness.
type FitnessEvaluator struct {
	params      *ParamVector
	configPath  string
	generations int
	maxVirtual  time.Duration
	seeds       []int64

	// Best run tracking
	mu             sync.Mutex
	bestFitness    float64
	bestHallOfFame *telemetry.HallOfFame
	lastQuality    float64 // quality from most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator. Each run trains for the given
// number of generations, capped at maxVirtual of game time.
func NewFitnessEvaluator(params *ParamVector, configPath string, generations int, maxVirtual time.Duration, seeds []int64) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		configPath:  configPath,
		generations: generations,
		maxVirtual:  maxVirtual,
		seeds:       seeds,
		bestFitness: math.Inf(1),
	}
}

// BestHallOfFame returns the hall of fame from the best evaluation.
func (fe *FitnessEvaluator) BestHallOfFame() *telemetry.HallOfFame {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestHallOfFame
}

// LastQuality returns the quality score from the most recent evaluation.
func (fe *FitnessEvaluator) LastQuality() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastQuality
}

// runResult holds the results from a single training run.
type runResult struct {
	best        int // best episode fitness of the run
	generations []telemetry.GenerationStats
	hallOfFame  *telemetry.HallOfFame
	err         error
}

// seedResult holds the result from one seed evaluation.
type seedResult struct {
	fitness    float64
	quality    float64
	hallOfFame *telemetry.HallOfFame
}

// Evaluate computes fitness for a parameter vector (lower = better).
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]seedResult, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			result := fe.runTraining(x, s)
			results[idx] = seedResult{
				fitness:    fe.computeFitness(result),
				quality:    computeQuality(result.generations),
				hallOfFame: result.hallOfFame,
			}
		}(i, seed)
	}
	wg.Wait()

	// Aggregate results
	var totalFitness, totalQuality float64
	bestSeedFitness := math.Inf(1)
	var bestSeedHallOfFame *telemetry.HallOfFame

	for _, r := range results {
		totalFitness += r.fitness
		totalQuality += r.quality
		if r.fitness < bestSeedFitness {
			bestSeedFitness = r.fitness
			bestSeedHallOfFame = r.hallOfFame
		}
	}

	n := float64(len(fe.seeds))
	avgFitness := totalFitness / n

	fe.mu.Lock()
	if avgFitness < fe.bestFitness {
		fe.bestFitness = avgFitness
		fe.bestHallOfFame = bestSeedHallOfFame
	}
	fe.lastQuality = totalQuality / n
	fe.mu.Unlock()

	return avgFitness
}

// runTraining executes one fast training run in virtual time.
func (fe *FitnessEvaluator) runTraining(x []float64, seed int64) *runResult {
	result := &runResult{}

	cfg, err := config.Load(fe.configPath)
	if err != nil {
		result.err = err
		return result
	}
	fe.params.ApplyToConfig(cfg, x)
	cfg.Trainer.MaxGenerations = fe.generations
	cfg.Storage.Backend = "memory"
	cfg.Storage.Autosave = false

	clk := clock.NewManual(time.Unix(0, 0))
	a, err := agent.New(context.Background(), clk, agent.Options{Config: cfg, Seed: seed, AutoStart: true})
	if err != nil {
		result.err = err
		return result
	}
	defer a.Close()

	a.OnGenerationStats(func(s telemetry.GenerationStats) {
		result.generations = append(result.generations, s)
	})
	a.Start()
	clk.AdvanceUntil(time.Second, fe.maxVirtual, func() bool { return !a.Learning() })

	result.best = a.Best()
	result.hallOfFame = a.HallOfFame()
	return result
}

// computeFitness calculates the scalar fitness (lower = better).
// Formula: -((best + meanOfLastGeneration) × (1.0 + 0.2 × quality))
// The best score dominates; steady improvement adds up to 20%.
func (fe *FitnessEvaluator) computeFitness(r *runResult) float64 {
	if r.err != nil || len(r.generations) == 0 {
		return 0
	}
	last := r.generations[len(r.generations)-1]
	score := float64(r.best) + last.Mean
	return -(score * (1.0 + 0.2*computeQuality(r.generations)))
}

// computeQuality rates learning progress in [0, 1] from the slope of the
// per-generation mean fitness.
func computeQuality(gens []telemetry.GenerationStats) float64 {
	if len(gens) < 2 {
		return 0
	}
	xs := make([]float64, len(gens))
	ys := make([]float64, len(gens))
	for i, g := range gens {
		xs[i] = float64(i)
		ys[i] = g.Mean
	}
	_, slope := stat.LinearRegression(xs, ys, nil, false)
	if slope <= 0 || math.IsNaN(slope) {
		return 0
	}
	return 1 - math.Exp(-slope)
}
