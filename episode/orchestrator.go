// Package episode serializes genome evaluation across game episodes: one genome
// is bound to the game at a time, its fitness is the episode score, and the
// trainer advances the population once every genome has played.
package episode

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/pthm-cable/dinoevo/clock"
	"github.com/pthm-cable/dinoevo/config"
	"github.com/pthm-cable/dinoevo/control"
	"github.com/pthm-cable/dinoevo/evolve"
	"github.com/pthm-cable/dinoevo/neural"
)

// ErrLearning is returned by operations that need learning to be halted.
var ErrLearning = errors.New("episode: learning in progress")

// Game is the part of a session the orchestrator drives.
// *session.Session implements it.
type Game interface {
	StartNewGame(next func())
	OnGameEnd(fn func(score int))
	OnSensorData(fn func())
	Inputs() []float64
	SetOutput(v float64)
	Thresholds() control.Thresholds
}

// State is the orchestrator phase.
type State uint8

const (
	StateIdle State = iota
	StateAwaitingStart
	StateRunning
	StateComplete
	StateEvolve
)

func (s State) String() string {
	switch s {
	case StateAwaitingStart:
		return "AWAITING_START"
	case StateRunning:
		return "RUNNING"
	case StateComplete:
		return "COMPLETE"
	case StateEvolve:
		return "EVOLVE"
	default:
		return "IDLE"
	}
}

// EpisodeResult describes one finished (or skipped) genome evaluation.
type EpisodeResult struct {
	Generation int
	Index      int
	Fitness    int
	Skipped    bool // Failed the experience gate
	Duration   time.Duration
	Genome     *neural.Genome
}

// GenerationResult describes one fully evaluated generation.
type GenerationResult struct {
	Generation int
	Population *evolve.Population // Evaluated population, fitness included
	Best       int                // Index of the fittest genome
	Duration   time.Duration
}

// Status is a read-only view of the orchestrator for dashboards.
type Status struct {
	Learning   bool
	State      State
	Generation int
	Index      int
	Size       int
	Output     float64
}

// Orchestrator runs the generational loop on the scheduler goroutine. Every
// method except Stop and StopRequested must be called from that goroutine.
type Orchestrator struct {
	game    Game
	trainer *evolve.Trainer
	clk     clock.Clock
	cfg     config.TrainerConfig

	pop      *evolve.Population
	state    State
	learning bool
	stop     atomic.Bool

	index        int
	active       *neural.Genome
	output       float64
	episodeStart time.Time
	genStart     time.Time
	advanced     int

	onEpisode    []func(EpisodeResult)
	onGeneration []func(GenerationResult)
	onHalt       []func()
}

// New creates an orchestrator over an initial population.
func New(game Game, trainer *evolve.Trainer, pop *evolve.Population, clk clock.Clock) *Orchestrator {
	return &Orchestrator{
		game:    game,
		trainer: trainer,
		clk:     clk,
		cfg:     trainer.Config(),
		pop:     pop,
	}
}

// OnEpisode registers an observer called after every genome evaluation.
func (o *Orchestrator) OnEpisode(fn func(EpisodeResult)) {
	o.onEpisode = append(o.onEpisode, fn)
}

// OnGeneration registers an observer called after every evaluated generation,
// before the trainer advances it.
func (o *Orchestrator) OnGeneration(fn func(GenerationResult)) {
	o.onGeneration = append(o.onGeneration, fn)
}

// OnHalt registers an observer called when learning stops.
func (o *Orchestrator) OnHalt(fn func()) {
	o.onHalt = append(o.onHalt, fn)
}

// Start begins learning. Missing genomes are filled with random ones and the
// current generation is evaluated from its first genome.
func (o *Orchestrator) Start() {
	o.stop.Store(false)
	if o.learning {
		return
	}
	o.learning = true
	o.pop = o.trainer.Fill(o.pop)
	o.startGeneration()
}

// Stop requests a halt. It is safe to call from any goroutine and takes effect
// at the next generation or genome start; a running episode finishes.
func (o *Orchestrator) Stop() {
	o.stop.Store(true)
}

// StopRequested reports whether a halt is pending or in effect.
func (o *Orchestrator) StopRequested() bool {
	return o.stop.Load()
}

// Learning reports whether the generational loop is active.
func (o *Orchestrator) Learning() bool {
	return o.learning
}

// Population returns the current population.
func (o *Orchestrator) Population() *evolve.Population {
	return o.pop
}

// Generations returns the number of completed generation advances.
func (o *Orchestrator) Generations() int {
	return o.advanced
}

// Load installs genomes into the population, replacing or appending. It fails
// while learning.
func (o *Orchestrator) Load(genomes []*neural.Genome, replace bool) error {
	if o.learning {
		return ErrLearning
	}
	o.pop = o.pop.WithGenomes(genomes, replace)
	slog.Info("genomes_loaded", "count", len(genomes), "replace", replace, "size", o.pop.Len())
	return nil
}

// Status returns a copy of the orchestrator state.
func (o *Orchestrator) Status() Status {
	return Status{
		Learning:   o.learning,
		State:      o.state,
		Generation: o.pop.Generation(),
		Index:      o.index,
		Size:       o.pop.Len(),
		Output:     o.output,
	}
}

// beginGeneration applies the generation-start checks and resets the
// evaluation cursor. It returns false if learning halted.
func (o *Orchestrator) beginGeneration() bool {
	if o.stop.Load() {
		o.halt()
		return false
	}
	if o.cfg.MaxGenerations > 0 && o.advanced >= o.cfg.MaxGenerations {
		slog.Info("max_generations_reached", "generations", o.advanced)
		o.halt()
		return false
	}

	// A restarted generation is evaluated from scratch.
	if o.index > 0 || o.pop.Evaluated() {
		o.pop = evolve.NewPopulation(o.pop.Generation(), o.pop.Genomes())
	}
	o.index = 0
	o.genStart = o.clk.Now()
	slog.Info("generation_start", "generation", o.pop.Generation(), "size", o.pop.Len())
	return true
}

func (o *Orchestrator) startGeneration() {
	if o.beginGeneration() {
		o.nextGenome()
	}
}

// nextGenome evaluates genomes from the cursor on. Skipped genomes and
// generation boundaries are handled in place; it returns once an episode has
// been requested or learning halted.
func (o *Orchestrator) nextGenome() {
	for {
		if o.stop.Load() {
			o.halt()
			return
		}
		if o.index >= o.pop.Len() {
			if !o.evolve() || !o.beginGeneration() {
				return
			}
			continue
		}

		g := o.pop.Genome(o.index)
		if o.cfg.CheckExperience && !evolve.HasExperience(g, o.game.Thresholds()) {
			o.record(0, true)
			o.index++
			continue
		}

		o.active = g
		o.state = StateAwaitingStart
		o.game.StartNewGame(o.beginEpisode)
		return
	}
}

func (o *Orchestrator) beginEpisode() {
	o.state = StateRunning
	o.episodeStart = o.clk.Now()
	o.game.OnSensorData(o.tick)
	o.game.OnGameEnd(o.endEpisode)
}

// tick applies the active genome to the latest inputs and re-arms itself.
func (o *Orchestrator) tick() {
	if o.state != StateRunning {
		return
	}
	out := o.active.Activate(o.game.Inputs())
	o.output = out[0]
	o.game.SetOutput(o.output)
	o.game.OnSensorData(o.tick)
}

func (o *Orchestrator) endEpisode(score int) {
	o.game.OnSensorData(nil)
	o.state = StateComplete
	o.record(score, false)

	o.active = nil
	o.output = 0
	o.index++
	o.state = StateIdle
	o.nextGenome()
}

func (o *Orchestrator) record(fitness int, skipped bool) {
	if err := o.pop.SetFitness(o.index, fitness); err != nil {
		slog.Error("fitness rejected", "index", o.index, "error", err)
	}

	res := EpisodeResult{
		Generation: o.pop.Generation(),
		Index:      o.index,
		Fitness:    fitness,
		Skipped:    skipped,
		Genome:     o.pop.Genome(o.index),
	}
	if !skipped {
		res.Duration = o.clk.Now().Sub(o.episodeStart)
	}
	slog.Debug("episode_end",
		"generation", res.Generation,
		"genome", res.Index,
		"fitness", res.Fitness,
		"skipped", res.Skipped,
	)
	for _, fn := range o.onEpisode {
		fn(res)
	}
}

// evolve reports the evaluated generation and replaces it with the next one.
func (o *Orchestrator) evolve() bool {
	o.state = StateEvolve
	best, bestFit := o.pop.Best()
	res := GenerationResult{
		Generation: o.pop.Generation(),
		Population: o.pop,
		Best:       best,
		Duration:   o.clk.Now().Sub(o.genStart),
	}
	slog.Info("generation_complete",
		"generation", res.Generation,
		"fitness", o.pop.Scores(),
		"best", bestFit,
		"duration", res.Duration,
	)
	for _, fn := range o.onGeneration {
		fn(res)
	}

	next, err := o.trainer.Advance(o.pop)
	if err != nil {
		slog.Error("advance failed", "error", err)
		o.halt()
		return false
	}
	o.pop = next
	o.advanced++
	o.index = 0
	o.state = StateIdle
	return true
}

func (o *Orchestrator) halt() {
	o.state = StateIdle
	o.active = nil
	if !o.learning {
		return
	}
	o.learning = false
	slog.Info("learning_stopped", "generation", o.pop.Generation(), "genome", o.index)
	for _, fn := range o.onHalt {
		fn()
	}
}
