// Package agent wires the simulated game, perception session, trainer,
// storage and telemetry into one training run.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/google/uuid"

	"github.com/pthm-cable/dinoevo/clock"
	"github.com/pthm-cable/dinoevo/config"
	"github.com/pthm-cable/dinoevo/dashboard"
	"github.com/pthm-cable/dinoevo/episode"
	"github.com/pthm-cable/dinoevo/evolve"
	"github.com/pthm-cable/dinoevo/session"
	"github.com/pthm-cable/dinoevo/sim"
	"github.com/pthm-cable/dinoevo/storage"
	"github.com/pthm-cable/dinoevo/telemetry"
	"github.com/pthm-cable/dinoevo/vision"
)

// Options configures a training run.
type Options struct {
	Config     *config.Config
	Seed       int64
	OutputDir  string // empty = no experiment output
	Load       string // stored population to install before learning
	HallOfFame string // hall_of_fame.json whose genomes seed the population
	Replace    bool   // loaded genomes replace the population instead of joining it
	AutoStart  bool
}

// Agent owns every component of a run. Apart from the constructor and Close,
// its methods must run on the scheduler goroutine.
type Agent struct {
	cfg   *config.Config
	sched clock.Scheduler
	runID string
	seed  int64

	game    *sim.Game
	session *session.Session
	orch    *episode.Orchestrator
	store   storage.Store

	output    *telemetry.OutputManager
	hof       *telemetry.HallOfFame
	bookmarks *telemetry.BookmarkDetector
	perf      *telemetry.PerfCollector

	best      int
	skipped   int
	lastSave  string
	autoStart bool

	onStats []func(telemetry.GenerationStats)
}

// New builds an agent on sched. It fails if the game viewport cannot be
// located or a requested population cannot be loaded.
func New(ctx context.Context, sched clock.Scheduler, opts Options) (*Agent, error) {
	cfg := opts.Config
	if cfg == nil {
		var err error
		if cfg, err = config.Load(""); err != nil {
			return nil, err
		}
	}

	a := &Agent{
		cfg:       cfg,
		sched:     sched,
		runID:     uuid.NewString(),
		seed:      opts.Seed,
		hof:       telemetry.NewHallOfFame(cfg.Telemetry.HallOfFameSize),
		bookmarks: telemetry.NewBookmarkDetector(10),
		perf:      telemetry.NewPerfCollector(0),
		autoStart: opts.AutoStart,
	}

	a.game = sim.New(cfg, opts.Seed)
	vp, err := vision.Locate(a.game, cfg.Derived.ObstacleColor, cfg.Perception.Locate)
	if err != nil {
		return nil, fmt.Errorf("locating game: %w", err)
	}
	slog.Info("viewport_located", "origin", vp.Origin, "width", vp.Width)

	a.session = session.New(a.game, vp, sched, a.game, cfg)

	rng := rand.New(rand.NewSource(opts.Seed))
	trainer := evolve.NewTrainer(cfg.Trainer, cfg.Network, rng)
	a.orch = episode.New(a.session, trainer, evolve.NewPopulation(0, nil), sched)
	a.orch.OnEpisode(a.recordEpisode)
	a.orch.OnGeneration(a.recordGeneration)
	a.orch.OnHalt(a.halted)

	a.store, err = storage.NewStore(cfg.Storage, cfg.Network.Layers, sched)
	if err != nil {
		return nil, err
	}
	if err := a.store.Init(ctx); err != nil {
		storage.CloseIfSupported(a.store)
		return nil, fmt.Errorf("initializing storage: %w", err)
	}

	a.output, err = telemetry.NewOutputManager(opts.OutputDir, a.runID)
	if err != nil {
		a.Close()
		return nil, err
	}
	if err := a.output.WriteConfig(cfg); err != nil {
		slog.Error("failed to write config", "error", err)
	}
	if err := a.output.WriteRunInfo(opts.Seed); err != nil {
		slog.Error("failed to write run info", "error", err)
	}

	if err := a.loadInitial(ctx, opts); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *Agent) loadInitial(ctx context.Context, opts Options) error {
	replace := opts.Replace
	if opts.Load != "" {
		genomes, err := a.store.Load(ctx, opts.Load)
		if err != nil {
			return fmt.Errorf("loading population %s: %w", opts.Load, err)
		}
		if err := a.orch.Load(genomes, replace); err != nil {
			return err
		}
		replace = false
	}
	if opts.HallOfFame != "" {
		hof, err := telemetry.LoadHallOfFameFromFile(opts.HallOfFame, a.cfg.Network.Layers)
		if err != nil {
			return err
		}
		if err := a.orch.Load(hof.Genomes(), replace); err != nil {
			return err
		}
	}
	return nil
}

// Start registers the game, perception and state jobs, focuses the game and
// optionally begins learning.
func (a *Agent) Start() {
	a.game.Start(a.sched, a.perf.Wrap)
	a.session.Start(a.perf.Wrap)
	a.game.Click(a.session.Viewport().Origin)

	slog.Info("agent_started", "run_id", a.runID, "seed", a.seed, "population", a.orch.Population().Len())
	if a.autoStart {
		a.orch.Start()
	}
}

// ToggleLearning starts learning, or requests a stop if learning is active.
func (a *Agent) ToggleLearning() {
	if a.orch.Learning() && !a.orch.StopRequested() {
		slog.Info("stop_requested", "generation", a.orch.Population().Generation())
		a.orch.Stop()
		return
	}
	a.orch.Start()
}

// Save stores the current population.
func (a *Agent) Save(ctx context.Context) (storage.Entry, error) {
	pop := a.orch.Population()
	if pop.Len() == 0 {
		return storage.Entry{}, errors.New("agent: population is empty")
	}
	entry, err := a.store.Save(ctx, pop.Generation(), pop.Genomes())
	if err != nil {
		return storage.Entry{}, fmt.Errorf("saving population: %w", err)
	}
	a.lastSave = entry.Name
	slog.Info("population_saved", "name", entry.Name, "generation", entry.Generation, "genomes", pop.Len())
	return entry, nil
}

// Load installs a stored population. It fails while learning.
func (a *Agent) Load(ctx context.Context, name string, replace bool) error {
	genomes, err := a.store.Load(ctx, name)
	if err != nil {
		return fmt.Errorf("loading population %s: %w", name, err)
	}
	return a.orch.Load(genomes, replace)
}

// Saved lists stored populations.
func (a *Agent) Saved(ctx context.Context) ([]storage.Entry, error) {
	return a.store.List(ctx)
}

// View builds the dashboard view.
func (a *Agent) View() dashboard.View {
	pop := a.orch.Population()
	v := dashboard.View{
		Game:    a.session.Snapshot(),
		Status:  a.orch.Status(),
		Fitness: make([]int, pop.Len()),
		Best:    a.best,
		Saved:   a.lastSave,
		RunID:   a.runID,
	}
	for i := range v.Fitness {
		f, ok := pop.Fitness(i)
		if !ok {
			f = -1
		}
		v.Fitness[i] = f
	}
	return v
}

// Learning reports whether the generational loop is active.
func (a *Agent) Learning() bool { return a.orch.Learning() }

// Generations returns the number of completed generations.
func (a *Agent) Generations() int { return a.orch.Generations() }

// Best returns the best fitness seen this run.
func (a *Agent) Best() int { return a.best }

// HallOfFame returns the run's hall of fame.
func (a *Agent) HallOfFame() *telemetry.HallOfFame { return a.hof }

// Session returns the perception session.
func (a *Agent) Session() *session.Session { return a.session }

// Game returns the simulated game.
func (a *Agent) Game() *sim.Game { return a.game }

// OnGenerationStats registers fn to receive the statistics of every evaluated
// generation.
func (a *Agent) OnGenerationStats(fn func(telemetry.GenerationStats)) {
	a.onStats = append(a.onStats, fn)
}

// OnHalt registers fn to run whenever learning stops.
func (a *Agent) OnHalt(fn func()) { a.orch.OnHalt(fn) }

func (a *Agent) recordEpisode(res episode.EpisodeResult) {
	if res.Skipped {
		a.skipped++
	}
	if res.Fitness > a.best {
		a.best = res.Fitness
		slog.Info("new_best", "generation", res.Generation, "genome", res.Index, "fitness", res.Fitness)
	}
	rec := telemetry.EpisodeRecord{
		Generation:  res.Generation,
		Genome:      res.Index,
		Fitness:     res.Fitness,
		Skipped:     res.Skipped,
		DurationSec: res.Duration.Seconds(),
	}
	if err := a.output.WriteEpisode(rec); err != nil {
		slog.Error("failed to write episode", "error", err)
	}
}

func (a *Agent) recordGeneration(res episode.GenerationResult) {
	pop := res.Population
	stats := telemetry.ComputeGenerationStats(res.Generation, pop.Scores(), a.skipped, res.Duration)
	a.skipped = 0
	stats.LogStats()
	for _, fn := range a.onStats {
		fn(stats)
	}

	perfStats := a.perf.Stats()
	perfStats.LogStats()

	if err := a.output.WriteGeneration(stats); err != nil {
		slog.Error("failed to write generation", "error", err)
	}
	if err := a.output.WritePerf(perfStats, res.Generation); err != nil {
		slog.Error("failed to write perf", "error", err)
	}

	for _, bm := range a.bookmarks.Check(stats) {
		bm.LogBookmark()
		if err := a.output.WriteBookmark(bm); err != nil {
			slog.Error("failed to write bookmark", "error", err)
		}
	}

	changed := false
	for i := 0; i < pop.Len(); i++ {
		f, _ := pop.Fitness(i)
		if a.hof.Consider(telemetry.HallEntry{Genome: pop.Genome(i), Fitness: f, Generation: res.Generation, Index: i}) {
			changed = true
		}
	}
	if changed {
		if err := a.output.WriteHallOfFame(a.hof); err != nil {
			slog.Error("failed to write hall of fame", "error", err)
		}
	}

	if a.cfg.Storage.Autosave {
		if _, err := a.Save(context.Background()); err != nil {
			slog.Error("autosave failed", "error", err)
		}
	}
}

func (a *Agent) halted() {
	slog.Info("agent_halted", "generations", a.orch.Generations(), "best", a.best)
}

// Close stops the jobs and releases storage and output files.
func (a *Agent) Close() error {
	a.game.Stop()
	a.session.Stop()

	var errs []error
	if err := a.output.WriteHallOfFame(a.hof); err != nil {
		errs = append(errs, err)
	}
	if err := a.output.Close(); err != nil {
		errs = append(errs, err)
	}
	if a.store != nil {
		if err := storage.CloseIfSupported(a.store); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
