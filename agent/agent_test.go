package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pthm-cable/dinoevo/clock"
	"github.com/pthm-cable/dinoevo/config"
	"github.com/pthm-cable/dinoevo/episode"
	"github.com/pthm-cable/dinoevo/telemetry"
	"github.com/pthm-cable/dinoevo/vision"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.MustLoad("")
	cfg.Trainer.GenomeUnits = 4
	cfg.Trainer.Selection = 2
	cfg.Trainer.MaxGenerations = 2
	cfg.Storage.Backend = "memory"
	cfg.Storage.Autosave = true
	return cfg
}

func TestTrainingRunOnSimulatedGame(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewManual(epoch)
	out := t.TempDir()

	a, err := New(ctx, clk, Options{Config: testConfig(t), Seed: 3, OutputDir: out, AutoStart: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	// The session never holds a start listener and a sensor listener at once
	overlaps := 0
	clk.Every(10*time.Millisecond, func() {
		start, _, sensor := a.Session().ListenersPending()
		if start && sensor {
			overlaps++
		}
	})

	var gens []int
	a.OnGenerationStats(func(s telemetry.GenerationStats) {
		gens = append(gens, s.Generation)
		if s.Genomes != 4 {
			t.Errorf("generation %d stats over %d genomes, want 4", s.Generation, s.Genomes)
		}
	})

	a.Start()
	if !a.Game().Focused() {
		t.Error("game was not focused before learning")
	}
	if !clk.AdvanceUntil(10*time.Millisecond, time.Hour, func() bool { return !a.Learning() }) {
		t.Fatal("training did not finish")
	}

	if overlaps != 0 {
		t.Errorf("overlapping listeners on %d ticks", overlaps)
	}
	if got := a.Generations(); got != 2 {
		t.Errorf("generations = %d, want 2", got)
	}
	if len(gens) != 2 || gens[0] != 0 || gens[1] != 1 {
		t.Errorf("stats generations = %v, want [0 1]", gens)
	}

	perf := a.perf.Stats()
	for _, phase := range telemetry.Phases {
		if perf.PhaseCount[phase] == 0 {
			t.Errorf("no %s timings recorded", phase)
		}
	}
	if v := a.View(); v.RunID != a.runID || v.RunID == "" {
		t.Errorf("view run id = %q, want %q", v.RunID, a.runID)
	}

	saved, err := a.Saved(ctx)
	if err != nil {
		t.Fatalf("Saved: %v", err)
	}
	if len(saved) != 2 {
		t.Errorf("autosaved %d populations, want 2", len(saved))
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(out, "episodes.csv"))
	if err != nil {
		t.Fatalf("reading episodes.csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1+8 {
		t.Errorf("episodes.csv has %d lines, want header + 8", len(lines))
	}
	for _, name := range []string{"config.yaml", "run.yaml", "generations.csv"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}

func TestSaveAndLoadPopulation(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewManual(epoch)

	cfg := testConfig(t)
	cfg.Trainer.MaxGenerations = 1
	cfg.Storage.Autosave = false
	a, err := New(ctx, clk, Options{Config: cfg, Seed: 5})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if _, err := a.Save(ctx); err == nil {
		t.Error("saving an empty population should fail")
	}

	a.Start()
	a.ToggleLearning()
	if !a.Learning() {
		t.Fatal("toggle did not start learning")
	}
	entry, err := a.Save(ctx)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := a.Load(ctx, entry.Name, true); !errors.Is(err, episode.ErrLearning) {
		t.Errorf("Load while learning = %v, want ErrLearning", err)
	}

	clk.AdvanceUntil(10*time.Millisecond, time.Hour, func() bool { return !a.Learning() })
	if a.Learning() {
		t.Fatal("training did not finish")
	}
	if err := a.Load(ctx, entry.Name, true); err != nil {
		t.Fatalf("Load: %v", err)
	}

	v := a.View()
	if len(v.Fitness) != 4 {
		t.Fatalf("view has %d genomes, want 4", len(v.Fitness))
	}
	for i, f := range v.Fitness {
		if f != -1 {
			t.Errorf("fitness[%d] = %d, want pending after load", i, f)
		}
	}
	if v.Saved != entry.Name {
		t.Errorf("last save = %q, want %q", v.Saved, entry.Name)
	}
}

func TestToggleRequestsStop(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewManual(epoch)
	cfg := testConfig(t)
	cfg.Trainer.MaxGenerations = 0

	a, err := New(ctx, clk, Options{Config: cfg, Seed: 9, AutoStart: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()
	a.Start()

	a.ToggleLearning()
	if !clk.AdvanceUntil(10*time.Millisecond, time.Hour, func() bool { return !a.Learning() }) {
		t.Fatal("stop request never took effect")
	}
	if a.Generations() != 0 {
		t.Errorf("generations = %d, want 0 after an immediate stop", a.Generations())
	}
}

func TestViewportMissingIsFatal(t *testing.T) {
	cfg := testConfig(t)
	cfg.Perception.Locate.StartY = cfg.Sim.Height - 5

	_, err := New(context.Background(), clock.NewManual(epoch), Options{Config: cfg, Seed: 1})
	if !errors.Is(err, vision.ErrViewportNotFound) {
		t.Errorf("err = %v, want ErrViewportNotFound", err)
	}
}
