package agent

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/pthm-cable/dinoevo/clock"
	"github.com/pthm-cable/dinoevo/neural"
	"github.com/pthm-cable/dinoevo/storage"
)

func TestRemoteListsAndLoadsSaves(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Storage.Backend = "file"
	cfg.Storage.Dir = t.TempDir()

	// A population saved by an earlier run
	store := storage.NewFileStore(cfg.Storage.Dir, cfg.Network.Layers, clock.NewManual(epoch))
	if err := store.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	rng := rand.New(rand.NewSource(1))
	var genomes []*neural.Genome
	for i := 0; i < 3; i++ {
		genomes = append(genomes, neural.Random(cfg.Network.Layers, rng, 1))
	}
	entry, err := store.Save(ctx, 7, genomes)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	loop := clock.NewLoop()
	a, err := New(ctx, loop, Options{Config: cfg, Seed: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- loop.Run(runCtx) }()

	r := NewRemote(a, loop)
	names, err := r.Saved()
	if err != nil {
		t.Fatalf("Saved: %v", err)
	}
	if len(names) != 1 || names[0] != entry.Name {
		t.Fatalf("saved = %v, want [%s]", names, entry.Name)
	}

	if err := r.Load(entry.Name, true); err != nil {
		t.Fatalf("Load: %v", err)
	}
	v, err := r.View()
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if len(v.Fitness) != 3 {
		t.Errorf("view has %d genomes, want 3", len(v.Fitness))
	}

	if err := r.Load("missing.json", true); err == nil {
		t.Error("loading an unknown save should fail")
	}

	cancel()
	<-done
	if _, err := r.View(); !errors.Is(err, clock.ErrLoopStopped) {
		t.Errorf("View after stop = %v, want ErrLoopStopped", err)
	}
}
