package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/pthm-cable/dinoevo/agent"
	"github.com/pthm-cable/dinoevo/clock"
	"github.com/pthm-cable/dinoevo/config"
	"github.com/pthm-cable/dinoevo/dashboard"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	headless := flag.Bool("headless", false, "Run without the terminal dashboard and start learning immediately")
	fast := flag.Bool("fast", false, "Run headless in virtual time as fast as possible")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	maxGenerations := flag.Int("max-generations", -1, "Stop after N generations (-1 = use config, 0 = unlimited)")
	load := flag.String("load", "", "Stored population to load before learning")
	hofPath := flag.String("hof", "", "Hall of fame JSON whose genomes seed the population")
	replace := flag.Bool("replace", true, "Loaded genomes replace the population instead of joining it")
	logFile := flag.String("log-file", "dinoevo.log", "Log file used while the dashboard owns the terminal")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *maxGenerations >= 0 {
		cfg.Trainer.MaxGenerations = *maxGenerations
	}

	// Set up seed
	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	interactive := !*headless && !*fast

	// Set up slog (JSON to stdout for structured logging, to a file under the dashboard)
	logOut := os.Stdout
	if interactive {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			slog.Error("failed to open log file", "error", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(logOut, nil)))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	opts := agent.Options{
		Config:     cfg,
		Seed:       rngSeed,
		OutputDir:  *outputDir,
		Load:       *load,
		HallOfFame: *hofPath,
		Replace:    *replace,
		AutoStart:  !interactive,
	}

	var runErr error
	switch {
	case *fast:
		runErr = runFast(ctx, opts)
	case *headless:
		runErr = runHeadless(ctx, opts)
	default:
		runErr = runDashboard(ctx, cancel, opts)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run failed", "error", runErr)
		os.Exit(1)
	}
}

// maxVirtual bounds a fast run that has no generation limit.
const maxVirtual = 100 * 365 * 24 * time.Hour

// runFast drives the agent in virtual time until learning halts.
func runFast(ctx context.Context, opts agent.Options) error {
	clk := clock.NewManual(time.Now())
	a, err := agent.New(ctx, clk, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	slog.Info("starting fast headless run", "seed", opts.Seed, "max_generations", opts.Config.Trainer.MaxGenerations)
	a.Start()
	clk.AdvanceUntil(time.Second, maxVirtual, func() bool {
		return !a.Learning() || ctx.Err() != nil
	})
	slog.Info("run finished", "generations", a.Generations(), "best", a.Best())
	return ctx.Err()
}

// runHeadless drives the agent in real time until learning halts.
func runHeadless(ctx context.Context, opts agent.Options) error {
	loop := clock.NewLoop()
	a, err := agent.New(ctx, loop, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.OnHalt(cancel)

	slog.Info("starting headless run", "seed", opts.Seed, "max_generations", opts.Config.Trainer.MaxGenerations)
	a.Start()
	err = loop.Run(ctx)
	slog.Info("run finished", "generations", a.Generations(), "best", a.Best())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runDashboard runs the agent loop in the background and the terminal view in
// the foreground.
func runDashboard(ctx context.Context, cancel context.CancelFunc, opts agent.Options) error {
	loop := clock.NewLoop()
	a, err := agent.New(ctx, loop, opts)
	if err != nil {
		return err
	}
	defer a.Close()
	a.Start()

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(ctx) }()

	d := dashboard.New(screen, agent.NewRemote(a, loop), 100*time.Millisecond)
	err = d.Run(ctx)
	cancel()
	<-loopDone
	return err
}
