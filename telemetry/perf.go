package telemetry

import (
	"log/slog"
	"time"
)

// Phase names for scheduler jobs. They match the job names passed to Wrap.
const (
	PhaseSimStep   = "sim_step"
	PhaseSensors   = "sensors"
	PhaseGameState = "game_state"
)

// Phases lists the tracked phases in report order.
var Phases = []string{PhaseSimStep, PhaseSensors, PhaseGameState}

// PerfSample holds timing data for a single job run.
type PerfSample struct {
	Phase    string
	Duration time.Duration
}

// PerfCollector tracks job durations over a rolling window.
type PerfCollector struct {
	windowSize  int
	samples     []PerfSample
	writeIndex  int
	sampleCount int
	now         func() time.Time
}

// NewPerfCollector creates a new performance collector.
// windowSize: number of job runs to average over.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 256
	}
	return &PerfCollector{
		windowSize: windowSize,
		samples:    make([]PerfSample, windowSize),
		now:        time.Now,
	}
}

// Record adds one job duration.
func (p *PerfCollector) Record(phase string, d time.Duration) {
	p.samples[p.writeIndex] = PerfSample{Phase: phase, Duration: d}
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
}

// Wrap returns fn instrumented under the given phase. Durations are wall
// clock, also when the scheduler runs in virtual time.
func (p *PerfCollector) Wrap(phase string, fn func()) func() {
	return func() {
		start := p.now()
		fn()
		p.Record(phase, p.now().Sub(start))
	}
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	Samples int

	// Per-phase timing
	PhaseAvg   map[string]time.Duration
	PhaseMax   map[string]time.Duration
	PhaseCount map[string]int

	// Busy time of the loop goroutine across the window
	Busy time.Duration
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	stats := PerfStats{
		Samples:    p.sampleCount,
		PhaseAvg:   make(map[string]time.Duration),
		PhaseMax:   make(map[string]time.Duration),
		PhaseCount: make(map[string]int),
	}

	sum := make(map[string]time.Duration)
	for i := 0; i < p.sampleCount; i++ {
		s := p.samples[i]
		sum[s.Phase] += s.Duration
		stats.PhaseCount[s.Phase]++
		stats.Busy += s.Duration
		if s.Duration > stats.PhaseMax[s.Phase] {
			stats.PhaseMax[s.Phase] = s.Duration
		}
	}
	for phase, total := range sum {
		stats.PhaseAvg[phase] = total / time.Duration(stats.PhaseCount[phase])
	}
	return stats
}

// LogStats logs performance statistics.
func (s PerfStats) LogStats() {
	slog.Info("perf", "perf", s)
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("samples", s.Samples),
		slog.Int64("busy_us", s.Busy.Microseconds()),
	}
	for _, phase := range Phases {
		if n := s.PhaseCount[phase]; n > 0 {
			attrs = append(attrs,
				slog.Int64(phase+"_avg_us", s.PhaseAvg[phase].Microseconds()),
				slog.Int64(phase+"_max_us", s.PhaseMax[phase].Microseconds()),
			)
		}
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is a flat struct for CSV export of performance stats.
type PerfStatsCSV struct {
	Generation     int   `csv:"generation"`
	Samples        int   `csv:"samples"`
	BusyUS         int64 `csv:"busy_us"`
	SimStepAvgUS   int64 `csv:"sim_step_avg_us"`
	SimStepMaxUS   int64 `csv:"sim_step_max_us"`
	SensorsAvgUS   int64 `csv:"sensors_avg_us"`
	SensorsMaxUS   int64 `csv:"sensors_max_us"`
	GameStateAvgUS int64 `csv:"game_state_avg_us"`
	GameStateMaxUS int64 `csv:"game_state_max_us"`
}

// ToCSV converts PerfStats to a flat CSV-friendly struct.
func (s PerfStats) ToCSV(generation int) PerfStatsCSV {
	return PerfStatsCSV{
		Generation:     generation,
		Samples:        s.Samples,
		BusyUS:         s.Busy.Microseconds(),
		SimStepAvgUS:   s.PhaseAvg[PhaseSimStep].Microseconds(),
		SimStepMaxUS:   s.PhaseMax[PhaseSimStep].Microseconds(),
		SensorsAvgUS:   s.PhaseAvg[PhaseSensors].Microseconds(),
		SensorsMaxUS:   s.PhaseMax[PhaseSensors].Microseconds(),
		GameStateAvgUS: s.PhaseAvg[PhaseGameState].Microseconds(),
		GameStateMaxUS: s.PhaseMax[PhaseGameState].Microseconds(),
	}
}
