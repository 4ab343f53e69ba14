package telemetry

import (
	"log/slog"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// EpisodeRecord is one genome evaluation.
type EpisodeRecord struct {
	Generation  int     `csv:"generation"`
	Genome      int     `csv:"genome"`
	Fitness     int     `csv:"fitness"`
	Skipped     bool    `csv:"skipped"`
	DurationSec float64 `csv:"duration_sec"`
}

// GenerationStats holds aggregated fitness statistics for one generation.
type GenerationStats struct {
	Generation int `csv:"generation"`
	Genomes    int `csv:"genomes"`
	Skipped    int `csv:"skipped"`

	// Fitness distribution
	Best int     `csv:"best"`
	Mean float64 `csv:"mean"`
	Std  float64 `csv:"std"`
	P10  float64 `csv:"p10"`
	P50  float64 `csv:"p50"`
	P90  float64 `csv:"p90"`

	DurationSec float64 `csv:"duration_sec"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeGenerationStats aggregates the fitness of one evaluated generation.
func ComputeGenerationStats(generation int, scores []int, skipped int, duration time.Duration) GenerationStats {
	s := GenerationStats{
		Generation:  generation,
		Genomes:     len(scores),
		Skipped:     skipped,
		DurationSec: duration.Seconds(),
	}
	if len(scores) == 0 {
		return s
	}

	sorted := make([]float64, len(scores))
	for i, v := range scores {
		sorted[i] = float64(v)
		if v > s.Best {
			s.Best = v
		}
	}
	sort.Float64s(sorted)

	s.Mean, s.Std = stat.PopMeanStdDev(sorted, nil)
	s.P10 = Percentile(sorted, 0.10)
	s.P50 = Percentile(sorted, 0.50)
	s.P90 = Percentile(sorted, 0.90)
	return s
}

// LogValue implements slog.LogValuer for structured logging.
func (s GenerationStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("generation", s.Generation),
		slog.Int("genomes", s.Genomes),
		slog.Int("skipped", s.Skipped),
		slog.Int("best", s.Best),
		slog.Float64("mean", s.Mean),
		slog.Float64("std", s.Std),
		slog.Float64("p10", s.P10),
		slog.Float64("p50", s.P50),
		slog.Float64("p90", s.P90),
		slog.Float64("duration_sec", s.DurationSec),
	)
}

// LogStats logs the generation stats using slog.
func (s GenerationStats) LogStats() {
	slog.Info("stats", "generation_stats", s)
}
