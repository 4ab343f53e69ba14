package main

import (
	"math"

	"github.com/pthm-cable/dinoevo/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
	Integer bool    // Rounded before use
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			// Trainer
			{Name: "selection", Path: "trainer.selection", Min: 2, Max: 8, Default: 4, Integer: true},
			{Name: "mutation_prob", Path: "trainer.mutation_prob", Min: 0.02, Max: 0.6, Default: 0.2},
			{Name: "mutation_reserve", Path: "trainer.mutation_reserve", Min: 0, Max: 6, Default: 2, Integer: true},
			// Network
			{Name: "init_range", Path: "network.init_range", Min: 0.25, Max: 3.0, Default: 1.0},
			// Control
			{Name: "jump_above", Path: "control.jump_above", Min: 0.5, Max: 0.9, Default: 0.55},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds and integer parameters are whole.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		val := math.Max(spec.Min, math.Min(spec.Max, v[i]))
		if spec.Integer {
			val = math.Round(val)
		}
		clamped[i] = val
	}
	return clamped
}

// ApplyToConfig applies parameter values to a Config struct.
// Order must match Specs order.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	clamped := pv.Clamp(values)

	cfg.Trainer.Selection = int(clamped[0])
	cfg.Trainer.MutationProb = clamped[1]
	cfg.Trainer.MutationReserve = int(clamped[2])
	cfg.Network.InitRange = clamped[3]
	cfg.Control.JumpAbove = clamped[4]

	// Elites plus reserved mutants must leave room in the population
	if room := cfg.Trainer.GenomeUnits - cfg.Trainer.Selection; cfg.Trainer.MutationReserve > room {
		cfg.Trainer.MutationReserve = max(room, 0)
	}
	if cfg.Control.DownBelow > cfg.Control.JumpAbove {
		cfg.Control.DownBelow = cfg.Control.JumpAbove
	}
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	return []float64{
		float64(cfg.Trainer.Selection),
		cfg.Trainer.MutationProb,
		float64(cfg.Trainer.MutationReserve),
		cfg.Network.InitRange,
		cfg.Control.JumpAbove,
	}
}
