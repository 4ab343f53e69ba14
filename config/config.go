// Package config provides configuration loading for the training agent.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all agent configuration parameters.
type Config struct {
	Trainer    TrainerConfig    `yaml:"trainer"`
	Network    NetworkConfig    `yaml:"network"`
	Perception PerceptionConfig `yaml:"perception"`
	Sensors    []SensorConfig   `yaml:"sensors"`
	Control    ControlConfig    `yaml:"control"`
	Timing     TimingConfig     `yaml:"timing"`
	Sim        SimConfig        `yaml:"sim"`
	Storage    StorageConfig    `yaml:"storage"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// TrainerConfig holds the generational search parameters.
type TrainerConfig struct {
	GenomeUnits     int     `yaml:"genome_units"`     // Population size, constant across generations
	Selection       int     `yaml:"selection"`        // Elite genomes kept per generation
	MutationProb    float64 `yaml:"mutation_prob"`    // Per-parameter mutation probability
	MutationReserve int     `yaml:"mutation_reserve"` // Slots filled by mutation-only offspring
	CheckExperience bool    `yaml:"check_experience"` // Skip genomes whose output never changes
	MaxGenerations  int     `yaml:"max_generations"`  // 0 = unlimited
}

// NetworkConfig holds the controller topology.
type NetworkConfig struct {
	Layers    []int   `yaml:"layers"`     // Neurons per layer, input first
	InitRange float64 `yaml:"init_range"` // Initial parameters are uniform in [-r, r)
}

// PerceptionConfig holds the visual sampling constants.
type PerceptionConfig struct {
	ObstacleColor  string       `yaml:"obstacle_color"`   // Hex RGB shared by runner, ground and obstacles
	ViewportWidth  int          `yaml:"viewport_width"`   // 0 = use the measured ground width
	GameOverOffset [2]int       `yaml:"game_over_offset"` // Marker position relative to the viewport origin
	GameOverStep   [2]int       `yaml:"game_over_step"`
	GameOverSteps  int          `yaml:"game_over_steps"`
	SizeProbeReach int          `yaml:"size_probe_reach"` // How far past an edge the size probe starts
	SizeNormalizer float64      `yaml:"size_normalizer"`  // Pixels mapped to size 1.0
	SpeedOffset    float64      `yaml:"speed_offset"`     // Empirical offset subtracted from averaged speed
	SpeedHistory   int          `yaml:"speed_history"`
	ScoreLow       float64      `yaml:"score_low"`  // Previous value must be below this...
	ScoreHigh      float64      `yaml:"score_high"` // ...and current above this to score
	Locate         LocateConfig `yaml:"locate"`
}

// LocateConfig holds the viewport search parameters.
type LocateConfig struct {
	StartX      int `yaml:"start_x"`
	StartY      int `yaml:"start_y"`
	SkipX       int `yaml:"skip_x"`
	Depth       int `yaml:"depth"`
	RefineBack  int `yaml:"refine_back"`
	RefineDepth int `yaml:"refine_depth"`
	WalkStep    int `yaml:"walk_step"`
	WalkLimit   int `yaml:"walk_limit"`
}

// SensorConfig describes one ray-trace sensor relative to the viewport origin.
type SensorConfig struct {
	Offset [2]int  `yaml:"offset"`
	Step   [2]int  `yaml:"step"`
	Length float64 `yaml:"length"` // Fraction of the viewport width scanned
}

// ControlConfig holds the output discretization thresholds.
type ControlConfig struct {
	DownBelow   float64       `yaml:"down_below"`
	JumpAbove   float64       `yaml:"jump_above"`
	JumpRelease time.Duration `yaml:"jump_release"` // Continuous JUMP longer than this is released
}

// TimingConfig holds the periodic job intervals.
type TimingConfig struct {
	SensorInterval time.Duration `yaml:"sensor_interval"`
	StateInterval  time.Duration `yaml:"state_interval"`
	StartRetry     time.Duration `yaml:"start_retry"`
}

// SimConfig holds the simulated runner game parameters.
type SimConfig struct {
	Seed              int64         `yaml:"seed"` // 0 = derived from the agent seed
	Width             int           `yaml:"width"`
	Height            int           `yaml:"height"`
	OriginX           int           `yaml:"origin_x"` // Left end of the ground line
	GroundY           int           `yaml:"ground_y"`
	GroundWidth       int           `yaml:"ground_width"`
	StepInterval      time.Duration `yaml:"step_interval"`
	RunnerX           int           `yaml:"runner_x"` // Relative to OriginX
	RunnerWidth       int           `yaml:"runner_width"`
	RunnerHeight      int           `yaml:"runner_height"`
	JumpVelocity      float64       `yaml:"jump_velocity"` // px/s
	Gravity           float64       `yaml:"gravity"`       // px/s^2
	FastFall          float64       `yaml:"fast_fall"`     // Gravity multiplier while down is held
	InitialSpeed      float64       `yaml:"initial_speed"` // px/s
	Acceleration      float64       `yaml:"acceleration"`  // px/s^2
	MaxSpeed          float64       `yaml:"max_speed"`
	MinGap            float64       `yaml:"min_gap"`
	GapJitter         float64       `yaml:"gap_jitter"`
	MinObstacleWidth  int           `yaml:"min_obstacle_width"`
	MaxObstacleWidth  int           `yaml:"max_obstacle_width"`
	MinObstacleHeight int           `yaml:"min_obstacle_height"`
	MaxObstacleHeight int           `yaml:"max_obstacle_height"`
	MarkerWidth       int           `yaml:"marker_width"`
	MarkerHeight      int           `yaml:"marker_height"`
}

// StorageConfig holds population persistence settings.
type StorageConfig struct {
	Backend    string `yaml:"backend"` // file, sqlite or memory
	Dir        string `yaml:"dir"`
	SQLitePath string `yaml:"sqlite_path"`
	Autosave   bool   `yaml:"autosave"` // Save after every generation
}

// TelemetryConfig holds experiment output settings.
type TelemetryConfig struct {
	OutputDir      string `yaml:"output_dir"`
	HallOfFameSize int    `yaml:"hall_of_fame_size"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	ObstacleColor  color.RGBA
	GameOverOffset image.Point
	GameOverStep   image.Point
	NumInputs      int
	NumOutputs     int
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	// Load user config if provided
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.computeDerived(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad is like Load but panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(fmt.Sprintf("config: failed to load: %v", err))
	}
	return cfg
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() error {
	col, err := ParseHexColor(c.Perception.ObstacleColor)
	if err != nil {
		return fmt.Errorf("perception.obstacle_color: %w", err)
	}
	c.Derived.ObstacleColor = col
	c.Derived.GameOverOffset = Point(c.Perception.GameOverOffset)
	c.Derived.GameOverStep = Point(c.Perception.GameOverStep)

	if len(c.Network.Layers) < 2 {
		return errors.New("network.layers: need at least an input and an output layer")
	}
	c.Derived.NumInputs = c.Network.Layers[0]
	c.Derived.NumOutputs = c.Network.Layers[len(c.Network.Layers)-1]
	if c.Derived.NumInputs != 3 {
		return fmt.Errorf("network.layers: controller takes 3 inputs (distance, size, speed), got %d", c.Derived.NumInputs)
	}
	if len(c.Sensors) == 0 {
		return errors.New("sensors: at least one sensor is required")
	}
	if h := c.Perception.SpeedHistory; h < 1 || h > maxSpeedHistory {
		return fmt.Errorf("perception.speed_history: must be in [1, %d], got %d", maxSpeedHistory, h)
	}
	return nil
}

// maxSpeedHistory bounds the per-sensor speed sample buffer.
const maxSpeedHistory = 10

// Point converts a YAML pair into an image.Point.
func Point(p [2]int) image.Point {
	return image.Pt(p[0], p[1])
}

// ParseHexColor parses an "rrggbb" string (optional leading '#').
func ParseHexColor(s string) (color.RGBA, error) {
	if len(s) > 0 && s[0] == '#' {
		s = s[1:]
	}
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
