package session

import (
	"image"
	"image/color"
	"math"
	"time"

	"github.com/pthm-cable/dinoevo/config"
	"github.com/pthm-cable/dinoevo/vision"
)

// noObstacle is the identity token of a sensor that has not measured an
// obstacle since the last reset.
const noObstacle = -1

// Sensor is one ray trace in front of the runner. Value is the normalized
// distance to the nearest obstacle edge (0 = at the sensor, 1 = clear), Size
// the estimated obstacle width and Speed the approach speed in values/second.
type Sensor struct {
	Offset image.Point // Start relative to the viewport origin
	Step   image.Point
	Length float64 // Fraction of the viewport width scanned

	Value     float64
	LastValue float64
	Size      float64
	Speed     float64

	speeds      []float64 // Newest first
	lastScore   int       // Score when the current obstacle was last measured
	lastSpeedAt time.Time
}

// NewSensor creates a sensor from its geometry, in the reset state.
func NewSensor(cfg config.SensorConfig) *Sensor {
	s := &Sensor{
		Offset: config.Point(cfg.Offset),
		Step:   config.Point(cfg.Step),
		Length: cfg.Length,
	}
	s.Reset()
	return s
}

// Reset restores the smoothing state of a fresh episode.
func (s *Sensor) Reset() {
	s.Value = 1
	s.LastValue = 1
	s.Size = 0
	s.Speed = 0
	s.speeds = s.speeds[:0]
	s.lastScore = noObstacle
	s.lastSpeedAt = time.Time{}
}

// SpeedHistory returns a copy of the buffered speed samples, newest first.
func (s *Sensor) SpeedHistory() []float64 {
	out := make([]float64, len(s.speeds))
	copy(out, s.speeds)
	return out
}

// fusion bundles the per-tick inputs shared by every sensor.
type fusion struct {
	screen vision.Screen
	origin image.Point
	width  int
	target color.Color
	score  int
	now    time.Time
	cfg    *config.PerceptionConfig
}

// read performs one measurement.
func (s *Sensor) read(f fusion) {
	start := f.origin.Add(s.Offset)
	span := float64(f.width) * s.Length
	maxSteps := int(span / float64(stepLen(s.Step)))

	s.LastValue = s.Value

	edge, found := vision.Scan(f.screen, start, s.Step, f.target, false, maxSteps)
	if found {
		s.Value = clamp01(float64(edge.X-start.X) / span)

		reach := f.cfg.SizeProbeReach
		far, ok := vision.Scan(f.screen, edge.Add(image.Pt(reach, 0)), image.Pt(-2, 0), f.target, false, reach/2)
		if !ok {
			far = edge
		}
		estimate := float64(far.X-edge.X) / f.cfg.SizeNormalizer

		if f.score == s.lastScore {
			// Same obstacle, more of it may be visible now
			s.Size = math.Max(s.Size, estimate)
		} else {
			s.Size = estimate
			if s.lastScore != noObstacle {
				s.Speed = 0
				s.speeds = s.speeds[:0]
			}
		}
		s.lastScore = f.score
	} else {
		s.Value = 1
		s.Size = 0
	}
	s.Size = clamp01(s.Size)

	s.updateSpeed(f.now, f.cfg)
}

// updateSpeed ratchets Speed upward while the obstacle approaches.
func (s *Sensor) updateSpeed(now time.Time, cfg *config.PerceptionConfig) {
	last := s.lastSpeedAt
	s.lastSpeedAt = now
	if last.IsZero() {
		return
	}
	dt := now.Sub(last).Seconds()
	if dt <= 0 || s.Value >= s.LastValue {
		return
	}

	raw := (s.LastValue - s.Value) / dt
	s.speeds = append(s.speeds, 0)
	copy(s.speeds[1:], s.speeds)
	s.speeds[0] = raw
	if len(s.speeds) > cfg.SpeedHistory {
		s.speeds = s.speeds[:cfg.SpeedHistory]
	}

	var avg float64
	for _, v := range s.speeds {
		avg += v
	}
	avg /= float64(len(s.speeds))

	s.Speed = math.Max(s.Speed, avg-cfg.SpeedOffset)
}

// scored reports whether the obstacle just left the sensor.
func (s *Sensor) scored(cfg *config.PerceptionConfig) bool {
	return s.LastValue < cfg.ScoreLow && s.Value > cfg.ScoreHigh
}

func stepLen(p image.Point) int {
	x, y := p.X, p.Y
	if x < 0 {
		x = -x
	}
	if y < 0 {
		y = -y
	}
	if x > y {
		return x
	}
	if y == 0 {
		return 1
	}
	return y
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
